// Package hospital holds the raw hospital record read from the search index
// and the fixed template that renders it as a natural-language document.
package hospital

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one hospital document as stored in the search index.
// Field tags follow the index mapping, which mirrors the public HIRA dataset.
type Record struct {
	SourceID string `json:"-"`

	Name        Text        `json:"yadmNm"`
	Address     Text        `json:"addr"`
	Phone       Text        `json:"telno"`
	Departments Departments `json:"dgsbjtCdNm"`

	Doctors       Count `json:"drTotCnt"`
	InpatientRoom Count `json:"hghrSickbdCnt"`
	GeneralBeds   Count `json:"sickbdCnt"`

	Emergency     Count `json:"emymCnt"`
	Accessibility Count `json:"dutyEryn"`
	Parking       Count `json:"parking"`

	WeekdayOpen  Text `json:"dutyTime1s"`
	WeekdayClose Text `json:"dutyTime1c"`
	WeekendOpen  Text `json:"dutyTime2s"`
	WeekendClose Text `json:"dutyTime2c"`
	HolidayOpen  Text `json:"dutyTime3s"`
	HolidayClose Text `json:"dutyTime3c"`
}

// Text is a string field that the index may also hold as a number or a
// boolean. Numbers and booleans keep their JSON spelling; null, arrays and
// objects decode as blank.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*t = Text(s)
	case 'n', '[', '{':
	default:
		*t = Text(data)
	}
	return nil
}

// Count is a numeric field that the index may hold as a number, a numeric
// string, a boolean or null. Anything it cannot read decodes as 0.
type Count int64

// Present reports whether the count is positive.
func (c Count) Present() bool { return c > 0 }

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	*c = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case 't':
		*c = 1
		return nil
	case 'f':
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*c = parseCount(s)
		return nil
	}
	*c = parseCount(string(data))
	return nil
}

func parseCount(s string) Count {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Count(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Count(f)
	}
	return 0
}

// Departments is the list of clinical departments. The index stores it
// either as an array of names or as one comma-separated string.
type Departments []string

// UnmarshalJSON implements json.Unmarshaler.
func (d *Departments) UnmarshalJSON(data []byte) error {
	*d = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		for _, it := range items {
			switch v := it.(type) {
			case string:
				d.add(v)
			case map[string]any:
				// nested {"dgsbjtCdNm": "..."} objects from the subjects mapping
				if s, ok := v["dgsbjtCdNm"].(string); ok {
					d.add(s)
				}
			}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		d.add(part)
	}
	return nil
}

func (d *Departments) add(name string) {
	if name = strings.TrimSpace(name); name != "" {
		*d = append(*d, name)
	}
}

// String joins the departments with ", ".
func (d Departments) String() string {
	return strings.Join(d, ", ")
}

// Decode parses an index hit's _source into a Record.
func Decode(sourceID string, source json.RawMessage) (Record, error) {
	var r Record
	if len(source) > 0 {
		if err := json.Unmarshal(source, &r); err != nil {
			return Record{}, err
		}
	}
	r.SourceID = sourceID
	return r, nil
}
