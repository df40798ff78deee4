package hospital

import (
	"fmt"
	"strings"
)

// Locale selects the phrase table used by Format.
type Locale string

const (
	// Korean is the dataset's own language and the default.
	Korean  Locale = "ko"
	English Locale = "en"
)

// Phrases is the wording of one locale. Every label is rendered verbatim.
type Phrases struct {
	Placeholder string

	Headline string // name, address

	BasicHeader string
	Phone       string
	Departments string

	ExtraHeader   string
	Emergency     string
	Doctors       string // count
	InpatientRoom string // count
	GeneralBeds   string // count

	HoursHeader string
	Weekday     string
	Weekend     string
	Holiday     string

	NotesHeader     string
	EmergencyStatus string
	Accessibility   string
	Parking         string

	Operating    string
	NotOperating string
	Present      string
	Available    string
}

var phrases = map[Locale]Phrases{
	Korean: {
		Placeholder:     "정보 없음",
		Headline:        "%s은(는) %s에 위치한 병원입니다.",
		BasicHeader:     "기본 정보:",
		Phone:           "전화번호",
		Departments:     "진료과목",
		ExtraHeader:     "추가 정보:",
		Emergency:       "응급실 운영",
		Doctors:         "의료진 수: %d명",
		InpatientRoom:   "입원실 수: %d개",
		GeneralBeds:     "일반 병상 수: %d개",
		HoursHeader:     "진료 시간:",
		Weekday:         "평일",
		Weekend:         "주말",
		Holiday:         "공휴일",
		NotesHeader:     "특이사항:",
		EmergencyStatus: "응급실 운영 여부",
		Accessibility:   "장애인 편의시설",
		Parking:         "주차 가능",
		Operating:       "운영",
		NotOperating:    "미운영",
		Present:         "있음",
		Available:       "가능",
	},
	English: {
		Placeholder:     "no information",
		Headline:        "%s is a hospital located at %s.",
		BasicHeader:     "Basic information:",
		Phone:           "Phone",
		Departments:     "Departments",
		ExtraHeader:     "Additional information:",
		Emergency:       "Emergency room",
		Doctors:         "Medical staff: %d",
		InpatientRoom:   "Inpatient rooms: %d",
		GeneralBeds:     "General beds: %d",
		HoursHeader:     "Operating hours:",
		Weekday:         "Weekdays",
		Weekend:         "Weekends",
		Holiday:         "Holidays",
		NotesHeader:     "Notes:",
		EmergencyStatus: "Emergency room status",
		Accessibility:   "Accessibility facilities",
		Parking:         "Parking",
		Operating:       "operating",
		NotOperating:    "not operating",
		Present:         "present",
		Available:       "available",
	},
}

// PhrasesFor returns the phrase table for l, falling back to Korean.
func PhrasesFor(l Locale) Phrases {
	if p, ok := phrases[l]; ok {
		return p
	}
	return phrases[Korean]
}

// Valid reports whether l has a phrase table.
func (l Locale) Valid() bool {
	_, ok := phrases[l]
	return ok
}

// Format renders r with the fixed template. It never fails: blank fields
// become the placeholder and counts are read as present when > 0.
func Format(r Record, l Locale) string {
	p := PhrasesFor(l)
	or := func(t Text) string {
		if s := strings.TrimSpace(string(t)); s != "" {
			return s
		}
		return p.Placeholder
	}
	orList := func(d Departments) string {
		if s := d.String(); s != "" {
			return s
		}
		return p.Placeholder
	}
	either := func(c Count, yes, no string) string {
		if c.Present() {
			return yes
		}
		return no
	}
	emergency := either(r.Emergency, p.Operating, p.NotOperating)

	var b strings.Builder
	fmt.Fprintf(&b, p.Headline+"\n", or(r.Name), or(r.Address))

	b.WriteString("\n" + p.BasicHeader + "\n")
	fmt.Fprintf(&b, "- %s: %s\n", p.Phone, or(r.Phone))
	fmt.Fprintf(&b, "- %s: %s\n", p.Departments, orList(r.Departments))

	b.WriteString("\n" + p.ExtraHeader + "\n")
	fmt.Fprintf(&b, "- %s: %s\n", p.Emergency, emergency)
	fmt.Fprintf(&b, "- "+p.Doctors+"\n", int64(r.Doctors))
	fmt.Fprintf(&b, "- "+p.InpatientRoom+"\n", int64(r.InpatientRoom))
	fmt.Fprintf(&b, "- "+p.GeneralBeds+"\n", int64(r.GeneralBeds))

	b.WriteString("\n" + p.HoursHeader + "\n")
	fmt.Fprintf(&b, "- %s: %s ~ %s\n", p.Weekday, or(r.WeekdayOpen), or(r.WeekdayClose))
	fmt.Fprintf(&b, "- %s: %s ~ %s\n", p.Weekend, or(r.WeekendOpen), or(r.WeekendClose))
	fmt.Fprintf(&b, "- %s: %s ~ %s\n", p.Holiday, or(r.HolidayOpen), or(r.HolidayClose))

	b.WriteString("\n" + p.NotesHeader + "\n")
	fmt.Fprintf(&b, "- %s: %s\n", p.EmergencyStatus, emergency)
	fmt.Fprintf(&b, "- %s: %s\n", p.Accessibility, either(r.Accessibility, p.Present, p.Placeholder))
	fmt.Fprintf(&b, "- %s: %s", p.Parking, either(r.Parking, p.Available, p.Placeholder))

	return b.String()
}
