package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bippobippo/hospital-vectors/engine/hospital"
	"github.com/bippobippo/hospital-vectors/engine/semantic"
)

// ErrVerifyMismatch is returned when the stored collection does not match
// the records of the run.
var ErrVerifyMismatch = errors.New("ingest: stored entries do not match the sample")

// Lister is the part of the vector store verification reads from.
type Lister interface {
	GetAll(ctx context.Context) ([]semantic.Entry, error)
}

const maxReported = 3

// Verify reads the collection back and checks that it holds exactly one
// entry per record, each carrying the document Format renders for the
// record at its id offset.
func Verify(ctx context.Context, l Lister, records []hospital.Record, locale hospital.Locale) ([]semantic.Entry, error) {
	entries, err := l.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: verify: %w", err)
	}

	var problems []string
	if len(entries) != len(records) {
		problems = append(problems, fmt.Sprintf("%d entries stored, %d records fetched", len(entries), len(records)))
	}
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		off, ok := entryOffset(e.ID)
		switch {
		case !ok || off >= len(records):
			problems = append(problems, fmt.Sprintf("%s does not name a fetched record", e.ID))
		case seen[off]:
			problems = append(problems, fmt.Sprintf("%s stored twice", e.ID))
		case e.Document != hospital.Format(records[off], locale):
			problems = append(problems, fmt.Sprintf("%s document differs from its record", e.ID))
		}
		if ok {
			seen[off] = true
		}
	}

	if len(problems) > 0 {
		more := ""
		if len(problems) > maxReported {
			more = fmt.Sprintf(" (and %d more)", len(problems)-maxReported)
			problems = problems[:maxReported]
		}
		return entries, fmt.Errorf("%w: %s%s", ErrVerifyMismatch, strings.Join(problems, "; "), more)
	}
	return entries, nil
}

func entryOffset(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "hospital_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil && n >= 0
}

type listingPhrases struct {
	header, total, sample, document string
}

var listings = map[hospital.Locale]listingPhrases{
	hospital.Korean: {
		header:   "=== 저장된 데이터 확인 ===",
		total:    "총 %d개의 데이터가 저장되어 있습니다.",
		sample:   "=== 샘플 데이터 (처음 %d개) ===",
		document: "문서",
	},
	hospital.English: {
		header:   "=== Stored data ===",
		total:    "%d entries are stored.",
		sample:   "=== Sample entries (first %d) ===",
		document: "Document",
	},
}

// PrintStored writes the stored total followed by the first limit entries.
func PrintStored(w io.Writer, entries []semantic.Entry, limit int, locale hospital.Locale) error {
	p, ok := listings[locale]
	if !ok {
		p = listings[hospital.Korean]
	}
	if limit > len(entries) {
		limit = len(entries)
	}
	if limit < 0 {
		limit = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", p.header)
	fmt.Fprintf(&b, p.total+"\n", len(entries))
	fmt.Fprintf(&b, "\n"+p.sample+"\n", limit)
	for _, e := range entries[:limit] {
		fmt.Fprintf(&b, "\nID: %s\n", e.ID)
		fmt.Fprintf(&b, "%s: %s\n", p.document, e.Document)
		b.WriteString(strings.Repeat("-", 50) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
