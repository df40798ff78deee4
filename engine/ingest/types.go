package ingest

import (
	"fmt"
	"time"

	"github.com/bippobippo/hospital-vectors/engine/hospital"
)

// Stage names reported in BatchError and the errors metric.
const (
	StageFormat = "format"
	StageEmbed  = "embed"
	StageStore  = "store"
)

// Batch is a contiguous run of records starting at Offset in the sample.
type Batch struct {
	Index   int
	Offset  int
	Records []hospital.Record
}

// FormattedBatch carries the documents and ids of a Batch.
type FormattedBatch struct {
	Batch
	IDs       []string
	Documents []string
}

// EmbeddedBatch adds one embedding per document.
type EmbeddedBatch struct {
	FormattedBatch
	Embeddings [][]float32
}

// BatchError reports the batch a run stopped at. Batches before Index are
// already stored; a rerun may resume from Offset.
type BatchError struct {
	Index  int
	Offset int
	Stage  string
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("ingest: batch %d (offset %d) failed at %s: %v", e.Index, e.Offset, e.Stage, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Summary describes a finished or aborted run.
type Summary struct {
	Index      string    `json:"index"`
	Collection string    `json:"collection"`
	Backend    string    `json:"backend"`
	Records    int       `json:"records"`
	Batches    int       `json:"batches"`
	Stored     int       `json:"stored"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Verified   bool      `json:"verified"`
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }
