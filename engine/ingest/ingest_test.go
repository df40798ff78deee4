package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bippobippo/hospital-vectors/engine/embed"
	"github.com/bippobippo/hospital-vectors/engine/hospital"
	"github.com/bippobippo/hospital-vectors/engine/semantic"
	"github.com/bippobippo/hospital-vectors/pkg/metrics"
)

const dims = 4

func sample(n int) []hospital.Record {
	recs := make([]hospital.Record, n)
	for i := range recs {
		recs[i] = hospital.Record{
			Name:      hospital.Text(fmt.Sprintf("병원%d", i)),
			Address:   "서울",
			Doctors:   hospital.Count(i),
			Emergency: hospital.Count(i % 2),
		}
	}
	return recs
}

// fakeEmbedder returns a deterministic vector and counts calls.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn int // 1-based call number that fails, 0 never
	texts  []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, text)
	if f.failOn != 0 && f.calls == f.failOn {
		return nil, errors.New("provider unavailable")
	}
	v := make([]float32, dims)
	v[len(text)%dims] = 1
	v[(len(text)+1)%dims] = 0.25
	return v, nil
}

// recordingWriter remembers every Add call.
type recordingWriter struct {
	batches [][]string
	err     error
}

func (w *recordingWriter) Add(_ context.Context, embeddings [][]float32, documents, ids []string) error {
	if w.err != nil {
		return w.err
	}
	if len(embeddings) != len(documents) || len(documents) != len(ids) {
		return semantic.ErrMisaligned
	}
	w.batches = append(w.batches, ids)
	return nil
}

type countingProgress struct {
	total, done, finished int
}

func (p *countingProgress) Start(total int) { p.total = total }
func (p *countingProgress) Advance(n int)   { p.done += n }
func (p *countingProgress) Finish()         { p.finished++ }

func TestEntryID(t *testing.T) {
	assert.Equal(t, "hospital_0", EntryID(0))
	assert.Equal(t, "hospital_24", EntryID(24))
}

func TestBatches(t *testing.T) {
	b := Batches(sample(25), 10)
	require.Len(t, b, 3)
	assert.Equal(t, []int{0, 10, 20}, []int{b[0].Offset, b[1].Offset, b[2].Offset})
	assert.Equal(t, []int{10, 10, 5}, []int{len(b[0].Records), len(b[1].Records), len(b[2].Records)})
	assert.Equal(t, 2, b[2].Index)
	assert.Empty(t, Batches(nil, 10))
}

func TestRun_SingleFullBatch(t *testing.T) {
	e := &fakeEmbedder{}
	w := &recordingWriter{}
	p := &countingProgress{}

	sum, err := Run(context.Background(), Deps{
		Embedder: e, Store: w, Locale: hospital.Korean, BatchSize: 10, Progress: p,
		Logger: zaptest.NewLogger(t),
	}, sample(10))
	require.NoError(t, err)

	assert.Equal(t, 10, e.calls)
	require.Len(t, w.batches, 1)
	assert.Equal(t, "hospital_0", w.batches[0][0])
	assert.Equal(t, "hospital_9", w.batches[0][9])
	assert.Equal(t, 10, sum.Stored)
	assert.Equal(t, 1, sum.Batches)
	assert.Equal(t, 10, p.total)
	assert.Equal(t, 10, p.done)
	assert.Equal(t, 1, p.finished)
}

func TestRun_PartialLastBatch(t *testing.T) {
	w := &recordingWriter{}
	sum, err := Run(context.Background(), Deps{
		Embedder: &fakeEmbedder{}, Store: w, Locale: hospital.Korean, BatchSize: 10,
	}, sample(25))
	require.NoError(t, err)

	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[0], 10)
	assert.Len(t, w.batches[1], 10)
	assert.Equal(t, []string{"hospital_20", "hospital_21", "hospital_22", "hospital_23", "hospital_24"}, w.batches[2])
	assert.Equal(t, 25, sum.Stored)
	assert.Equal(t, 25, sum.Records)
	assert.Equal(t, 3, sum.Batches)
}

func TestRun_EmptySample(t *testing.T) {
	e := &fakeEmbedder{}
	w := &recordingWriter{}
	p := &countingProgress{}
	sum, err := Run(context.Background(), Deps{Embedder: e, Store: w, Progress: p}, nil)
	require.NoError(t, err)

	assert.Zero(t, e.calls)
	assert.Empty(t, w.batches)
	assert.Zero(t, sum.Stored)
	assert.Equal(t, 1, p.finished)
}

func TestRun_EmbedFailureStopsAtBatch(t *testing.T) {
	// call 15 falls in the second batch of 10
	e := &fakeEmbedder{failOn: 15}
	w := &recordingWriter{}
	m := metrics.NewRun()

	sum, err := Run(context.Background(), Deps{
		Embedder: e, Store: w, Locale: hospital.Korean, BatchSize: 10, Metrics: m,
	}, sample(25))

	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 1, be.Index)
	assert.Equal(t, 10, be.Offset)
	assert.Equal(t, StageEmbed, be.Stage)
	assert.Contains(t, err.Error(), "provider unavailable")

	assert.Len(t, w.batches, 1, "first batch stays stored, later batches never run")
	assert.Equal(t, 10, sum.Stored)
	assert.Equal(t, 15, e.calls)
}

func TestRun_StoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	_, err := Run(context.Background(), Deps{
		Embedder: &fakeEmbedder{}, Store: &recordingWriter{err: boom}, BatchSize: 10,
	}, sample(3))

	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, StageStore, be.Stage)
	assert.Equal(t, 0, be.Offset)
	assert.ErrorIs(t, err, boom)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &fakeEmbedder{}
	_, err := Run(ctx, Deps{Embedder: e, Store: &recordingWriter{}}, sample(5))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, e.calls)
}

func TestNewEmbed_ParallelKeepsOrder(t *testing.T) {
	fb := FormattedBatch{Documents: []string{"a", "bb", "ccc", "dddd", "eeeee"}}
	e := embed.Func(func(_ context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text))}, nil
	})

	eb, err := NewEmbed(e, 3)(context.Background(), fb).Unwrap()
	require.NoError(t, err)
	for i, v := range eb.Embeddings {
		assert.Equal(t, float32(i+1), v[0])
	}
}

func TestNewFormat(t *testing.T) {
	b := Batch{Index: 2, Offset: 20, Records: sample(2)}
	fb, err := NewFormat(hospital.English)(context.Background(), b).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []string{"hospital_20", "hospital_21"}, fb.IDs)
	assert.Equal(t, hospital.Format(b.Records[1], hospital.English), fb.Documents[1])
}

func TestRun_EmbeddedTextIsStoredDocument(t *testing.T) {
	ctx := context.Background()
	store, err := semantic.NewChromem("", "hospital_info", dims, false, nil)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))

	e := &fakeEmbedder{}
	recs := sample(12)
	_, err = Run(ctx, Deps{Embedder: e, Store: store, Locale: hospital.Korean, BatchSize: 5}, recs)
	require.NoError(t, err)

	entries, err := Verify(ctx, store, recs, hospital.Korean)
	require.NoError(t, err)
	require.Len(t, entries, 12)
	for i, en := range entries {
		assert.Equal(t, EntryID(i), en.ID)
		assert.Equal(t, e.texts[i], en.Document)
	}
}
