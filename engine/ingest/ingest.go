// Package ingest runs hospital records through format, embed and store
// stages in fixed-size batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bippobippo/hospital-vectors/engine/embed"
	"github.com/bippobippo/hospital-vectors/engine/hospital"
	"github.com/bippobippo/hospital-vectors/pkg/fn"
	"github.com/bippobippo/hospital-vectors/pkg/metrics"
)

// DefaultBatchSize is the number of records embedded and stored together.
const DefaultBatchSize = 10

// Writer is the part of the vector store the pipeline writes to.
type Writer interface {
	Add(ctx context.Context, embeddings [][]float32, documents, ids []string) error
}

// Deps holds the collaborators of a run.
type Deps struct {
	Embedder  embed.Embedder
	Store     Writer
	Locale    hospital.Locale
	BatchSize int
	// Workers bounds concurrent embedding calls inside a batch. <= 1 is sequential.
	Workers  int
	Progress Progress
	Metrics  *metrics.Run
	Logger   *zap.Logger
}

// EntryID is the stored id of the record at offset in the sample.
func EntryID(offset int) string {
	return fmt.Sprintf("hospital_%d", offset)
}

// Batches splits records into batches of size, keeping their order.
func Batches(records []hospital.Record, size int) []Batch {
	chunks := fn.Chunk(records, size)
	out := make([]Batch, len(chunks))
	for i, c := range chunks {
		out[i] = Batch{Index: i, Offset: i * size, Records: c}
	}
	return out
}

// --- Pipeline Stages ---

// NewFormat renders every record of a batch and assigns its id.
func NewFormat(locale hospital.Locale) fn.Stage[Batch, FormattedBatch] {
	return fn.MapStage(func(b Batch) FormattedBatch {
		ids := make([]string, len(b.Records))
		for i := range ids {
			ids[i] = EntryID(b.Offset + i)
		}
		docs := fn.Map(b.Records, func(r hospital.Record) string {
			return hospital.Format(r, locale)
		})
		return FormattedBatch{Batch: b, IDs: ids, Documents: docs}
	})
}

// NewEmbed embeds each document with one provider call, at most workers at
// a time. Embeddings keep document order. The error reported is that of the
// first failing document.
func NewEmbed(e embed.Embedder, workers int) fn.Stage[FormattedBatch, EmbeddedBatch] {
	if workers < 1 {
		workers = 1
	}
	return func(ctx context.Context, fb FormattedBatch) fn.Result[EmbeddedBatch] {
		// the first failure cancels the calls not yet started
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		var (
			once     sync.Once
			firstErr error
		)
		results := fn.ParMapResult(fb.Documents, workers, func(doc string) fn.Result[[]float32] {
			if err := ctx.Err(); err != nil {
				return fn.Err[[]float32](err)
			}
			vec, err := e.Embed(ctx, doc)
			if err != nil {
				once.Do(func() { firstErr = err })
				cancel()
			}
			return fn.FromPair(vec, err)
		})
		vecs, err := fn.Collect(results).Unwrap()
		if err != nil {
			if firstErr != nil {
				err = firstErr
			}
			return fn.Err[EmbeddedBatch](batchErr(fb.Batch, StageEmbed, err))
		}
		return fn.Ok(EmbeddedBatch{FormattedBatch: fb, Embeddings: vecs})
	}
}

// NewStore writes an embedded batch and returns how many entries it stored.
func NewStore(w Writer) fn.Stage[EmbeddedBatch, int] {
	return func(ctx context.Context, eb EmbeddedBatch) fn.Result[int] {
		if err := w.Add(ctx, eb.Embeddings, eb.Documents, eb.IDs); err != nil {
			return fn.Err[int](batchErr(eb.Batch, StageStore, err))
		}
		return fn.Ok(len(eb.IDs))
	}
}

func batchErr(b Batch, stage string, err error) *BatchError {
	return &BatchError{Index: b.Index, Offset: b.Offset, Stage: stage, Err: err}
}

// loggedTap logs entry to a stage at debug level.
func loggedTap[T any](name string, log *zap.Logger, index func(T) int) fn.Stage[T, T] {
	return func(_ context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", zap.String("stage", name), zap.Int("batch", index(t)))
		return fn.Ok(t)
	}
}

// NewPipeline composes Format → Embed → Store with a span per stage.
func NewPipeline(deps Deps) fn.Stage[Batch, int] {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	embedder := embed.Timed(deps.Embedder, deps.Metrics.Embedded)

	formatted := fn.Then(loggedTap(StageFormat, log, func(b Batch) int { return b.Index }),
		fn.TracedStage("ingest.format", NewFormat(deps.Locale)))
	embedded := fn.Then(formatted, fn.Then(loggedTap(StageEmbed, log, func(b FormattedBatch) int { return b.Index }),
		fn.TracedStage("ingest.embed", NewEmbed(embedder, deps.Workers))))
	stored := fn.Then(embedded, fn.Then(loggedTap(StageStore, log, func(b EmbeddedBatch) int { return b.Index }),
		fn.TracedStage("ingest.store", NewStore(deps.Store))))

	return fn.TracedStage("ingest.batch", stored)
}

// Run stores records batch by batch and stops at the first failing batch,
// returning a *BatchError. The summary counts what was stored either way.
func Run(ctx context.Context, deps Deps, records []hospital.Record) (Summary, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	progress := deps.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	size := deps.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	sum := Summary{Records: len(records), StartedAt: time.Now()}
	pipeline := NewPipeline(deps)
	batches := Batches(records, size)

	progress.Start(len(records))
	defer progress.Finish()

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			sum.FinishedAt = time.Now()
			return sum, batchErr(b, StageFormat, err)
		}
		start := time.Now()
		n, err := pipeline(ctx, b).Unwrap()
		if err != nil {
			sum.FinishedAt = time.Now()
			var be *BatchError
			if !errors.As(err, &be) {
				be = batchErr(b, StageStore, err)
				err = be
			}
			stage := be.Stage
			deps.Metrics.Failed(stage)
			log.Error("batch failed", zap.Int("batch", b.Index), zap.Int("offset", b.Offset),
				zap.String("stage", stage), zap.Error(err))
			return sum, err
		}
		sum.Batches++
		sum.Stored += n
		deps.Metrics.BatchStored(n, time.Since(start))
		progress.Advance(n)
		log.Debug("batch stored", zap.Int("batch", b.Index), zap.Int("entries", n))
	}

	sum.FinishedAt = time.Now()
	log.Info("stored all batches",
		zap.Int("records", sum.Records), zap.Int("batches", sum.Batches), zap.Duration("took", sum.Duration()))
	return sum, nil
}
