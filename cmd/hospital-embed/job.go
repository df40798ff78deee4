package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/bippobippo/hospital-vectors/engine/embed"
	"github.com/bippobippo/hospital-vectors/engine/hospital"
	"github.com/bippobippo/hospital-vectors/engine/ingest"
	"github.com/bippobippo/hospital-vectors/engine/semantic"
	"github.com/bippobippo/hospital-vectors/engine/source"
	"github.com/bippobippo/hospital-vectors/pkg/config"
	"github.com/bippobippo/hospital-vectors/pkg/metrics"
	"github.com/bippobippo/hospital-vectors/pkg/natsutil"
	"github.com/bippobippo/hospital-vectors/pkg/telemetry"
)

type messages struct {
	selected, progress, done string
}

var console = map[hospital.Locale]messages{
	hospital.Korean: {
		selected: "테스트용 %d개의 병원 데이터를 선택했습니다.\n",
		progress: "병원 데이터 처리 중",
		done:     "벡터 DB 초기화 완료!\n",
	},
	hospital.English: {
		selected: "Selected %d hospital records.\n",
		progress: "Processing hospitals",
		done:     "Vector DB initialised.\n",
	},
}

// runJob resets the collection, stores a fresh sample and prints the result.
func runJob(ctx context.Context, cfg config.Config, out io.Writer, log *zap.Logger) (ingest.Summary, error) {
	locale := hospital.Locale(cfg.Pipeline.Locale)
	msg := console[locale]

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return ingest.Summary{}, err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	m := metrics.NewRun()
	if cfg.Metrics.PushURL != "" {
		defer func() {
			if err := m.Push(context.Background(), cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
				log.Warn("metrics push failed", zap.Error(err))
			}
		}()
	}

	store, err := semantic.Open(cfg.Store, log)
	if err != nil {
		return ingest.Summary{}, err
	}
	defer store.Close()
	if err := store.Reset(ctx); err != nil {
		m.Failed("reset")
		return ingest.Summary{}, err
	}

	reader, err := source.New(cfg.Search, nil, log)
	if err != nil {
		return ingest.Summary{}, err
	}
	records, err := reader.Sample(ctx, cfg.Search.SampleSize)
	if err != nil {
		m.Failed("fetch")
		return ingest.Summary{}, err
	}
	m.RecordsFetched(len(records))
	fmt.Fprintf(out, msg.selected, len(records))

	embedder, err := embed.New(cfg.Embedding, log)
	if err != nil {
		return ingest.Summary{}, err
	}

	sum, err := ingest.Run(ctx, ingest.Deps{
		Embedder:  embedder,
		Store:     store,
		Locale:    locale,
		BatchSize: cfg.Pipeline.BatchSize,
		Workers:   cfg.Embedding.Workers,
		Progress:  ingest.NewConsoleProgress(out, msg.progress),
		Metrics:   m,
		Logger:    log,
	}, records)
	sum.Index = cfg.Search.Index
	sum.Collection = cfg.Store.Collection
	sum.Backend = cfg.Store.Backend
	if err != nil {
		return sum, err
	}
	fmt.Fprint(out, msg.done)

	var entries []semantic.Entry
	if cfg.Pipeline.Verify {
		entries, err = ingest.Verify(ctx, store, records, locale)
		if err != nil {
			m.Failed("verify")
			return sum, err
		}
		sum.Verified = true
	} else if entries, err = store.GetAll(ctx); err != nil {
		return sum, err
	}
	if err := ingest.PrintStored(out, entries, cfg.Pipeline.SampleEntries, locale); err != nil {
		return sum, err
	}
	m.Succeeded(time.Now())

	log.Info("run complete",
		zap.String("collection", sum.Collection), zap.Int("stored", sum.Stored),
		zap.Bool("verified", sum.Verified), zap.Duration("took", sum.Duration()))

	if cfg.Notify.NATSURL != "" {
		if err := natsutil.Notify(ctx, cfg.Notify.NATSURL, cfg.Notify.Subject, sum); err != nil {
			log.Warn("completion event not published", zap.Error(err))
		}
	}
	return sum, nil
}

// verifyJob compares the stored collection with a fresh sample.
func verifyJob(ctx context.Context, cfg config.Config, out io.Writer, log *zap.Logger) error {
	locale := hospital.Locale(cfg.Pipeline.Locale)

	store, err := semantic.Open(cfg.Store, log)
	if err != nil {
		return err
	}
	defer store.Close()

	reader, err := source.New(cfg.Search, nil, log)
	if err != nil {
		return err
	}
	records, err := reader.Sample(ctx, cfg.Search.SampleSize)
	if err != nil {
		return err
	}

	entries, err := ingest.Verify(ctx, store, records, locale)
	if err != nil {
		return err
	}
	log.Info("collection matches sample", zap.Int("entries", len(entries)))
	return ingest.PrintStored(out, entries, cfg.Pipeline.SampleEntries, locale)
}
