// Package source reads hospital records from Elasticsearch.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/bippobippo/hospital-vectors/engine/hospital"
	"github.com/bippobippo/hospital-vectors/pkg/config"
)

// ResponseError is a non-2xx answer from the search service.
type ResponseError struct {
	Status int
	Body   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("source: search failed with status %d: %s", e.Status, e.Body)
}

// Reader samples the hospital index.
type Reader struct {
	es    *elasticsearch.Client
	index string
	sort  string
	log   *zap.Logger
}

// New connects a Reader from cfg. transport may be nil.
func New(cfg config.SearchConfig, transport http.RoundTripper, log *zap.Logger) (*Reader, error) {
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("source: client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{es: es, index: cfg.Index, sort: cfg.SortField, log: log}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Sample returns up to size records from a single match-all page, in the
// order the index returns them. An empty index yields an empty slice.
// When the index rejects the configured sort field the page is fetched
// unsorted instead.
func (r *Reader) Sample(ctx context.Context, size int) ([]hospital.Record, error) {
	sr, err := r.search(ctx, r.query(size, r.sort))
	var re *ResponseError
	if r.sort != "" && errors.As(err, &re) && re.Status == http.StatusBadRequest {
		r.log.Warn("sort rejected by index, sampling unsorted",
			zap.String("index", r.index), zap.String("sort_field", r.sort), zap.String("reason", re.Body))
		sr, err = r.search(ctx, r.query(size, ""))
	}
	if err != nil {
		return nil, err
	}

	records := make([]hospital.Record, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		rec, err := hospital.Decode(h.ID, h.Source)
		if err != nil {
			return nil, fmt.Errorf("source: record %s: %w", h.ID, err)
		}
		records = append(records, rec)
	}

	if len(records) < size {
		r.log.Warn("index returned fewer records than requested",
			zap.String("index", r.index), zap.Int("requested", size), zap.Int("returned", len(records)))
	}
	r.log.Info("sampled records", zap.String("index", r.index), zap.Int("count", len(records)))
	return records, nil
}

func (r *Reader) search(ctx context.Context, query map[string]any) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("source: encode query: %w", err)
	}

	res, err := r.es.Search(
		r.es.Search.WithContext(ctx),
		r.es.Search.WithIndex(r.index),
		r.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("source: search %s: %w", r.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &ResponseError{Status: res.StatusCode, Body: string(raw)}
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("source: decode response: %w", err)
	}
	return &sr, nil
}

func (r *Reader) query(size int, sort string) map[string]any {
	q := map[string]any{
		"size":  size,
		"query": map[string]any{"match_all": map[string]any{}},
	}
	if sort != "" {
		q["sort"] = []any{map[string]any{sort: map[string]any{"order": "asc", "unmapped_type": "keyword"}}}
	}
	return q
}
