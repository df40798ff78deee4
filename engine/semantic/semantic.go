// Package semantic persists (id, embedding, document) entries in a vector
// collection and reads them back.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bippobippo/hospital-vectors/pkg/config"
)

// ErrMisaligned is returned by Add when the three inputs differ in length.
var ErrMisaligned = errors.New("semantic: embeddings, documents and ids differ in length")

// Entry is one stored document.
type Entry struct {
	ID       string `json:"id"`
	Document string `json:"document"`
}

// Store is a cosine-similarity collection of precomputed embeddings.
type Store interface {
	// Reset drops the collection if it exists and creates it empty.
	Reset(ctx context.Context) error
	// Add stores position-aligned embeddings, documents and ids.
	Add(ctx context.Context, embeddings [][]float32, documents, ids []string) error
	// GetAll returns every entry ordered by id.
	GetAll(ctx context.Context) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open builds the configured backend.
func Open(cfg config.StoreConfig, log *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "chromem":
		return NewChromem(cfg.Path, cfg.Collection, cfg.Dims, cfg.Compress, log)
	case "qdrant":
		return NewQdrant(cfg.QdrantAddr, cfg.Collection, cfg.Dims, log)
	default:
		return nil, fmt.Errorf("semantic: unknown backend %q", cfg.Backend)
	}
}

func checkAligned(embeddings [][]float32, documents, ids []string) error {
	if len(embeddings) != len(documents) || len(documents) != len(ids) {
		return fmt.Errorf("%w: %d embeddings, %d documents, %d ids",
			ErrMisaligned, len(embeddings), len(documents), len(ids))
	}
	return nil
}

// SortEntries orders entries by the number after the last underscore of
// their id, so hospital_2 precedes hospital_10. Ids without a number sort
// after numbered ones, lexically.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ni, oki := idNumber(entries[i].ID)
		nj, okj := idNumber(entries[j].ID)
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		default:
			return entries[i].ID < entries[j].ID
		}
	})
}

func idNumber(id string) (int, bool) {
	i := strings.LastIndexByte(id, '_')
	n, err := strconv.Atoi(id[i+1:])
	return n, err == nil
}
