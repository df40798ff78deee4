package semantic

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// Chromem keeps the collection in an embedded chromem-go database,
// persisted under a directory or held in memory.
type Chromem struct {
	db         *chromem.DB
	collection string
	dims       int
	log        *zap.Logger
}

var errNoEmbedder = errors.New("semantic: chromem collection only accepts precomputed embeddings")

// precomputed is installed as the collection embedding func so chromem
// never calls out to a provider.
func precomputed(context.Context, string) ([]float32, error) { return nil, errNoEmbedder }

// NewChromem opens a persistent database at path, or an in-memory one when
// path is empty.
func NewChromem(path, collection string, dims int, compress bool, log *zap.Logger) (*Chromem, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("semantic: open chromem %s: %w", path, err)
		}
	}
	return &Chromem{db: db, collection: collection, dims: dims, log: log}, nil
}

// Reset implements Store.
func (c *Chromem) Reset(_ context.Context) error {
	if c.db.GetCollection(c.collection, precomputed) != nil {
		if err := c.db.DeleteCollection(c.collection); err != nil {
			return fmt.Errorf("semantic: delete collection %s: %w", c.collection, err)
		}
		c.log.Info("deleted existing collection", zap.String("collection", c.collection))
	}
	meta := map[string]string{
		"hnsw:space": "cosine",
		"dims":       strconv.Itoa(c.dims),
	}
	if _, err := c.db.CreateCollection(c.collection, meta, precomputed); err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", c.collection, err)
	}
	return nil
}

func (c *Chromem) coll() (*chromem.Collection, error) {
	col := c.db.GetCollection(c.collection, precomputed)
	if col == nil {
		return nil, fmt.Errorf("semantic: collection %s does not exist", c.collection)
	}
	return col, nil
}

// Add implements Store.
func (c *Chromem) Add(ctx context.Context, embeddings [][]float32, documents, ids []string) error {
	if err := checkAligned(embeddings, documents, ids); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	col, err := c.coll()
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(ids))
	for i := range ids {
		if len(embeddings[i]) != c.dims {
			return fmt.Errorf("semantic: %s has %d dimensions, collection expects %d", ids[i], len(embeddings[i]), c.dims)
		}
		docs[i] = chromem.Document{ID: ids[i], Content: documents[i], Embedding: embeddings[i]}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("semantic: add %d documents: %w", len(docs), err)
	}
	return nil
}

// Count implements Store.
func (c *Chromem) Count(_ context.Context) (int, error) {
	col, err := c.coll()
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// GetAll implements Store. chromem has no listing call, so every document
// is fetched by one exhaustive query with a unit probe vector.
func (c *Chromem) GetAll(ctx context.Context) ([]Entry, error) {
	col, err := c.coll()
	if err != nil {
		return nil, err
	}
	n := col.Count()
	if n == 0 {
		return []Entry{}, nil
	}

	probe := make([]float32, c.dims)
	probe[0] = 1
	res, err := col.QueryEmbedding(ctx, probe, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic: list %s: %w", c.collection, err)
	}
	entries := make([]Entry, len(res))
	for i, r := range res {
		entries[i] = Entry{ID: r.ID, Document: r.Content}
	}
	SortEntries(entries)
	return entries, nil
}

// Close implements Store. Persistent writes happen on Add, so there is
// nothing to flush.
func (c *Chromem) Close() error { return nil }

