package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

var _ Store = (*Chromem)(nil)

var errNoEmbedding = errors.New("documents must carry an embedding")

// Chromem is an embedded vector database. With an empty directory it lives
// only in memory; otherwise collections are persisted under dir.
type Chromem struct {
	db *chromem.DB

	mu    sync.RWMutex
	index string
}

func NewChromem(dir string) (*Chromem, error) {
	if dir == "" {
		return &Chromem{db: chromem.NewDB()}, nil
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &Chromem{db: db}, nil
}

// Clone returns an unconnected adapter sharing the same database, so several
// agents can use one persistent directory.
func (c *Chromem) Clone() *Chromem {
	return &Chromem{db: c.db}
}

func (c *Chromem) Name() string {
	return "chromem"
}

func (c *Chromem) Connect(ctx context.Context, index string) error {
	if index == "" {
		return errors.New("chromem collection name is required")
	}

	if _, err := c.db.GetOrCreateCollection(index, nil, rejectEmbedding); err != nil {
		return fmt.Errorf("open collection %s: %w", index, err)
	}

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
	return nil
}

func (c *Chromem) Upsert(ctx context.Context, vectors []Vector) error {
	col, err := c.collection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		docs[i] = chromem.Document{
			ID:        v.ID,
			Content:   v.Metadata["text"],
			Embedding: v.Values,
			Metadata:  v.Metadata,
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (c *Chromem) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	col, err := c.collection()
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size
	n := col.Count()
	if n == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{ID: r.ID, Score: r.Similarity, Metadata: r.Metadata}
	}
	return matches, nil
}

// DeleteAll drops the collection. Every adapter sharing the database looks
// the collection up by name, so the next call on any of them recreates it.
func (c *Chromem) DeleteAll(ctx context.Context) error {
	c.mu.RLock()
	index := c.index
	c.mu.RUnlock()

	if index == "" {
		return ErrNotConnected
	}
	if err := c.db.DeleteCollection(index); err != nil {
		return fmt.Errorf("delete collection %s: %w", index, err)
	}
	return nil
}

func (c *Chromem) DeleteByIDs(ctx context.Context, ids []string) error {
	col, err := c.collection()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return col.Delete(ctx, nil, nil, ids...)
}

func (c *Chromem) collection() (*chromem.Collection, error) {
	c.mu.RLock()
	index := c.index
	c.mu.RUnlock()

	if index == "" {
		return nil, ErrNotConnected
	}
	col, err := c.db.GetOrCreateCollection(index, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", index, err)
	}
	return col, nil
}

func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbedding
}
