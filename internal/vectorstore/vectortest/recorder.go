// Package vectortest provides a recording vectorstore.Store for tests.
package vectortest

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/laigent/internal/vectorstore"
)

// Recorder wraps a Store and records every call made through it.
type Recorder struct {
	vectorstore.Store

	mu       sync.Mutex
	Connects []string
	Upserts  [][]vectorstore.Vector
	Queries  []RecordedQuery
	Deleted  [][]string
	Cleared  int
}

type RecordedQuery struct {
	TopK   int
	Filter map[string]string
}

func NewRecorder(inner vectorstore.Store) *Recorder {
	return &Recorder{Store: inner}
}

func (r *Recorder) Connect(ctx context.Context, index string) error {
	r.mu.Lock()
	r.Connects = append(r.Connects, index)
	r.mu.Unlock()
	return r.Store.Connect(ctx, index)
}

func (r *Recorder) Upsert(ctx context.Context, vectors []vectorstore.Vector) error {
	r.mu.Lock()
	r.Upserts = append(r.Upserts, append([]vectorstore.Vector(nil), vectors...))
	r.mu.Unlock()
	return r.Store.Upsert(ctx, vectors)
}

func (r *Recorder) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]vectorstore.Match, error) {
	r.mu.Lock()
	r.Queries = append(r.Queries, RecordedQuery{TopK: topK, Filter: filter})
	r.mu.Unlock()
	return r.Store.Query(ctx, vector, topK, filter)
}

func (r *Recorder) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	r.Cleared++
	r.mu.Unlock()
	return r.Store.DeleteAll(ctx)
}

func (r *Recorder) DeleteByIDs(ctx context.Context, ids []string) error {
	r.mu.Lock()
	r.Deleted = append(r.Deleted, ids)
	r.mu.Unlock()
	return r.Store.DeleteByIDs(ctx, ids)
}

// Calls returns the total number of recorded calls.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Connects) + len(r.Upserts) + len(r.Queries) + len(r.Deleted) + r.Cleared
}
