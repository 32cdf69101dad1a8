// Package vectorstore adapts vector databases to the small connect, upsert,
// query and delete surface agents need for their memory.
package vectorstore

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by every call made before Connect succeeded.
var ErrNotConnected = errors.New("vector store not connected")

// Vector is one embedding plus its string metadata.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// Match is a query hit. Matches are returned by descending Score.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Store is the vector database collaborator. Filters are conjunctions of
// exact-match metadata constraints evaluated by the backend.
type Store interface {
	Connect(ctx context.Context, index string) error
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error)
	DeleteAll(ctx context.Context) error
	DeleteByIDs(ctx context.Context, ids []string) error
	Name() string
}
