package vectorstore

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/laigent/internal/store"
)

var _ Store = (*SQLite)(nil)

// SQLite keeps vectors in the local laigent database and ranks them by brute
// force cosine similarity.
type SQLite struct {
	db store.Storage

	mu    sync.RWMutex
	index string
}

func NewSQLite(db store.Storage) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Name() string {
	return "sqlite"
}

func (s *SQLite) Connect(ctx context.Context, index string) error {
	if index == "" {
		return errors.New("sqlite index name is required")
	}
	if _, err := s.db.CountVectors(index); err != nil {
		return err
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

func (s *SQLite) Upsert(ctx context.Context, vectors []Vector) error {
	index, err := s.connected()
	if err != nil {
		return err
	}

	records := make([]store.VectorRecord, len(vectors))
	for i, v := range vectors {
		records[i] = store.VectorRecord{ID: v.ID, Vector: v.Values, Metadata: v.Metadata}
	}
	return s.db.UpsertVectors(index, records)
}

func (s *SQLite) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	index, err := s.connected()
	if err != nil {
		return nil, err
	}

	scored, err := s.db.SearchVectors(index, vector, topK, filter)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(scored))
	for i, r := range scored {
		matches[i] = Match{ID: r.ID, Score: r.Similarity, Metadata: r.Metadata}
	}
	return matches, nil
}

func (s *SQLite) DeleteAll(ctx context.Context) error {
	index, err := s.connected()
	if err != nil {
		return err
	}
	return s.db.DeleteVectors(index)
}

func (s *SQLite) DeleteByIDs(ctx context.Context, ids []string) error {
	index, err := s.connected()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.db.DeleteVectors(index, ids...)
}

func (s *SQLite) connected() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == "" {
		return "", ErrNotConnected
	}
	return s.index, nil
}
