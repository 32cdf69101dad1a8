package store

// VectorRecord is one embedded chunk persisted in the vectors table.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// ScoredRecord is a VectorRecord ranked against a query vector.
type ScoredRecord struct {
	VectorRecord
	Similarity float32
}

// Storage defines the interface for persistence
type Storage interface {
	// Configuration Management
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
	ConfigKeys() ([]string, error)

	// Vector Management, scoped by index name
	UpsertVectors(index string, records []VectorRecord) error
	SearchVectors(index string, query []float32, limit int, filter map[string]string) ([]ScoredRecord, error)
	DeleteVectors(index string, ids ...string) error
	CountVectors(index string) (int, error)

	Close() error
}
