package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

func (s *SQLiteStore) UpsertVectors(index string, records []VectorRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO vectors (index_name, id, vector, metadata) VALUES (?, ?, ?, ?)
		ON CONFLICT(index_name, id) DO UPDATE SET vector = excluded.vector, metadata = excluded.metadata`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		vecBuf := new(bytes.Buffer)
		if err := binary.Write(vecBuf, binary.LittleEndian, r.Vector); err != nil {
			return fmt.Errorf("failed to encode vector %s: %w", r.ID, err)
		}

		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		if _, err := stmt.Exec(index, r.ID, vecBuf.Bytes(), string(metaJSON)); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// SearchVectors ranks every vector in index by cosine similarity to query.
// Only records whose metadata matches every filter entry exactly are returned.
func (s *SQLiteStore) SearchVectors(index string, query []float32, limit int, filter map[string]string) ([]ScoredRecord, error) {
	// Naive implementation: Load all, compute cosine, sort.
	rows, err := s.db.Query(`SELECT id, vector, metadata FROM vectors WHERE index_name = ?`, index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []ScoredRecord
	for rows.Next() {
		var id string
		var vecBlob []byte
		var metaJSON string

		if err := rows.Scan(&id, &vecBlob, &metaJSON); err != nil {
			return nil, err
		}

		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", id, err)
		}
		if !matches(meta, filter) {
			continue
		}

		vector := make([]float32, len(vecBlob)/4)
		if err := binary.Read(bytes.NewReader(vecBlob), binary.LittleEndian, &vector); err != nil {
			return nil, fmt.Errorf("failed to decode vector %s: %w", id, err)
		}

		scored = append(scored, ScoredRecord{
			VectorRecord: VectorRecord{ID: id, Vector: vector, Metadata: meta},
			Similarity:   cosineSimilarity(query, vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// DeleteVectors removes the given ids from index, or every vector in index
// when no ids are given.
func (s *SQLiteStore) DeleteVectors(index string, ids ...string) error {
	if len(ids) == 0 {
		_, err := s.db.Exec(`DELETE FROM vectors WHERE index_name = ?`, index)
		return err
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, index)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := s.db.Exec(`DELETE FROM vectors WHERE index_name = ? AND id IN (`+placeholders+`)`, args...)
	return err
}

func (s *SQLiteStore) CountVectors(index string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM vectors WHERE index_name = ?`, index).Scan(&n)
	return n, err
}

func matches(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, magA, magB float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}
