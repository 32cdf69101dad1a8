package agent

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/felixgeelhaar/laigent/internal/chunker"
	"github.com/felixgeelhaar/laigent/internal/events"
	"github.com/felixgeelhaar/laigent/internal/vectorstore"
)

const (
	// BatchSize is the maximum number of vectors embedded and upserted per call.
	BatchSize = 100
	// DefaultSearchLimit is used when SearchMemory is given a non-positive limit.
	DefaultSearchLimit = 5

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Metadata keys written on every memory record. They take precedence over
// caller metadata with the same name.
const (
	KeyText        = "text"
	KeyTimestamp   = "timestamp"
	KeyAgent       = "agent"
	KeyContentType = "contentType"
	KeyChunkIndex  = "chunkIndex"
	KeyTotalChunks = "totalChunks"
	KeyOriginalID  = "originalId"
)

var reservedKeys = map[string]bool{
	KeyText: true, KeyTimestamp: true, KeyAgent: true, KeyContentType: true,
	KeyChunkIndex: true, KeyTotalChunks: true, KeyOriginalID: true,
}

// Memory is one stored chunk returned by SearchMemory.
type Memory struct {
	ID          string
	Score       float32
	Text        string
	Timestamp   string
	Agent       string
	ContentType chunker.ContentType
	ChunkIndex  int
	TotalChunks int
	OriginalID  string
	// Metadata holds the caller supplied fields.
	Metadata map[string]string
}

// SaveInMemory chunks content, embeds the chunks and upserts them batch by
// batch. It returns the record ids in chunk order. A failing batch aborts the
// call; batches already upserted stay stored.
func (a *Agent) SaveInMemory(ctx context.Context, content string, contentType chunker.ContentType, metadata map[string]string) ([]string, error) {
	if !a.ready.Load() {
		return nil, ErrNotReady
	}

	ctx, span := a.obs.StartSpan(ctx, "Agent.SaveInMemory")
	defer span.End()

	a.log.Info(fmt.Sprintf("Processing %s content for storage", contentType))

	chunks, err := chunker.Split(content, contentType, metadata)
	if err != nil {
		a.log.Error(err, "Failed to store content")
		return nil, err
	}

	now := a.now()
	originalID := fmt.Sprintf("%s-%d", a.name, now.UnixNano())
	timestamp := now.UTC().Format(timestampLayout)

	ids := make([]string, 0, len(chunks))
	for start := 0; start < len(chunks); start += a.batchSize {
		end := min(start+a.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		embeddings, err := a.llm.EmbedBatch(ctx, texts)
		if err != nil {
			a.log.Error(err, "Failed to store content")
			return ids, fmt.Errorf("agent %s: embed batch at chunk %d: %w", a.name, start, err)
		}
		if len(embeddings) != len(batch) {
			err := fmt.Errorf("agent %s: expected %d embeddings, got %d", a.name, len(batch), len(embeddings))
			a.log.Error(err, "Failed to store content")
			return ids, err
		}

		vectors := make([]vectorstore.Vector, len(batch))
		batchIDs := make([]string, len(batch))
		for i, c := range batch {
			id := fmt.Sprintf("%s-%d", originalID, c.Metadata.ChunkIndex)
			batchIDs[i] = id
			vectors[i] = vectorstore.Vector{
				ID:       id,
				Values:   embeddings[i],
				Metadata: a.recordMetadata(c, timestamp, originalID),
			}
		}

		if err := a.vectors.Upsert(ctx, vectors); err != nil {
			a.log.Error(err, "Failed to store content")
			return ids, fmt.Errorf("agent %s: upsert batch at chunk %d: %w", a.name, start, err)
		}
		ids = append(ids, batchIDs...)
		a.log.Info(fmt.Sprintf("Stored batch of %d chunks", len(vectors)))
	}

	a.log.Success(fmt.Sprintf("Successfully stored %d chunks with original ID: %s", len(chunks), originalID))
	a.bus.Emit(events.MemoryStored, a.name, map[string]any{
		"original_id": originalID,
		"chunks":      len(chunks),
	})
	return ids, nil
}

func (a *Agent) recordMetadata(c chunker.Chunk, timestamp, originalID string) map[string]string {
	meta := make(map[string]string, len(c.Metadata.Fields)+len(reservedKeys))
	for k, v := range c.Metadata.Fields {
		meta[k] = v
	}
	meta[KeyText] = c.Text
	meta[KeyTimestamp] = timestamp
	meta[KeyAgent] = a.name
	meta[KeyContentType] = string(c.Metadata.ContentType)
	meta[KeyChunkIndex] = strconv.Itoa(c.Metadata.ChunkIndex)
	meta[KeyTotalChunks] = strconv.Itoa(c.Metadata.TotalChunks)
	meta[KeyOriginalID] = originalID
	return meta
}

// SearchMemory returns the agent's memories closest to query, most relevant
// first. Results are always restricted to this agent; filter narrows further.
func (a *Agent) SearchMemory(ctx context.Context, query string, limit int, filter map[string]string) ([]Memory, error) {
	if !a.ready.Load() {
		return nil, ErrNotReady
	}

	ctx, span := a.obs.StartSpan(ctx, "Agent.SearchMemory")
	defer span.End()

	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	a.log.Info("Searching memory for: " + query)

	vec, err := a.llm.Embed(ctx, query)
	if err != nil {
		a.log.Error(err, "Failed to search memory")
		return nil, fmt.Errorf("agent %s: embed query: %w", a.name, err)
	}

	where := make(map[string]string, len(filter)+1)
	for k, v := range filter {
		where[k] = v
	}
	where[KeyAgent] = a.name

	matches, err := a.vectors.Query(ctx, vec, limit, where)
	if err != nil {
		a.log.Error(err, "Failed to search memory")
		return nil, fmt.Errorf("agent %s: query: %w", a.name, err)
	}

	memories := make([]Memory, len(matches))
	for i, m := range matches {
		memories[i] = memoryFromMatch(m)
	}

	a.log.Success(fmt.Sprintf("Found %d relevant memories", len(memories)))
	a.bus.Emit(events.MemorySearched, a.name, map[string]any{"query": query, "results": len(memories)})
	return memories, nil
}

// ForgetMemories deletes the given record ids.
func (a *Agent) ForgetMemories(ctx context.Context, ids []string) error {
	if !a.ready.Load() {
		return ErrNotReady
	}
	if err := a.vectors.DeleteByIDs(ctx, ids); err != nil {
		a.log.Error(err, "Failed to forget memories")
		return fmt.Errorf("agent %s: delete: %w", a.name, err)
	}
	a.log.Success(fmt.Sprintf("Forgot %d memories", len(ids)))
	a.bus.Emit(events.MemoryForgotten, a.name, map[string]any{"ids": len(ids)})
	return nil
}

func memoryFromMatch(m vectorstore.Match) Memory {
	mem := Memory{
		ID:          m.ID,
		Score:       m.Score,
		Text:        m.Metadata[KeyText],
		Timestamp:   m.Metadata[KeyTimestamp],
		Agent:       m.Metadata[KeyAgent],
		ContentType: chunker.ContentType(m.Metadata[KeyContentType]),
		OriginalID:  m.Metadata[KeyOriginalID],
		Metadata:    make(map[string]string),
	}
	mem.ChunkIndex, _ = strconv.Atoi(m.Metadata[KeyChunkIndex])
	mem.TotalChunks, _ = strconv.Atoi(m.Metadata[KeyTotalChunks])

	for k, v := range m.Metadata {
		if !reservedKeys[k] {
			mem.Metadata[k] = v
		}
	}
	return mem
}

// Time parses the memory timestamp.
func (m Memory) Time() (time.Time, error) {
	return time.Parse(timestampLayout, m.Timestamp)
}
