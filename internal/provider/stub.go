package provider

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"
)

// StubDimensions is the vector size produced by StubProvider.
const StubDimensions = 64

// StubProvider is a deterministic provider for tests and offline runs.
// Completions are served from Responses in order; embeddings are hashed
// bags of words, so identical texts embed identically and shared words
// raise cosine similarity.
type StubProvider struct {
	Responses []Completion
	Latency   time.Duration

	mu         sync.Mutex
	Requests   []CompletionRequest
	EmbedCalls int
	BatchSizes []int
}

func NewStubProvider(responses ...string) *StubProvider {
	p := &StubProvider{}
	for _, r := range responses {
		p.Responses = append(p.Responses, Completion{
			Content: r,
			Usage:   Usage{TotalTokens: len(strings.Fields(r))},
		})
	}
	return p
}

func (m *StubProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)

	if len(m.Responses) == 0 {
		return &Completion{Content: "Task complete."}, nil
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &resp, nil
}

func (m *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.EmbedCalls++
	m.mu.Unlock()

	return HashEmbedding(text, StubDimensions), nil
}

func (m *StubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.EmbedCalls++
	m.BatchSizes = append(m.BatchSizes, len(texts))
	m.mu.Unlock()

	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = HashEmbedding(t, StubDimensions)
	}
	return vecs, nil
}

func (m *StubProvider) Name() string {
	return "stub"
}

// LastRequest returns the most recent completion request.
func (m *StubProvider) LastRequest() (CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return CompletionRequest{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

func (m *StubProvider) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Latency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.Latency):
		return nil
	}
}

// HashEmbedding maps text to a unit vector by hashing its lower-cased words into dims buckets.
func HashEmbedding(text string, dims int) []float32 {
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
