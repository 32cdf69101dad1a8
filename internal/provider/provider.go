package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingsUnsupported is returned by providers that only offer completions.
var ErrEmbeddingsUnsupported = errors.New("embeddings not supported by provider")

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single system+user exchange.
type CompletionRequest struct {
	System    string
	User      string
	Model     string
	JSONMode  bool // ask the provider to enforce a JSON object response
	MaxTokens int  // 0 leaves the provider default
}

// Messages returns the request as an ordered chat transcript.
func (r CompletionRequest) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.System})
	}
	return append(msgs, Message{Role: "user", Content: r.User})
}

// Completion represents the output from the model.
type Completion struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for AI model interactions.
type Provider interface {
	// Complete sends one system+user exchange and returns the model's reply.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one call. The result has the same order and length as texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}

func checkBatch(texts []string, got int) error {
	if got != len(texts) {
		return fmt.Errorf("expected %d embeddings, got %d", len(texts), got)
	}
	return nil
}
