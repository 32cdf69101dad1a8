package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/ollama/ollama/api"
)

const DefaultOllamaEmbeddingModel = "nomic-embed-text"

type OllamaProvider struct {
	client         *api.Client
	embeddingModel string
}

// NewOllamaProvider talks to host, falling back to OLLAMA_HOST and then the local default.
func NewOllamaProvider(host, embeddingModel string) (*OllamaProvider, error) {
	if embeddingModel == "" {
		embeddingModel = DefaultOllamaEmbeddingModel
	}

	baseURL := "http://localhost:11434"
	if envURL := os.Getenv("OLLAMA_HOST"); envURL != "" {
		baseURL = envURL
	}
	if host != "" {
		baseURL = host
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", baseURL, err)
	}

	return &OllamaProvider{
		client:         api.NewClient(uri, http.DefaultClient),
		embeddingModel: embeddingModel,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	var apiMsgs []api.Message
	for _, m := range req.Messages() {
		apiMsgs = append(apiMsgs, api.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: apiMsgs,
		Stream:   new(bool), // false
	}
	if req.JSONMode {
		chatReq.Format = json.RawMessage(`"json"`)
	}
	if req.MaxTokens > 0 {
		chatReq.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	var content string
	var usage Usage
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		if resp.Done {
			usage = Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	return &Completion{Content: content, Usage: usage}, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embed(ctx, &api.EmbedRequest{
		Model: p.embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if err := checkBatch(texts, len(resp.Embeddings)); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
