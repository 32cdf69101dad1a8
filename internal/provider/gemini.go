package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiEmbeddingModel = "text-embedding-004"

type GeminiProvider struct {
	client         *genai.Client
	embeddingModel string
}

func NewGeminiProvider(apiKey, embeddingModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if embeddingModel == "" {
		embeddingModel = DefaultGeminiEmbeddingModel
	}

	return &GeminiProvider{
		client:         client,
		embeddingModel: embeddingModel,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := p.client.GenerativeModel(req.Model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates returned")
	}

	var content string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			content += string(text)
		}
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return &Completion{Content: content, Usage: usage}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	em := p.client.EmbeddingModel(p.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return res.Embedding.Values, nil
}

func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := p.client.EmbeddingModel(p.embeddingModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embedding failed: %w", err)
	}
	if err := checkBatch(texts, len(res.Embeddings)); err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		vecs[i] = e.Values
	}
	return vecs, nil
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
