package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIEmbeddingModel is used when no embedding model override is configured.
const DefaultOpenAIEmbeddingModel = string(openai.AdaEmbeddingV2)

type OpenAIProvider struct {
	client         *openai.Client
	embeddingModel string
}

func NewOpenAIProvider(apiKey, baseURL, embeddingModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	if embeddingModel == "" {
		embeddingModel = DefaultOpenAIEmbeddingModel
	}

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(config),
		embeddingModel: embeddingModel,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	msgs := req.Messages()
	reqMsgs := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		reqMsgs[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  reqMsgs,
		MaxTokens: req.MaxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai completion returned no choices")
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(
		ctx,
		openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(p.embeddingModel),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings failed: %w", err)
	}
	if err := checkBatch(texts, len(resp.Data)); err != nil {
		return nil, err
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vecs := make([][]float32, len(data))
	for i, d := range data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
