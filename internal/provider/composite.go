package provider

import "context"

// Composite routes completions and embeddings to different providers, so a
// completion-only provider (anthropic, cli) can still back agent memory.
type Composite struct {
	Completer Provider
	Embedder  Provider
}

func NewComposite(completer, embedder Provider) *Composite {
	return &Composite{Completer: completer, Embedder: embedder}
}

func (c *Composite) Name() string {
	return c.Completer.Name() + "+" + c.Embedder.Name()
}

func (c *Composite) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return c.Completer.Complete(ctx, req)
}

func (c *Composite) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.Embedder.Embed(ctx, text)
}

func (c *Composite) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.Embedder.EmbedBatch(ctx, texts)
}
