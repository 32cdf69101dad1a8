// Package agent combines a system prompt, a model and a vector store into a
// single unit that can be prompted and can remember content.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/laigent/internal/actions"
	"github.com/felixgeelhaar/laigent/internal/chunker"
	"github.com/felixgeelhaar/laigent/internal/events"
	"github.com/felixgeelhaar/laigent/internal/guard"
	"github.com/felixgeelhaar/laigent/internal/observe"
	"github.com/felixgeelhaar/laigent/internal/provider"
	"github.com/felixgeelhaar/laigent/internal/vectorstore"
)

var (
	// ErrInvalidContent is returned for content that does not parse as its
	// declared type, including JSON replies that are not valid JSON.
	ErrInvalidContent = chunker.ErrInvalidContent
	// ErrNotReady is returned by network operations before Initialize succeeded.
	ErrNotReady = errors.New("agent not initialized")
)

var codeFence = regexp.MustCompile("```(?:\\w+\\n)?([\\s\\S]+?)```")

// Agent is safe for concurrent use once initialized.
type Agent struct {
	name         string
	model        string
	systemPrompt string
	response     *ResponseFormat
	index        string
	color        observe.Color

	llm     provider.Provider
	vectors vectorstore.Store
	obs     *observe.Observer
	log     *observe.Logger
	bus     *events.Bus
	actions *actions.Actions

	batchSize int
	now       func() time.Time
	ready     atomic.Bool
}

type options struct {
	provider  provider.Provider
	store     vectorstore.Store
	obs       *observe.Observer
	palette   *observe.Palette
	bus       *events.Bus
	batchSize int
	now       func() time.Time
}

// Option customizes an Agent.
type Option func(*options)

func WithProvider(p provider.Provider) Option {
	return func(o *options) { o.provider = p }
}

func WithVectorStore(s vectorstore.Store) Option {
	return func(o *options) { o.store = s }
}

func WithObserver(obs *observe.Observer) Option {
	return func(o *options) { o.obs = obs }
}

// WithPalette shares the process color table used for log contexts.
func WithPalette(p *observe.Palette) Option {
	return func(o *options) { o.palette = p }
}

func WithEventBus(b *events.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithBatchSize caps how many chunks are embedded and upserted per call.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds an agent without touching the network. It fails when the
// configuration is invalid, including a code response without a language.
func New(cfg Config, sys SystemConfig, opts ...Option) (*Agent, error) {
	o := options{batchSize: BatchSize, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := cfg.ModelFor(sys.Provider)
	if err != nil {
		return nil, err
	}
	prompt, err := renderSystemPrompt(cfg)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Name, err)
	}
	if o.provider == nil {
		return nil, fmt.Errorf("agent %s: no model provider configured", cfg.Name)
	}
	if o.store == nil {
		return nil, fmt.Errorf("agent %s: no vector store configured", cfg.Name)
	}
	if o.batchSize <= 0 {
		return nil, fmt.Errorf("agent %s: batch size must be positive", cfg.Name)
	}
	if o.obs == nil {
		o.obs = observe.New(os.Stderr, false)
	}

	color := cfg.LogColor
	if o.palette != nil {
		color = o.palette.Assign(cfg.Name, cfg.LogColor)
	}

	var g *guard.Guard
	if sys.Policy != nil {
		g = guard.New(*sys.Policy)
	}

	return &Agent{
		name:         cfg.Name,
		model:        model,
		systemPrompt: prompt,
		response:     cfg.Response,
		index:        sys.IndexName,
		color:        color,
		llm:          o.provider,
		vectors:      o.store,
		obs:          o.obs,
		log:          o.obs.Logger(cfg.Name, color),
		bus:          o.bus,
		actions:      actions.New(cfg.Name, o.obs, o.palette, g),
		batchSize:    o.batchSize,
		now:          o.now,
	}, nil
}

func (a *Agent) Name() string { return a.name }

func (a *Agent) Model() string { return a.model }

// SystemPrompt returns the rendered prompt including format instructions.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// Color returns the log color assigned to the agent.
func (a *Agent) Color() observe.Color { return a.color }

func (a *Agent) Ready() bool { return a.ready.Load() }

// Initialize connects the agent's vector store to the configured index.
func (a *Agent) Initialize(ctx context.Context) error {
	ctx, span := a.obs.StartSpan(ctx, "Agent.Initialize")
	defer span.End()

	if a.ready.Load() {
		return nil
	}

	if err := a.vectors.Connect(ctx, a.index); err != nil {
		a.log.Error(err, "Failed to initialize agent")
		a.bus.Emit(events.AgentFailed, a.name, map[string]any{"error": err.Error()})
		return fmt.Errorf("agent %s: %w", a.name, err)
	}

	a.ready.Store(true)
	a.log.Success("Agent initialized successfully")
	a.bus.Emit(events.AgentReady, a.name, map[string]any{"model": a.model, "store": a.vectors.Name()})
	return nil
}

// Reply is the outcome of a prompt.
type Reply struct {
	// Text is the model output, with one code fence stripped for code responses.
	Text string
	// JSON holds the decoded value for json responses.
	JSON   any
	Format ResponseType
}

// String renders the reply, indenting JSON values.
func (r Reply) String() string {
	if r.Format == JSON && r.JSON != nil {
		data, err := json.MarshalIndent(r.JSON, "", "  ")
		if err == nil {
			return string(data)
		}
	}
	return r.Text
}

// Prompt sends text to the model with the agent's system prompt.
func (a *Agent) Prompt(ctx context.Context, text string) (Reply, error) {
	if !a.ready.Load() {
		return Reply{}, ErrNotReady
	}

	ctx, span := a.obs.StartSpan(ctx, "Agent.Prompt")
	defer span.End()

	a.log.Info("Processing prompt: " + text)
	a.bus.Emit(events.PromptStart, a.name, map[string]any{"prompt": text})

	req := provider.CompletionRequest{
		System: a.systemPrompt,
		User:   text,
		Model:  a.model,
	}
	format := PlainText
	if a.response != nil {
		format = a.response.Type
		req.JSONMode = format == JSON
		req.MaxTokens = a.response.MaxTokens
	}

	resp, err := a.llm.Complete(ctx, req)
	if err != nil {
		a.log.Error(err, "Encountered an error")
		return Reply{}, fmt.Errorf("agent %s: completion failed: %w", a.name, err)
	}

	reply := Reply{Text: resp.Content, Format: format}
	switch format {
	case JSON:
		var v any
		if err := json.Unmarshal([]byte(resp.Content), &v); err != nil {
			err = fmt.Errorf("%w: response was not valid JSON: %v", ErrInvalidContent, err)
			a.log.Error(err, "Failed to parse JSON response")
			return Reply{}, err
		}
		reply.JSON = v
		a.log.Success("Parsed JSON response successfully")
	case Code:
		if m := codeFence.FindStringSubmatch(resp.Content); m != nil {
			reply.Text = strings.TrimSpace(m[1])
			a.log.Info("Stripped markdown formatting from code response")
		}
	default:
		a.log.Success("Response received")
	}

	a.bus.Emit(events.PromptEnd, a.name, map[string]any{
		"tokens": resp.Usage.TotalTokens,
		"format": string(format),
	})
	return reply, nil
}
