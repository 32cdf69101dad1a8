// Package system holds the named agents of one laigent process.
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/felixgeelhaar/laigent/internal/events"
	"github.com/felixgeelhaar/laigent/internal/observe"
	"github.com/felixgeelhaar/laigent/internal/provider"
	"github.com/felixgeelhaar/laigent/internal/vectorstore"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuplicateAgent is returned by New when two configs share a name.
	ErrDuplicateAgent = errors.New("duplicate agent name")
	// ErrAgentNotFound is returned by Agent for unknown names.
	ErrAgentNotFound = errors.New("agent not found")
)

// ProviderFactory builds the model provider owned by one agent.
type ProviderFactory func(cfg agent.Config, sys agent.SystemConfig) (provider.Provider, error)

// StoreFactory builds the vector store adapter owned by one agent.
type StoreFactory func(cfg agent.Config, sys agent.SystemConfig) (vectorstore.Store, error)

// System owns a set of uniquely named agents.
type System struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	order  []string

	obs *observe.Observer
	log *observe.Logger

	// owned is set when New built the default factories' dependencies
	// itself rather than receiving them through WithDependencies.
	owned *Dependencies
}

type options struct {
	obs        *observe.Observer
	palette    *observe.Palette
	bus        *events.Bus
	providers  ProviderFactory
	stores     StoreFactory
	agentOpts  []agent.Option
	sharedDeps *Dependencies
}

type Option func(*options)

func WithObserver(obs *observe.Observer) Option {
	return func(o *options) { o.obs = obs }
}

func WithPalette(p *observe.Palette) Option {
	return func(o *options) { o.palette = p }
}

func WithEventBus(b *events.Bus) Option {
	return func(o *options) { o.bus = b }
}

func WithProviderFactory(f ProviderFactory) Option {
	return func(o *options) { o.providers = f }
}

func WithStoreFactory(f StoreFactory) Option {
	return func(o *options) { o.stores = f }
}

// WithDependencies supplies the shared handles the default factories use.
func WithDependencies(d *Dependencies) Option {
	return func(o *options) { o.sharedDeps = d }
}

// WithAgentOptions appends options passed to every agent.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(o *options) { o.agentOpts = append(o.agentOpts, opts...) }
}

// New builds one agent per config. Duplicate names, invalid configs and
// missing models are rejected before any factory runs, so no client is
// created and no network call is made.
func New(configs []agent.Config, sys agent.SystemConfig, opts ...Option) (*System, error) {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if seen[cfg.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, cfg.Name)
		}
		seen[cfg.Name] = true

		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, err := cfg.ModelFor(sys.Provider); err != nil {
			return nil, err
		}
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.obs == nil {
		o.obs = observe.New(os.Stderr, false)
	}
	if o.palette == nil {
		o.palette = observe.NewPalette()
	}
	var owned *Dependencies
	if o.providers == nil || o.stores == nil {
		deps := o.sharedDeps
		if deps == nil {
			owned = &Dependencies{}
			deps = owned
		}
		if o.providers == nil {
			o.providers = deps.Provider
		}
		if o.stores == nil {
			o.stores = deps.Store
		}
	}

	s := &System{
		agents: make(map[string]*agent.Agent, len(configs)),
		obs:    o.obs,
		log:    o.obs.Scoped(o.palette, "system", observe.Blue),
		owned:  owned,
	}

	for _, cfg := range configs {
		if err := s.add(cfg, sys, o); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	s.log.Info(fmt.Sprintf("Created %d agents", len(s.order)))
	return s, nil
}

func (s *System) add(cfg agent.Config, sys agent.SystemConfig, o options) error {
	p, err := o.providers(cfg, sys)
	if err != nil {
		return fmt.Errorf("agent %s: provider: %w", cfg.Name, err)
	}
	vs, err := o.stores(cfg, sys)
	if err != nil {
		return fmt.Errorf("agent %s: vector store: %w", cfg.Name, err)
	}

	agentOpts := []agent.Option{
		agent.WithProvider(p),
		agent.WithVectorStore(vs),
		agent.WithObserver(o.obs),
		agent.WithPalette(o.palette),
		agent.WithEventBus(o.bus),
	}
	a, err := agent.New(cfg, sys, append(agentOpts, o.agentOpts...)...)
	if err != nil {
		return err
	}

	s.agents[cfg.Name] = a
	s.order = append(s.order, cfg.Name)
	return nil
}

// Close releases the clients New opened for the agents. Dependencies
// passed in with WithDependencies belong to the caller and stay open.
func (s *System) Close() error {
	if s.owned == nil {
		return nil
	}
	return s.owned.Close()
}

// Initialize initializes every agent concurrently. The first error is
// returned and the remaining initializations are canceled.
func (s *System) Initialize(ctx context.Context) error {
	ctx, span := s.obs.StartSpan(ctx, "System.Initialize")
	defer span.End()

	s.log.Info("Initializing all agents")

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range s.Agents() {
		g.Go(func() error {
			return a.Initialize(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error(err, "Failed to initialize agents")
		return err
	}

	s.log.Success("All agents initialized successfully")
	return nil
}

// Agent returns the agent called name.
func (s *System) Agent(name string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return a, nil
}

// Agents returns the agents in configuration order.
func (s *System) Agents() []*agent.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*agent.Agent, len(s.order))
	for i, name := range s.order {
		out[i] = s.agents[name]
	}
	return out
}

// Names returns the agent names in configuration order.
func (s *System) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}
