package cli

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/felixgeelhaar/laigent/internal/config"
	"github.com/felixgeelhaar/laigent/internal/credential"
	"github.com/felixgeelhaar/laigent/internal/events"
	"github.com/felixgeelhaar/laigent/internal/observe"
	"github.com/felixgeelhaar/laigent/internal/provider"
	"github.com/felixgeelhaar/laigent/internal/store"
	"github.com/felixgeelhaar/laigent/internal/system"
	"github.com/felixgeelhaar/laigent/internal/ui"
	"github.com/felixgeelhaar/laigent/internal/vectorstore"
	"github.com/spf13/cobra"
)

// session is everything a command needs, opened once per invocation.
type session struct {
	obs     *observe.Observer
	palette *observe.Palette
	bus     *events.Bus
	out     ui.UI
	db      store.Storage
	creds   *credential.Manager
	deps    *system.Dependencies
	sys     agent.SystemConfig
}

func getStore(home string) (store.Storage, error) {
	s, err := store.NewSQLiteStore(config.DBPath(home))
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	return s, nil
}

func newObserver(g *globals, w io.Writer) *observe.Observer {
	if g.ciMode {
		return observe.NewJSON(w, g.verbose)
	}
	return observe.New(w, g.verbose)
}

func newUI(g *globals, w io.Writer) ui.UI {
	if g.ciMode {
		return ui.JSONLines{Out: w}
	}
	return ui.Console{Out: w}
}

// openSession resolves settings without any network call. Credentials are
// checked later, by the commands that reach a provider or vector store.
func openSession(cmd *cobra.Command, g *globals) (*session, error) {
	home := config.Home(nil)
	db, err := getStore(home)
	if err != nil {
		return nil, err
	}
	creds, err := credential.NewManager()
	if err != nil {
		db.Close()
		return nil, err
	}

	sys, err := config.LoadSystem(config.Source{EnvFile: g.envFile, Store: db, Creds: creds})
	if err != nil {
		db.Close()
		return nil, err
	}
	if g.provider != "" {
		sys.Provider = g.provider
	}
	if g.vectorStore != "" {
		sys.VectorStore = g.vectorStore
	}
	config.ApplyDefaults(&sys)

	obs := newObserver(g, cmd.ErrOrStderr())
	s := &session{
		obs:     obs,
		palette: observe.NewPalette(),
		bus:     events.NewBus(),
		out:     newUI(g, cmd.OutOrStdout()),
		db:      db,
		creds:   creds,
		deps:    &system.Dependencies{Storage: db, EmbeddingCache: system.DefaultEmbeddingCacheSize},
		sys:     sys,
	}
	if g.verbose {
		s.bus.SubscribeAll(func(e events.Event) {
			obs.Log().Debug().Str("event", string(e.Type)).Str("agent", e.Agent).Msg("event")
		})
	}
	return s, nil
}

// agents loads the definitions file and builds every agent. When initialize
// is set the agents are connected to their vector store before returning.
func (s *session) agents(ctx context.Context, g *globals, initialize bool) (*system.System, error) {
	file, err := config.LoadAgents(g.agentsPath)
	if err != nil {
		return nil, err
	}
	res := config.ValidateAgents(file.Agents)
	for _, w := range res.Warnings {
		s.obs.Log().Warn().Msg(w)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	if file.Policy != nil {
		s.sys.Policy = file.Policy
	}

	opts := []system.Option{
		system.WithObserver(s.obs),
		system.WithPalette(s.palette),
		system.WithEventBus(s.bus),
	}
	if initialize {
		if err := s.requireBackends(); err != nil {
			return nil, err
		}
		opts = append(opts, system.WithDependencies(s.deps))
	} else {
		// Agents that are never initialized only run local actions.
		opts = append(opts,
			system.WithProviderFactory(func(agent.Config, agent.SystemConfig) (provider.Provider, error) {
				return provider.NewStubProvider(), nil
			}),
			system.WithStoreFactory(func(agent.Config, agent.SystemConfig) (vectorstore.Store, error) {
				return vectorstore.NewChromem("")
			}),
		)
	}

	sys, err := system.New(file.Agents, s.sys, opts...)
	if err != nil {
		return nil, err
	}
	if initialize {
		if err := sys.Initialize(ctx); err != nil {
			return nil, err
		}
	}
	return sys, nil
}

// requireBackends finds a local CLI agent when one is needed and checks that
// the selected provider and vector store have their credentials.
func (s *session) requireBackends() error {
	if s.sys.Provider == "cli" && s.sys.CLIPath == "" {
		path, err := detectCLIPath()
		if err != nil {
			return err
		}
		s.sys.CLIPath = path
	}
	return config.RequireCredentials(s.sys)
}

// agent builds the system and returns the named agent.
func (s *session) agent(ctx context.Context, g *globals, name string, initialize bool) (*agent.Agent, error) {
	sys, err := s.agents(ctx, g, initialize)
	if err != nil {
		return nil, err
	}
	return sys.Agent(name)
}

func (s *session) Close() {
	_ = s.deps.Close()
	_ = s.db.Close()
	_ = s.obs.Close()
}

func detectCLIPath() (string, error) {
	tools := []string{"claude", "codex", "gemini", "llm"}
	for _, t := range tools {
		path, err := exec.LookPath(t)
		if err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no local CLI agents detected (tried claude, codex, gemini, llm)")
}
