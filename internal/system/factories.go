package system

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/felixgeelhaar/laigent/internal/plugin"
	"github.com/felixgeelhaar/laigent/internal/provider"
	"github.com/felixgeelhaar/laigent/internal/store"
	"github.com/felixgeelhaar/laigent/internal/vectorstore"
)

// DefaultEmbeddingCacheSize is the number of embeddings the CLI keeps per agent.
const DefaultEmbeddingCacheSize = 10_000

// Dependencies backs the default factories. Handles that cannot be opened
// twice (the sqlite database, a persistent chromem directory) are opened once
// and shared by every agent's adapter.
type Dependencies struct {
	// Storage is the local database used by the sqlite vector store.
	Storage store.Storage
	// EmbeddingCache caps the per-agent embedding cache. Zero disables it.
	EmbeddingCache int64

	mu      sync.Mutex
	chromem *vectorstore.Chromem
	remote  *plugin.Remote
	opened  store.Storage
	closers []io.Closer
}

// Provider selects the model provider named by sys.Provider.
// Completion-only providers are paired with an embedding provider.
func (d *Dependencies) Provider(cfg agent.Config, sys agent.SystemConfig) (provider.Provider, error) {
	var (
		p   provider.Provider
		err error
	)

	switch sys.Provider {
	case "", "openai":
		p, err = provider.NewOpenAIProvider(sys.OpenAIAPIKey, sys.OpenAIBaseURL, sys.EmbeddingModel)
	case "ollama":
		p, err = provider.NewOllamaProvider(sys.OllamaHost, sys.EmbeddingModel)
	case "gemini":
		p, err = provider.NewGeminiProvider(sys.GeminiAPIKey, sys.EmbeddingModel)
	case "anthropic":
		var completer provider.Provider
		if completer, err = provider.NewAnthropicProvider(sys.AnthropicAPIKey, ""); err == nil {
			p, err = withEmbedder(completer, sys)
		}
	case "cli":
		var completer provider.Provider
		if completer, err = provider.NewCLIProvider(sys.CLIPath, nil); err == nil {
			p, err = withEmbedder(completer, sys)
		}
	case "plugin":
		p, err = d.plugin(sys)
	case "stub":
		p = provider.NewStubProvider()
	default:
		return nil, fmt.Errorf("unknown provider %q", sys.Provider)
	}
	if err != nil {
		return nil, err
	}

	if d.EmbeddingCache > 0 {
		cached, err := provider.NewCachedProvider(p, d.EmbeddingCache)
		if err != nil {
			return nil, err
		}
		d.track(cached)
		return cached, nil
	}
	return p, nil
}

func withEmbedder(completer provider.Provider, sys agent.SystemConfig) (provider.Provider, error) {
	var (
		embedder provider.Provider
		err      error
	)
	if sys.OpenAIAPIKey != "" {
		embedder, err = provider.NewOpenAIProvider(sys.OpenAIAPIKey, sys.OpenAIBaseURL, sys.EmbeddingModel)
	} else {
		embedder, err = provider.NewOllamaProvider(sys.OllamaHost, sys.EmbeddingModel)
	}
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	return provider.NewComposite(completer, embedder), nil
}

// Store selects the vector store named by sys.VectorStore.
func (d *Dependencies) Store(cfg agent.Config, sys agent.SystemConfig) (vectorstore.Store, error) {
	switch sys.VectorStore {
	case "", "pinecone":
		p, err := vectorstore.NewPinecone(sys.PineconeAPIKey, vectorstore.WithHost(sys.PineconeHost))
		if err != nil {
			return nil, err
		}
		d.track(p)
		return p, nil
	case "chromem":
		base, err := d.chromemBase(sys)
		if err != nil {
			return nil, err
		}
		return base.Clone(), nil
	case "sqlite":
		db, err := d.storage(sys)
		if err != nil {
			return nil, err
		}
		return vectorstore.NewSQLite(db), nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", sys.VectorStore)
	}
}

func (d *Dependencies) chromemBase(sys agent.SystemConfig) (*vectorstore.Chromem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chromem == nil {
		dir := ""
		if sys.Home != "" {
			dir = filepath.Join(sys.Home, "chromem")
		}
		c, err := vectorstore.NewChromem(dir)
		if err != nil {
			return nil, err
		}
		d.chromem = c
	}
	return d.chromem, nil
}

// plugin starts the provider plugin once and shares it between agents.
func (d *Dependencies) plugin(sys agent.SystemConfig) (provider.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.remote == nil {
		r, err := plugin.Launch(sys.PluginPath)
		if err != nil {
			return nil, err
		}
		d.remote = r
	}
	return d.remote, nil
}

func (d *Dependencies) storage(sys agent.SystemConfig) (store.Storage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Storage != nil {
		return d.Storage, nil
	}

	path := ":memory:"
	if sys.Home != "" {
		path = filepath.Join(sys.Home, "laigent.db")
	}
	db, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	d.Storage = db
	d.opened = db
	return db, nil
}

func (d *Dependencies) track(c io.Closer) {
	d.mu.Lock()
	d.closers = append(d.closers, c)
	d.mu.Unlock()
}

// Close releases what the factories opened: embedding caches, index
// connections, the provider plugin and a database the factories opened
// themselves. A Storage supplied by the caller stays open.
func (d *Dependencies) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	d.closers = nil

	if d.remote != nil {
		errs = append(errs, d.remote.Close())
		d.remote = nil
	}
	if d.opened != nil {
		errs = append(errs, d.opened.Close())
		d.Storage, d.opened = nil, nil
	}
	return errors.Join(errs...)
}
