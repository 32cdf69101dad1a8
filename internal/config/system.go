package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/felixgeelhaar/laigent/internal/credential"
	"github.com/felixgeelhaar/laigent/internal/store"
	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned when the selected provider or vector store
// has no API key or index configured.
var ErrMissingCredential = errors.New("missing credential")

// DefaultLocalIndex names the index used by local vector stores when none is configured.
const DefaultLocalIndex = "laigent"

// Setting ties an environment variable to its key in the configuration table.
type Setting struct {
	Env      string
	StoreKey string
	apply    func(*agent.SystemConfig, string)
}

// Settings lists every configurable value in lookup order.
var Settings = []Setting{
	{"LAIGENT_PROVIDER", "provider", func(c *agent.SystemConfig, v string) { c.Provider = v }},
	{"LAIGENT_VECTOR_STORE", "vector_store", func(c *agent.SystemConfig, v string) { c.VectorStore = v }},
	{"OPENAI_API_KEY", "openai.api_key", func(c *agent.SystemConfig, v string) { c.OpenAIAPIKey = v }},
	{"OPENAI_BASE_URL", "openai.base_url", func(c *agent.SystemConfig, v string) { c.OpenAIBaseURL = v }},
	{"OPENAI_EMBEDDING_MODEL", "openai.embedding_model", func(c *agent.SystemConfig, v string) { c.EmbeddingModel = v }},
	{"PINECONE_API_KEY", "pinecone.api_key", func(c *agent.SystemConfig, v string) { c.PineconeAPIKey = v }},
	{"PINECONE_INDEX", "pinecone.index", func(c *agent.SystemConfig, v string) { c.IndexName = v }},
	{"PINECONE_HOST", "pinecone.host", func(c *agent.SystemConfig, v string) { c.PineconeHost = v }},
	{"GEMINI_API_KEY", "gemini.api_key", func(c *agent.SystemConfig, v string) { c.GeminiAPIKey = v }},
	{"ANTHROPIC_API_KEY", "anthropic.api_key", func(c *agent.SystemConfig, v string) { c.AnthropicAPIKey = v }},
	{"OLLAMA_HOST", "ollama.host", func(c *agent.SystemConfig, v string) { c.OllamaHost = v }},
	{"LAIGENT_CLI_PATH", "provider.cli.path", func(c *agent.SystemConfig, v string) { c.CLIPath = v }},
	{"LAIGENT_PLUGIN_PATH", "provider.plugin.path", func(c *agent.SystemConfig, v string) { c.PluginPath = v }},
}

// aliases are read when the primary variable is unset.
var aliases = map[string]string{
	"PINECONE_INDEX": "PINECONE_INDEX_NAME",
}

// Source describes where system settings are read from. Process environment
// wins over the env file, which wins over the configuration table.
type Source struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// EnvFile is read with godotenv when it exists. Empty means ".env".
	EnvFile string
	// Store holds values saved with "laigent config set". May be nil.
	Store store.Storage
	// Creds decrypts secret values read from Store. May be nil.
	Creds *credential.Manager
}

// Home returns LAIGENT_HOME, or ~/.laigent.
func Home(lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if h, ok := lookup("LAIGENT_HOME"); ok && h != "" {
		return h
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".laigent")
}

// DBPath is the location of the local configuration and vector database.
func DBPath(home string) string {
	return filepath.Join(home, "laigent.db")
}

// LoadSystem resolves every setting from the source.
func LoadSystem(src Source) (agent.SystemConfig, error) {
	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envFile := src.EnvFile
	explicit := envFile != ""
	if envFile == "" {
		envFile = ".env"
	}
	fileVars := map[string]string{}
	if _, err := os.Stat(envFile); err == nil {
		vars, err := godotenv.Read(envFile)
		if err != nil {
			return agent.SystemConfig{}, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
		fileVars = vars
	} else if explicit {
		return agent.SystemConfig{}, fmt.Errorf("env file %s: %w", envFile, err)
	}

	cfg := agent.SystemConfig{Home: Home(lookup)}

	for _, s := range Settings {
		v, err := resolve(s, lookup, fileVars, src)
		if err != nil {
			return agent.SystemConfig{}, err
		}
		if v != "" {
			s.apply(&cfg, v)
		}
	}
	return cfg, nil
}

func resolve(s Setting, lookup func(string) (string, bool), fileVars map[string]string, src Source) (string, error) {
	names := []string{s.Env}
	if alias, ok := aliases[s.Env]; ok {
		names = append(names, alias)
	}

	for _, n := range names {
		if v, ok := lookup(n); ok && v != "" {
			return v, nil
		}
	}
	for _, n := range names {
		if v := fileVars[n]; v != "" {
			return v, nil
		}
	}

	if src.Store == nil {
		return "", nil
	}
	stored, err := src.Store.GetConfig(s.StoreKey)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.StoreKey, err)
	}
	if stored == "" || src.Creds == nil {
		return stored, nil
	}
	v, err := src.Creds.Open(s.StoreKey, stored)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", s.StoreKey, err)
	}
	return v, nil
}

// ApplyDefaults fills in values that have a sensible local default.
func ApplyDefaults(cfg *agent.SystemConfig) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.VectorStore == "" {
		cfg.VectorStore = "pinecone"
	}
	if cfg.IndexName == "" && cfg.VectorStore != "pinecone" {
		cfg.IndexName = DefaultLocalIndex
	}
}

// RequireCredentials fails when the selected provider or vector store cannot
// be used with the configured values. It makes no network calls.
func RequireCredentials(cfg agent.SystemConfig) error {
	var missing []string

	switch cfg.Provider {
	case "", "openai":
		if cfg.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	case "plugin":
		if cfg.PluginPath == "" {
			missing = append(missing, "LAIGENT_PLUGIN_PATH")
		}
	case "ollama", "cli", "stub":
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	switch cfg.VectorStore {
	case "", "pinecone":
		if cfg.PineconeAPIKey == "" {
			missing = append(missing, "PINECONE_API_KEY")
		}
		if cfg.IndexName == "" {
			missing = append(missing, "PINECONE_INDEX")
		}
	case "chromem", "sqlite":
		if cfg.IndexName == "" {
			missing = append(missing, "PINECONE_INDEX")
		}
	default:
		return fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingCredential, missing)
	}
	return nil
}

// SaveSetting stores value under key, encrypting credentials.
func SaveSetting(s store.Storage, creds *credential.Manager, key, value string) error {
	if creds != nil {
		sealed, err := creds.Seal(key, value)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		value = sealed
	}
	return s.SetConfig(key, value)
}

// ReadSetting returns the stored value for key, decrypted.
func ReadSetting(s store.Storage, creds *credential.Manager, key string) (string, error) {
	v, err := s.GetConfig(key)
	if err != nil || v == "" || creds == nil {
		return v, err
	}
	return creds.Open(key, v)
}
