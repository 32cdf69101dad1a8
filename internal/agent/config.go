package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/laigent/internal/guard"
	"github.com/felixgeelhaar/laigent/internal/observe"
)

var (
	// ErrMissingLanguage is returned when a code response is configured without a language.
	ErrMissingLanguage = errors.New("language must be specified for code response type")
	// ErrModelRequired is returned when an agent without a model runs on a
	// provider the purpose table has no models for.
	ErrModelRequired = errors.New("model must be set for provider")
)

// Purpose selects a default model tier when no explicit model is configured.
type Purpose string

const (
	Reasoning Purpose = "reasoning"
	Answering Purpose = "answering"
	Coding    Purpose = "coding"
)

// ResponseType is the format an agent asks the model to answer in.
type ResponseType string

const (
	JSON      ResponseType = "json"
	Markdown  ResponseType = "markdown"
	PlainText ResponseType = "plaintext"
	Code      ResponseType = "code"
)

const (
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"
	DefaultModel   = ModelGPT4oMini

	DefaultSystemPrompt = "You are a helpful AI assistant."
)

// ResponseFormat describes how replies must be shaped.
type ResponseFormat struct {
	Type         ResponseType `json:"type" yaml:"type"`
	Language     string       `json:"language,omitempty" yaml:"language,omitempty"`
	Instructions string       `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	MaxTokens    int          `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Config defines one agent. It is not modified after the agent is built.
type Config struct {
	Name         string          `json:"name" yaml:"name"`
	Purpose      Purpose         `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Model        string          `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt string          `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Response     *ResponseFormat `json:"response,omitempty" yaml:"response,omitempty"`
	LogColor     observe.Color   `json:"log_color,omitempty" yaml:"log_color,omitempty"`
}

// SystemConfig carries the settings shared read-only by every agent.
type SystemConfig struct {
	Provider    string // openai, ollama, gemini, anthropic, cli, plugin, stub
	VectorStore string // pinecone, chromem, sqlite

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbeddingModel string

	PineconeAPIKey string
	PineconeHost   string
	IndexName      string

	GeminiAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
	CLIPath         string
	PluginPath      string

	// Home is the directory for local state (sqlite database, chromem files).
	Home string

	// Policy restricts file and command actions. Nil leaves them unrestricted.
	Policy *guard.Policy
}

// Validate checks the enumerations and the code language requirement.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("agent name is required")
	}

	switch c.Purpose {
	case "", Reasoning, Answering, Coding:
	default:
		return fmt.Errorf("agent %s: unknown purpose %q", c.Name, c.Purpose)
	}

	if c.LogColor != "" {
		if _, err := observe.ParseColor(string(c.LogColor)); err != nil {
			return fmt.Errorf("agent %s: %w", c.Name, err)
		}
	}

	if c.Response != nil {
		switch c.Response.Type {
		case JSON, Markdown, PlainText:
		case Code:
			if c.Response.Language == "" {
				return fmt.Errorf("agent %s: %w", c.Name, ErrMissingLanguage)
			}
		default:
			return fmt.Errorf("agent %s: unknown response type %q", c.Name, c.Response.Type)
		}
		if c.Response.MaxTokens < 0 {
			return fmt.Errorf("agent %s: max_tokens must not be negative", c.Name)
		}
	}
	return nil
}

// ResolveModel returns the explicit model, else the purpose default, else DefaultModel.
func (c Config) ResolveModel() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Purpose {
	case Reasoning:
		return ModelGPT4o
	case Answering, Coding:
		return ModelGPT4oMini
	default:
		return DefaultModel
	}
}

// ModelFor resolves the model sent to the named provider. The purpose table
// holds OpenAI models, so anthropic, gemini and ollama agents must name one.
func (c Config) ModelFor(provider string) (string, error) {
	if c.Model != "" {
		return c.Model, nil
	}
	switch provider {
	case "anthropic", "gemini", "ollama":
		return "", fmt.Errorf("agent %s: %w %s", c.Name, ErrModelRequired, provider)
	}
	return c.ResolveModel(), nil
}

// renderSystemPrompt appends the formatting instructions for the response type.
func renderSystemPrompt(c Config) (string, error) {
	prompt := c.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	rf := c.Response
	if rf == nil {
		return prompt, nil
	}

	var b strings.Builder
	b.WriteString(prompt)
	fmt.Fprintf(&b, "\n\nIMPORTANT: You must provide your response in %s format.", rf.Type)

	switch rf.Type {
	case JSON:
		b.WriteString(" Ensure your response is a valid JSON string that can be parsed and does not include any additional text, explanations, or markdown.")
	case Code:
		if rf.Language == "" {
			return "", ErrMissingLanguage
		}
		fmt.Fprintf(&b, "\nProvide ONLY executable %s code with no additional text, explanations, or markdown.", rf.Language)
	case Markdown, PlainText:
	}

	if rf.Instructions != "" {
		fmt.Fprintf(&b, "\n\nResponse Instructions: %s", rf.Instructions)
	}
	return b.String(), nil
}
