package provider

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CLIProvider delegates completions to a local agent binary (claude, llm, ...).
type CLIProvider struct {
	binaryPath string
	args       []string
	timeout    time.Duration
}

func NewCLIProvider(binaryPath string, args []string) (*CLIProvider, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("binary path is required for CLI provider")
	}
	return &CLIProvider{
		binaryPath: binaryPath,
		args:       args,
		timeout:    2 * time.Minute,
	}, nil
}

func (p *CLIProvider) Name() string {
	return "cli-" + p.binaryPath
}

// Complete passes the system prompt and user prompt as a single argument.
func (p *CLIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	prompt := req.User
	if req.System != "" {
		prompt = req.System + "\n\n" + req.User
	}

	fullArgs := append(append([]string{}, p.args...), prompt)

	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, p.binaryPath, fullArgs...) // #nosec G204

	output, err := cmd.CombinedOutput()
	result := string(output)

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("cli agent timed out: %w", err)
		}
		return nil, fmt.Errorf("cli agent failed: %w\nOutput: %s", err, result)
	}

	return &Completion{
		Content: strings.TrimSpace(result),
		Usage: Usage{
			TotalTokens: len(strings.Fields(result)),
		},
	}, nil
}

func (p *CLIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

func (p *CLIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}
