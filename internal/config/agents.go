// Package config loads agent definitions and the shared system settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/felixgeelhaar/laigent/internal/guard"
	"gopkg.in/yaml.v3"
)

// AgentsFile is the on-disk agent definition format. A file may also hold a
// bare list of agents.
type AgentsFile struct {
	Agents []agent.Config `json:"agents" yaml:"agents"`
	Policy *guard.Policy  `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// ValidationResult represents the outcome of a validation pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Err folds the validation errors into one error, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid agent configuration: %s", strings.Join(r.Errors, "; "))
}

// LoadAgents reads agent definitions from a JSON or YAML file.
func LoadAgents(path string) (*AgentsFile, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var file AgentsFile

	switch ext {
	case ".json":
		if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
			err = json.Unmarshal(data, &file.Agents)
		} else {
			err = json.Unmarshal(data, &file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON agents: %w", err)
		}
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML agents: %w", err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			err = node.Decode(&file.Agents)
		} else {
			err = node.Decode(&file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML agents: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported agents format: %s (use .json or .yaml)", ext)
	}

	return &file, nil
}

// ValidateAgents checks every definition and the uniqueness of names.
func ValidateAgents(configs []agent.Config) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}

	if len(configs) == 0 {
		res.Valid = false
		res.Errors = append(res.Errors, "At least one agent is required")
		return res
	}

	seen := make(map[string]bool, len(configs))
	for i, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("agent #%d: %v", i+1, err))
			continue
		}
		if seen[cfg.Name] {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate agent name %q", cfg.Name))
		}
		seen[cfg.Name] = true

		if cfg.SystemPrompt == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("agent %s has no system prompt; the default assistant prompt is used", cfg.Name))
		}
		if cfg.Purpose == "" && cfg.Model == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("agent %s has neither purpose nor model; %s is used", cfg.Name, agent.DefaultModel))
		}
	}

	return res
}
