package agent

import (
	"context"

	"github.com/felixgeelhaar/laigent/internal/events"
)

func (a *Agent) ReadFile(path string) (string, error) {
	return a.actions.ReadFile(path)
}

func (a *Agent) WriteFile(path, content string) error {
	return a.actions.WriteFile(path, content)
}

// WriteJSON writes v to path as indented JSON.
func (a *Agent) WriteJSON(path string, v any) error {
	return a.actions.WriteJSON(path, v)
}

func (a *Agent) AppendFile(path, content string) error {
	return a.actions.AppendFile(path, content)
}

// FileExists reports false for any stat error.
func (a *Agent) FileExists(path string) bool {
	return a.actions.FileExists(path)
}

func (a *Agent) CreateDirectory(path string) error {
	return a.actions.CreateDirectory(path)
}

// ExecuteCommand runs command in a shell. Any output on stderr is an error.
func (a *Agent) ExecuteCommand(ctx context.Context, command string) (string, error) {
	out, err := a.actions.ExecuteCommand(ctx, command)
	data := map[string]any{"command": command, "ok": err == nil}
	a.bus.Emit(events.CommandExecuted, a.name, data)
	return out, err
}
