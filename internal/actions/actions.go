// Package actions gives agents access to local files and the shell.
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/laigent/internal/guard"
	"github.com/felixgeelhaar/laigent/internal/observe"
)

var (
	// ErrCommandStderr is returned when a command wrote to its error stream,
	// regardless of its exit status.
	ErrCommandStderr = errors.New("command wrote to stderr")
	// ErrPolicyViolation is returned when the configured guard rejects an action.
	ErrPolicyViolation = errors.New("policy violation")
)

// Actions performs file and command actions on behalf of a named context.
type Actions struct {
	context string
	obs     *observe.Observer
	palette *observe.Palette
	guard   *guard.Guard
	shell   string
}

// New creates the action layer for context. A nil guard leaves actions
// unrestricted.
func New(context string, obs *observe.Observer, palette *observe.Palette, g *guard.Guard) *Actions {
	return &Actions{
		context: context,
		obs:     obs,
		palette: palette,
		guard:   g,
		shell:   "sh",
	}
}

func (a *Actions) logger(action string) *observe.Logger {
	return a.obs.Scoped(a.palette, a.context+":"+action, observe.Orange)
}

func (a *Actions) ReadFile(path string) (string, error) {
	log := a.logger("readFile")
	if err := a.checkFile(path); err != nil {
		log.Error(err, "Failed to read file "+path)
		return "", err
	}

	log.Info("Reading file: " + path)
	content, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		log.Error(err, "Failed to read file "+path)
		return "", err
	}
	log.Success("Successfully read file: " + path)
	return string(content), nil
}

func (a *Actions) WriteFile(path, content string) error {
	log := a.logger("writeFile")
	if err := a.checkFile(path); err != nil {
		log.Error(err, "Failed to write to file "+path)
		return err
	}

	log.Info("Writing to file: " + path)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		log.Error(err, "Failed to write to file "+path)
		return err
	}
	log.Success("Successfully wrote to file: " + path)
	return nil
}

// WriteJSON writes v as two-space indented JSON.
func (a *Actions) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return a.WriteFile(path, string(data))
}

func (a *Actions) AppendFile(path, content string) error {
	log := a.logger("appendFile")
	if err := a.checkFile(path); err != nil {
		log.Error(err, "Failed to append to file "+path)
		return err
	}

	log.Info("Appending to file: " + path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304
	if err != nil {
		log.Error(err, "Failed to append to file "+path)
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		log.Error(err, "Failed to append to file "+path)
		return err
	}
	if err := f.Close(); err != nil {
		log.Error(err, "Failed to append to file "+path)
		return err
	}
	log.Success("Successfully appended to file: " + path)
	return nil
}

// FileExists reports whether path can be stat'ed. Any error, including
// permission errors, reads as false.
func (a *Actions) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CreateDirectory creates path and any missing parents.
func (a *Actions) CreateDirectory(path string) error {
	log := a.logger("createDir")
	if err := a.checkFile(path); err != nil {
		log.Error(err, "Failed to create directory "+path)
		return err
	}

	log.Info("Creating directory: " + path)
	if err := os.MkdirAll(path, 0750); err != nil {
		log.Error(err, "Failed to create directory "+path)
		return err
	}
	log.Success("Successfully created directory: " + path)
	return nil
}

// ExecuteCommand runs command through the shell and returns its trimmed
// stdout. Output on stderr fails the call even when the exit status is zero.
func (a *Actions) ExecuteCommand(ctx context.Context, command string) (string, error) {
	log := a.logger("execute")

	if a.guard != nil {
		if v := a.guard.CheckCommand(command); v != nil {
			err := fmt.Errorf("%w: %w", ErrPolicyViolation, v)
			log.Error(err, "Failed to execute command "+command)
			return "", err
		}
	}

	log.Info("Executing command: " + command)

	cmd := exec.CommandContext(ctx, a.shell, "-c", command) // #nosec G204
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		log.Error(err, "Failed to execute command "+command)
		return "", fmt.Errorf("command %q failed: %w", command, err)
	}

	if stderr.Len() > 0 {
		err := fmt.Errorf("%w: %s", ErrCommandStderr, strings.TrimSpace(stderr.String()))
		log.Error(err, "Command error")
		return "", err
	}

	log.Success("Successfully executed command: " + command)
	return strings.TrimSpace(stdout.String()), nil
}

func (a *Actions) checkFile(path string) error {
	if a.guard == nil {
		return nil
	}
	if v := a.guard.CheckFile(path); v != nil {
		return fmt.Errorf("%w: %w", ErrPolicyViolation, v)
	}
	return nil
}
