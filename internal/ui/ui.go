// Package ui renders agent output for the command line.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/felixgeelhaar/laigent/internal/observe"
)

// UI is the output surface used by commands.
type UI interface {
	Reply(a *agent.Agent, reply agent.Reply)
	Memories(mems []agent.Memory)
	Agents(agents []*agent.Agent)
	Status(msg string)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// Console writes styled text for humans.
type Console struct {
	Out io.Writer
}

func (c Console) Reply(a *agent.Agent, reply agent.Reply) {
	fmt.Fprintln(c.Out, agentLabel(a))
	fmt.Fprintln(c.Out, reply.String())
}

func (c Console) Memories(mems []agent.Memory) {
	if len(mems) == 0 {
		fmt.Fprintln(c.Out, dimStyle.Render("(no memories)"))
		return
	}
	for i, m := range mems {
		saved := m.Timestamp
		if ts, err := m.Time(); err == nil {
			saved = ts.Local().Format("2006-01-02 15:04")
		}
		meta := fmt.Sprintf("#%d score=%.3f %s chunk %d/%d %s", i+1, m.Score, m.ContentType, m.ChunkIndex+1, m.TotalChunks, saved)
		fmt.Fprintln(c.Out, headerStyle.Render(m.ID)+" "+dimStyle.Render(meta))
		fmt.Fprintln(c.Out, indent(m.Text))
	}
}

func (c Console) Agents(agents []*agent.Agent) {
	for _, a := range agents {
		fmt.Fprintf(c.Out, "%s  %s\n", agentLabel(a), dimStyle.Render(a.Model()))
	}
}

func (c Console) Status(msg string) {
	fmt.Fprintln(c.Out, dimStyle.Render(msg))
}

func agentLabel(a *agent.Agent) string {
	style := headerStyle
	if c := a.Color(); c != "" {
		style = style.Foreground(observe.LipglossColor(c))
	}
	return style.Render(a.Name())
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

// JSONLines writes one JSON object per call for CI consumption.
type JSONLines struct {
	Out io.Writer
}

func (j JSONLines) write(v any) {
	_ = json.NewEncoder(j.Out).Encode(v)
}

func (j JSONLines) Reply(a *agent.Agent, reply agent.Reply) {
	out := map[string]any{"agent": a.Name(), "format": string(reply.Format), "text": reply.Text}
	if reply.JSON != nil {
		out["json"] = reply.JSON
	}
	j.write(out)
}

func (j JSONLines) Memories(mems []agent.Memory) {
	if mems == nil {
		mems = []agent.Memory{}
	}
	j.write(map[string]any{"memories": mems})
}

func (j JSONLines) Agents(agents []*agent.Agent) {
	list := make([]map[string]string, 0, len(agents))
	for _, a := range agents {
		list = append(list, map[string]string{"name": a.Name(), "model": a.Model(), "color": string(a.Color())})
	}
	j.write(map[string]any{"agents": list})
}

func (j JSONLines) Status(msg string) {
	j.write(map[string]string{"status": msg})
}
