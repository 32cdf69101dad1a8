// Package tui is an interactive chat session with a single agent.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Responder answers one user message.
type Responder func(ctx context.Context, text string) (string, error)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5F87FF"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

type keyMap struct {
	Send key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Send: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Quit: key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
}

// ReplyMsg carries the agent's answer back into the update loop.
type ReplyMsg struct {
	Text string
	Err  error
}

// Entry is one line of the transcript.
type Entry struct {
	Speaker string
	Text    string
	Err     bool
}

type Model struct {
	Agent      string
	AgentStyle lipgloss.Style
	Transcript []Entry
	Waiting    bool
	Quitting   bool
	Ready      bool

	ctx      context.Context
	respond  Responder
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
}

// NewModel creates a chat with agent. agentColor is a lipgloss color string.
func NewModel(ctx context.Context, agent, agentColor string, respond Responder) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask " + agent + "..."
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	style := lipgloss.NewStyle().Bold(true)
	if agentColor != "" {
		style = style.Foreground(lipgloss.Color(agentColor))
	}

	return Model{
		Agent:      agent,
		AgentStyle: style,
		ctx:        ctx,
		respond:    respond,
		input:      ti,
		spinner:    sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) ask(text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.respond(m.ctx, text)
		return ReplyMsg{Text: reply, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.Quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Send):
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.Waiting {
				return m, nil
			}
			m.input.Reset()
			m.Transcript = append(m.Transcript, Entry{Speaker: "you", Text: text})
			m.Waiting = true
			m.refresh()
			return m, tea.Batch(m.ask(text), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 5
		if height < 1 {
			height = 1
		}
		if !m.Ready {
			m.viewport = viewport.New(msg.Width, height)
			m.Ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - 4
		m.refresh()

	case ReplyMsg:
		m.Waiting = false
		if msg.Err != nil {
			m.Transcript = append(m.Transcript, Entry{Speaker: m.Agent, Text: msg.Err.Error(), Err: true})
		} else {
			m.Transcript = append(m.Transcript, Entry{Speaker: m.Agent, Text: msg.Text})
		}
		m.refresh()

	case spinner.TickMsg:
		if !m.Waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) refresh() {
	if !m.Ready {
		return
	}
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) render() string {
	var b strings.Builder
	for i, e := range m.Transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case e.Speaker == "you":
			b.WriteString(userStyle.Render("you") + "\n" + e.Text)
		case e.Err:
			b.WriteString(m.AgentStyle.Render(e.Speaker) + "\n" + errorStyle.Render(e.Text))
		default:
			b.WriteString(m.AgentStyle.Render(e.Speaker) + "\n" + e.Text)
		}
	}
	return b.String()
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}
	if m.Quitting {
		return ""
	}

	header := titleStyle.Render(fmt.Sprintf(" laigent chat: %s ", m.Agent))
	status := helpStyle.Render(keys.Send.Help().Key + " " + keys.Send.Help().Desc + " • " + keys.Quit.Help().Key + " " + keys.Quit.Help().Desc)
	if m.Waiting {
		status = m.spinner.View() + " " + m.Agent + " is thinking..."
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), m.input.View(), status)
}

// Run starts the chat on the terminal and blocks until the user quits.
func Run(ctx context.Context, agent, agentColor string, respond Responder) error {
	program := tea.NewProgram(NewModel(ctx, agent, agentColor, respond), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
