package observe

import (
	"context"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("laigent")

// Observer handles logging and tracing
type Observer struct {
	log   *bolt.Logger
	color bool
}

// New creates a new Observer with console output.
// If verbose is false, only warnings and errors are shown.
func New(out io.Writer, verbose bool) *Observer {
	handler := bolt.NewConsoleHandler(out)
	l := bolt.New(handler)

	if !verbose {
		l.SetLevel(bolt.WARN)
	}

	return &Observer{
		log:   l,
		color: true,
	}
}

// NewJSON creates a new Observer with JSON output.
// If verbose is false, only warnings and errors are shown.
func NewJSON(out io.Writer, verbose bool) *Observer {
	handler := bolt.NewJSONHandler(out)
	l := bolt.New(handler)

	if !verbose {
		l.SetLevel(bolt.WARN)
	}

	return &Observer{
		log: l,
	}
}

// Log returns the underlying logger
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// Logger returns a logger scoped to a named context such as an agent.
// Console observers render the context name in the given color.
func (o *Observer) Logger(context string, color Color) *Logger {
	label := context
	if o.color && color != "" {
		label = lipgloss.NewStyle().Foreground(color.lipgloss()).Render(context)
	}
	return &Logger{log: o.log, context: context, label: label}
}

// StartSpan starts a new OTel span
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// Close ensures any buffered logs or traces are flushed (placeholder)
func (o *Observer) Close() error {
	return nil
}

// Logger is a context-scoped view over the Observer's logger.
type Logger struct {
	log     *bolt.Logger
	context string
	label   string
}

// Context returns the uncolored context name.
func (l *Logger) Context() string {
	return l.context
}

func (l *Logger) Debug(msg string) {
	l.log.Debug().Str("ctx", l.label).Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.log.Info().Str("ctx", l.label).Msg(msg)
}

// Success logs a completed operation at info level.
func (l *Logger) Success(msg string) {
	l.log.Info().Str("ctx", l.label).Str("status", "ok").Msg(msg)
}

func (l *Logger) Warn(msg string) {
	l.log.Warn().Str("ctx", l.label).Msg(msg)
}

func (l *Logger) Error(err error, msg string) {
	l.log.Error().Str("ctx", l.label).Err(err).Msg(msg)
}
