// Package events publishes agent lifecycle events to in-process subscribers.
package events

import (
	"sync"
	"time"
)

// Type represents the type of agent event.
type Type string

const (
	AgentReady      Type = "agent_ready"
	AgentFailed     Type = "agent_failed"
	PromptStart     Type = "prompt_start"
	PromptEnd       Type = "prompt_end"
	MemoryStored    Type = "memory_stored"
	MemorySearched  Type = "memory_searched"
	MemoryForgotten Type = "memory_forgotten"
	CommandExecuted Type = "command_executed"
	PipelineStep    Type = "pipeline_step"
)

// Event represents an agent event with associated data.
type Event struct {
	Type      Type
	Timestamp time.Time
	Agent     string
	Data      map[string]any
}

// Handler is a function that handles events.
type Handler func(Event)

// Bus manages event publication and subscription. A nil *Bus is valid and
// drops every event.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Type][]Handler
	allHandlers []Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
}

// Publish sends an event to all registered handlers, synchronously.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}

// Emit publishes an event for agent with optional data.
func (b *Bus) Emit(t Type, agent string, data map[string]any) {
	b.Publish(Event{
		Type:  t,
		Agent: agent,
		Data:  data,
	})
}
