// Package orchestrate chains agents so that each reply becomes the next prompt.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/felixgeelhaar/laigent/internal/chunker"
	"github.com/felixgeelhaar/laigent/internal/events"
	"github.com/felixgeelhaar/laigent/internal/observe"
	"github.com/felixgeelhaar/laigent/internal/system"
)

// ErrEmptyPipeline is returned when a pipeline has no steps.
var ErrEmptyPipeline = errors.New("pipeline has no steps")

// Step is one agent in a pipeline.
type Step struct {
	Agent *agent.Agent
	// Remember stores the step's reply in the agent's memory.
	Remember bool
}

// Result records what a step received and produced.
type Result struct {
	Agent     string
	Input     string
	Reply     agent.Reply
	MemoryIDs []string
}

type Pipeline struct {
	steps []Step
	obs   *observe.Observer
	log   *observe.Logger
	bus   *events.Bus
}

// New creates a pipeline. bus may be nil.
func New(obs *observe.Observer, palette *observe.Palette, bus *events.Bus, steps ...Step) *Pipeline {
	return &Pipeline{
		steps: steps,
		obs:   obs,
		log:   obs.Scoped(palette, "pipeline", observe.Purple),
		bus:   bus,
	}
}

// StepsFromSystem looks up the named agents in order.
func StepsFromSystem(s *system.System, names []string, remember bool) ([]Step, error) {
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		a, err := s.Agent(name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Agent: a, Remember: remember})
	}
	return steps, nil
}

// Run prompts each agent in turn, starting with input. The results of the
// steps that completed are returned together with the first error.
func (p *Pipeline) Run(ctx context.Context, input string) ([]Result, error) {
	if len(p.steps) == 0 {
		return nil, ErrEmptyPipeline
	}

	ctx, span := p.obs.StartSpan(ctx, "Pipeline.Run")
	defer span.End()

	results := make([]Result, 0, len(p.steps))
	next := input
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		name := step.Agent.Name()
		p.log.Info(fmt.Sprintf("Step %d/%d: %s", i+1, len(p.steps), name))

		reply, err := step.Agent.Prompt(ctx, next)
		if err != nil {
			p.log.Error(err, "Step failed")
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}

		res := Result{Agent: name, Input: next, Reply: reply}
		if step.Remember {
			ids, err := step.Agent.SaveInMemory(ctx, reply.String(), contentType(reply), map[string]string{
				"pipelineStep": strconv.Itoa(i + 1),
			})
			if err != nil {
				p.log.Error(err, "Failed to remember step")
				return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
			}
			res.MemoryIDs = ids
		}
		results = append(results, res)

		p.bus.Emit(events.PipelineStep, name, map[string]any{
			"step":  i + 1,
			"total": len(p.steps),
		})
		next = reply.String()
	}

	p.log.Success("Pipeline complete")
	return results, nil
}

func contentType(r agent.Reply) chunker.ContentType {
	switch r.Format {
	case agent.JSON:
		return chunker.JSON
	case agent.Markdown:
		return chunker.Markdown
	default:
		return chunker.Text
	}
}
