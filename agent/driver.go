// ABOUTME: Graph driver: per-turn routing across the orchestrator nodes.
// ABOUTME: Runs each turn against a cloned state and commits only on success.
package agent

import (
	"context"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/llm"
)

// Orchestrator runs conversation turns. Safe for concurrent use across
// sessions; per-session serialization is the store's job.
type Orchestrator struct {
	completer llm.Completer
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects a deterministic clock for relative-date resolution.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an orchestrator around an LLM completer.
func New(completer llm.Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer: completer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// route names, for logs.
const (
	routeGreeting     = "greeting"
	routeToolResults  = "tool_results"
	routeStepConfirm  = "step_confirmation"
	routeValidate     = "validate_input"
	routeExtraction   = "extraction"
	routeConversation = "conversation"
)

// route picks the node path for a turn, checked in order.
func route(st *State) string {
	switch {
	case len(st.History) == 0 && st.turn.UserMessage == "":
		return routeGreeting
	case len(st.turn.ToolResults) > 0:
		return routeToolResults
	case st.AwaitingStepConfirmation && st.turn.UserMessage != "":
		return routeStepConfirm
	case st.PendingFieldID != "" && st.turn.UserMessage != "":
		return routeValidate
	case !st.InitialExtractionDone && st.turn.UserMessage != "":
		return routeExtraction
	default:
		return routeConversation
	}
}

// RunTurn executes one full turn against a clone of prev and returns the
// emitted action together with the successor state. On error the returned
// state is nil and prev is untouched; callers commit the successor only when
// the turn succeeds.
func (o *Orchestrator) RunTurn(ctx context.Context, prev *State, input TurnInput) (action.Action, *State, error) {
	st := prev.Clone()
	st.turn = input
	st.LastAccessedAt = o.now()

	turnID := ulid.Make()
	path := route(st)
	log.Printf("component=agent action=turn_start conversation=%s turn=%s route=%s", st.ConversationID, turnID, path)

	var act action.Action
	switch path {
	case routeGreeting:
		act = runGreeting(st)

	case routeToolResults:
		o.runToolHandler(st)
		var err error
		act, err = o.runConversation(ctx, st)
		if err != nil {
			return action.Action{}, nil, err
		}
		act = runFinalize(st, act)

	case routeStepConfirm:
		if direct, done := o.runStepConfirmation(st); done {
			act = runFinalize(st, direct)
			break
		}
		var err error
		act, err = o.runConversation(ctx, st)
		if err != nil {
			return action.Action{}, nil, err
		}
		act = runFinalize(st, act)

	case routeValidate:
		o.runValidateInput(st)
		var err error
		act, err = o.runConversation(ctx, st)
		if err != nil {
			return action.Action{}, nil, err
		}
		act = runFinalize(st, act)

	case routeExtraction:
		o.runExtraction(ctx, st)
		switch {
		case st.turn.parsed != nil:
			act = runFinalize(st, *st.turn.parsed)
		case len(st.MissingRequired()) == 0:
			act = runFinalize(st, action.NewFormComplete(nil, completionText(st)))
		default:
			var err error
			act, err = o.runConversation(ctx, st)
			if err != nil {
				return action.Action{}, nil, err
			}
			act = runFinalize(st, act)
		}

	default:
		var err error
		act, err = o.runConversation(ctx, st)
		if err != nil {
			return action.Action{}, nil, err
		}
		act = runFinalize(st, act)
	}

	st.turn = TurnInput{}
	log.Printf("component=agent action=turn_end conversation=%s turn=%s kind=%s answers=%d", st.ConversationID, turnID, act.Kind, len(st.Answers))
	return act, st, nil
}

func completionText(st *State) string {
	title := st.Definition.Title
	if title == "" {
		title = "the form"
	}
	return "Great, that covers everything I need for " + title + ". Thank you!"
}
