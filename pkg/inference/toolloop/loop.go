package toolloop

import (
	"context"
	"fmt"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/fsagent/pkg/conversation"
	"github.com/go-go-golems/fsagent/pkg/events"
	"github.com/go-go-golems/fsagent/pkg/helpers"
	"github.com/go-go-golems/fsagent/pkg/inference/engine"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Loop runs a single request through an engine, executing the actions the model asks
// for and relaying their results in one follow-up request. It never makes more than
// two engine round-trips.
type Loop struct {
	eng        engine.Engine
	registry   *actions.Registry
	sink       events.EventSink
	engineName string

	skipUnknown bool
}

type Option func(*Loop)

func New(opts ...Option) *Loop {
	l := &Loop{
		sink: events.NewNullSink(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func WithEngine(eng engine.Engine) Option {
	return func(l *Loop) { l.eng = eng }
}

func WithRegistry(reg *actions.Registry) Option {
	return func(l *Loop) { l.registry = reg }
}

func WithSink(sink events.EventSink) Option {
	return func(l *Loop) {
		if sink != nil {
			l.sink = sink
		}
	}
}

// WithEngineName labels published events.
func WithEngineName(name string) Option {
	return func(l *Loop) { l.engineName = name }
}

// WithSkipUnknownActions drops requests for unregistered actions without appending a
// result. By default they get a failure result so the model learns about it.
func WithSkipUnknownActions(skip bool) Option {
	return func(l *Loop) { l.skipUnknown = skip }
}

type ExecutedAction struct {
	Invocation actions.Invocation `json:"invocation" yaml:"invocation"`
	Result     actions.Result     `json:"result" yaml:"result"`
}

type Result struct {
	FinalText    string                     `json:"final_text" yaml:"final_text"`
	FinishReason string                     `json:"finish_reason,omitempty" yaml:"finish_reason,omitempty"`
	Conversation *conversation.Conversation `json:"-" yaml:"-"`
	Executed     []ExecutedAction           `json:"executed,omitempty" yaml:"executed,omitempty"`
	Skipped      []actions.Invocation       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	RoundTrips   int                        `json:"round_trips" yaml:"round_trips"`
}

// Run builds the initial conversation from prompt and env and dispatches it.
func (l *Loop) Run(ctx context.Context, prompt string, env Environment) (*Result, error) {
	return l.RunConversation(ctx, prompt, BuildInitialConversation(prompt, env))
}

// RunConversation dispatches an already built conversation. prompt is only used for
// the start event.
func (l *Loop) RunConversation(ctx context.Context, prompt string, c *conversation.Conversation) (*Result, error) {
	if l.eng == nil {
		return nil, errors.New("tool loop engine is nil")
	}
	if l.registry == nil {
		return nil, errors.New("tool loop registry is nil")
	}
	if c == nil {
		c = conversation.New()
	}

	runID := helpers.NewRunID()
	ctx = helpers.ContextWithRunID(ctx, runID)
	logger := log.With().Str("run_id", runID).Logger()

	res := &Result{Conversation: c}
	l.publish(events.NewStartEvent(l.metadata(runID, 0), prompt))

	// first round-trip, all actions offered
	res.RoundTrips++
	logger.Debug().Int("round_trip", res.RoundTrips).Msg("awaiting first response")
	first, err := l.eng.RunInference(ctx, c, l.registry.Descriptors())
	if err != nil {
		l.publish(events.NewErrorEvent(l.metadata(runID, res.RoundTrips), err))
		return nil, errors.Wrap(err, "first inference failed")
	}
	if first == nil {
		err := errors.New("engine returned no response")
		l.publish(events.NewErrorEvent(l.metadata(runID, res.RoundTrips), err))
		return nil, errors.Wrap(err, "first inference failed")
	}

	if !first.IsToolRequest() {
		logger.Debug().Str("finish_reason", first.FinishReason).Msg("final text received, no actions requested")
		c.Append(conversation.NewAssistantTurn(first.Text))
		res.FinalText = first.Text
		res.FinishReason = first.FinishReason
		l.publish(events.NewFinalEvent(l.metadata(runID, res.RoundTrips), first.Text, first.FinishReason))
		return res, nil
	}

	logger.Debug().Int("invocations", len(first.Invocations)).Msg("executing actions")

	// every tool call on the assistant turn must be answered by a tool turn, so
	// skipped invocations are left off it
	requested := first.Invocations
	if l.skipUnknown {
		requested = l.knownInvocations(first.Invocations)
	}
	switch {
	case len(requested) > 0:
		c.Append(conversation.NewToolCallTurn(first.Text, requested))
	case first.Text != "":
		c.Append(conversation.NewAssistantTurn(first.Text))
	}

	for _, inv := range first.Invocations {
		meta := l.metadata(runID, res.RoundTrips)
		l.publish(events.NewToolCallEvent(meta, events.ToolCall{
			ID:    inv.ID,
			Name:  inv.Name,
			Input: inv.Arguments,
		}, first.FinishReason))

		if !l.registry.Has(inv.Name) && l.skipUnknown {
			logger.Warn().Str("action", inv.Name).Str("invocation_id", inv.ID).Msg("skipping unknown action")
			res.Skipped = append(res.Skipped, inv)
			l.publish(events.NewInfoEvent(meta, fmt.Sprintf("skipped unknown action %s", inv.Name), nil))
			continue
		}

		// Invoke reports unknown actions and bad arguments as failure results
		result := l.registry.Invoke(ctx, inv.Name, inv.Arguments)
		logger.Debug().
			Str("action", inv.Name).
			Str("invocation_id", inv.ID).
			Bool("success", result.Success).
			Str("message", result.Message).
			Msg("action executed")

		c.Append(conversation.NewToolResultTurn(inv, result))
		res.Executed = append(res.Executed, ExecutedAction{Invocation: inv, Result: result})
		l.publish(events.NewToolResultEvent(meta, events.ToolResult{
			ID:      inv.ID,
			Name:    inv.Name,
			Success: result.Success,
			Message: result.Message,
			Path:    result.Path,
		}))
	}

	// follow-up round-trip, no actions offered and no recursion
	res.RoundTrips++
	logger.Debug().Int("round_trip", res.RoundTrips).Msg("awaiting final response")
	final, err := l.eng.RunInference(ctx, c, nil)
	if err != nil {
		l.publish(events.NewErrorEvent(l.metadata(runID, res.RoundTrips), err))
		return nil, errors.Wrap(err, "follow-up inference failed")
	}
	if final == nil {
		err := errors.New("engine returned no response")
		l.publish(events.NewErrorEvent(l.metadata(runID, res.RoundTrips), err))
		return nil, errors.Wrap(err, "follow-up inference failed")
	}
	if final.IsToolRequest() {
		names := make([]string, 0, len(final.Invocations))
		for _, inv := range final.Invocations {
			names = append(names, inv.Name)
		}
		logger.Warn().Strs("actions", names).Msg("ignoring tool request in follow-up response")
	}

	c.Append(conversation.NewAssistantTurn(final.Text))
	res.FinalText = final.Text
	res.FinishReason = final.FinishReason
	l.publish(events.NewFinalEvent(l.metadata(runID, res.RoundTrips), final.Text, final.FinishReason))

	return res, nil
}

func (l *Loop) knownInvocations(invocations []actions.Invocation) []actions.Invocation {
	ret := make([]actions.Invocation, 0, len(invocations))
	for _, inv := range invocations {
		if l.registry.Has(inv.Name) {
			ret = append(ret, inv)
		}
	}
	return ret
}

func (l *Loop) metadata(runID string, roundTrip int) events.EventMetadata {
	meta := events.NewEventMetadata(runID, roundTrip)
	meta.Engine = l.engineName
	return meta
}

func (l *Loop) publish(e events.Event) {
	if err := l.sink.PublishEvent(e); err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("Failed to publish event to sink")
	}
}
