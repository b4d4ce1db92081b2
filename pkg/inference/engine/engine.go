package engine

import (
	"context"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/fsagent/pkg/conversation"
)

// Engine sends a conversation to a chat model and reports whether the model answered
// or asked for actions to be run. available is the set of actions offered for this
// request; an empty list means no tools are offered.
type Engine interface {
	RunInference(
		ctx context.Context,
		c *conversation.Conversation,
		available []actions.Descriptor,
	) (*Response, error)
}

type ResponseKind string

const (
	ResponseKindFinalText   ResponseKind = "final-text"
	ResponseKindToolRequest ResponseKind = "tool-request"
)

const FinishReasonToolCalls = "tool_calls"

// Response is either final text or a batch of action invocations. Text may be set
// on a tool request when the model accompanied the calls with prose.
type Response struct {
	Kind         ResponseKind         `json:"kind" yaml:"kind"`
	Text         string               `json:"text,omitempty" yaml:"text,omitempty"`
	Invocations  []actions.Invocation `json:"invocations,omitempty" yaml:"invocations,omitempty"`
	FinishReason string               `json:"finish_reason,omitempty" yaml:"finish_reason,omitempty"`
}

func NewFinalText(text string, finishReason string) *Response {
	return &Response{
		Kind:         ResponseKindFinalText,
		Text:         text,
		FinishReason: finishReason,
	}
}

func NewToolRequest(text string, invocations []actions.Invocation, finishReason string) *Response {
	return &Response{
		Kind:         ResponseKindToolRequest,
		Text:         text,
		Invocations:  invocations,
		FinishReason: finishReason,
	}
}

func (r *Response) IsToolRequest() bool {
	return r != nil && r.Kind == ResponseKindToolRequest && len(r.Invocations) > 0
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, c *conversation.Conversation, available []actions.Descriptor) (*Response, error)

func (f EngineFunc) RunInference(ctx context.Context, c *conversation.Conversation, available []actions.Descriptor) (*Response, error) {
	return f(ctx, c, available)
}

var _ Engine = EngineFunc(nil)
