package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart is published once per run, before the first request.
	EventTypeStart EventType = "start"
	// EventTypeToolCall is a tool request made by the model.
	EventTypeToolCall EventType = "tool-call"
	// EventTypeToolResult is the outcome of running one tool request locally.
	EventTypeToolResult EventType = "tool-result"
	EventTypeFinal      EventType = "final"
	EventTypeError      EventType = "error"
	EventTypeInfo       EventType = "info"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata correlates events of a single run.
type EventMetadata struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	RoundTrip int       `json:"round_trip,omitempty" yaml:"round_trip,omitempty"`
	Engine    string    `json:"engine,omitempty" yaml:"engine,omitempty"`
	Time      time.Time `json:"time" yaml:"time"`
}

func NewEventMetadata(runID string, roundTrip int) EventMetadata {
	return EventMetadata{
		ID:        uuid.New(),
		RunID:     runID,
		RoundTrip: roundTrip,
		Time:      time.Now(),
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", em.ID.String())
	if em.RunID != "" {
		e.Str("run_id", em.RunID)
	}
	if em.RoundTrip > 0 {
		e.Int("round_trip", em.RoundTrip)
	}
	if em.Engine != "" {
		e.Str("engine", em.Engine)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// set when the event was decoded by NewEventFromJson
	payload []byte
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

type EventStart struct {
	EventImpl
	Prompt string `json:"prompt"`
}

func NewStartEvent(metadata EventMetadata, prompt string) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
		Prompt:    prompt,
	}
}

type ToolCall struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Input string `json:"input" yaml:"input"`
}

type EventToolCall struct {
	EventImpl
	ToolCall   ToolCall `json:"tool_call"`
	StopReason string   `json:"stop_reason,omitempty"`
}

func NewToolCallEvent(metadata EventMetadata, toolCall ToolCall, stopReason string) *EventToolCall {
	return &EventToolCall{
		EventImpl:  EventImpl{Type_: EventTypeToolCall, Metadata_: metadata},
		ToolCall:   toolCall,
		StopReason: stopReason,
	}
}

type ToolResult struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Success bool    `json:"success" yaml:"success"`
	Message string  `json:"message" yaml:"message"`
	Path    *string `json:"path,omitempty" yaml:"path,omitempty"`
}

type EventToolResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolResult {
	return &EventToolResult{
		EventImpl:  EventImpl{Type_: EventTypeToolResult, Metadata_: metadata},
		ToolResult: toolResult,
	}
}

type EventFinal struct {
	EventImpl
	Text       string `json:"text"`
	StopReason string `json:"stop_reason,omitempty"`
}

func NewFinalEvent(metadata EventMetadata, text string, stopReason string) *EventFinal {
	return &EventFinal{
		EventImpl:  EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:       text,
		StopReason: stopReason,
	}
}

// EventError carries the error as a string so it survives the JSON round trip.
type EventError struct {
	EventImpl
	ErrorString string `json:"error"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	s := ""
	if err != nil {
		s = err.Error()
	}
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: s,
	}
}

type EventInfo struct {
	EventImpl
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func NewInfoEvent(metadata EventMetadata, message string, data map[string]interface{}) *EventInfo {
	return &EventInfo{
		EventImpl: EventImpl{Type_: EventTypeInfo, Metadata_: metadata},
		Message:   message,
		Data:      data,
	}
}

func decodeAs[T any, PT interface {
	*T
	Event
	setPayload([]byte)
}](b []byte) (Event, error) {
	var ret T
	if err := json.Unmarshal(b, &ret); err != nil {
		return nil, err
	}
	p := PT(&ret)
	p.setPayload(b)
	return p, nil
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	switch hdr.Type {
	case EventTypeStart:
		return decodeAs[EventStart](b)
	case EventTypeToolCall:
		return decodeAs[EventToolCall](b)
	case EventTypeToolResult:
		return decodeAs[EventToolResult](b)
	case EventTypeFinal:
		return decodeAs[EventFinal](b)
	case EventTypeError:
		return decodeAs[EventError](b)
	case EventTypeInfo:
		return decodeAs[EventInfo](b)
	}

	return nil, fmt.Errorf("unknown event type: %q", hdr.Type)
}
