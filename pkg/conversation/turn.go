package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

// Turn is one entry of a conversation.
//
// Assistant turns that request actions carry ToolCalls. Tool turns carry the
// Result of exactly one invocation, correlated through ToolCallID.
type Turn struct {
	ID   uuid.UUID `json:"id" yaml:"id"`
	Role Role      `json:"role" yaml:"role"`
	Text string    `json:"text,omitempty" yaml:"text,omitempty"`

	ToolCalls []actions.Invocation `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`

	ToolCallID string          `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	Result     *actions.Result `json:"result,omitempty" yaml:"result,omitempty"`

	Time time.Time `json:"time" yaml:"time"`
}

func newTurn(role Role) *Turn {
	return &Turn{
		ID:   uuid.New(),
		Role: role,
		Time: time.Now(),
	}
}

func NewUserTurn(text string) *Turn {
	t := newTurn(RoleUser)
	t.Text = text
	return t
}

func NewAssistantTurn(text string) *Turn {
	t := newTurn(RoleAssistant)
	t.Text = text
	return t
}

// NewToolCallTurn records the assistant's request to run actions. text is whatever
// content accompanied the request, possibly empty.
func NewToolCallTurn(text string, calls []actions.Invocation) *Turn {
	t := newTurn(RoleAssistant)
	t.Text = text
	t.ToolCalls = append([]actions.Invocation(nil), calls...)
	return t
}

func NewToolResultTurn(invocation actions.Invocation, result actions.Result) *Turn {
	t := newTurn(RoleTool)
	t.ToolCallID = invocation.ID
	t.ToolName = invocation.Name
	r := result
	t.Result = &r
	t.Text = result.JSON()
	return t
}

func (t *Turn) IsToolResult() bool {
	return t.Role == RoleTool && t.Result != nil
}

func (t *Turn) HasToolCalls() bool {
	return len(t.ToolCalls) > 0
}

func (t *Turn) String() string {
	switch {
	case t.HasToolCalls():
		names := make([]string, 0, len(t.ToolCalls))
		for _, c := range t.ToolCalls {
			names = append(names, c.Name)
		}
		return fmt.Sprintf("[%s]: tool calls %s", t.Role, strings.Join(names, ", "))
	case t.IsToolResult():
		return fmt.Sprintf("[%s]: %s (%s) -> %s", t.Role, t.ToolName, t.ToolCallID, t.Text)
	default:
		return fmt.Sprintf("[%s]: %s", t.Role, strings.TrimRight(t.Text, "\n"))
	}
}
