package conversation

import (
	"strings"

	"github.com/go-go-golems/fsagent/pkg/actions"
)

// Conversation is an append-only sequence of turns for a single run.
type Conversation struct {
	turns []*Turn
}

func New(turns ...*Turn) *Conversation {
	c := &Conversation{}
	c.Append(turns...)
	return c
}

func (c *Conversation) Append(turns ...*Turn) {
	for _, t := range turns {
		if t != nil {
			c.turns = append(c.turns, t)
		}
	}
}

// Turns returns a copy of the turn list. The turns themselves are shared.
func (c *Conversation) Turns() []*Turn {
	ret := make([]*Turn, len(c.turns))
	copy(ret, c.turns)
	return ret
}

func (c *Conversation) Len() int {
	return len(c.turns)
}

func (c *Conversation) Last() *Turn {
	if len(c.turns) == 0 {
		return nil
	}
	return c.turns[len(c.turns)-1]
}

// ToolResults returns the tool-result turns in the order they were appended.
func (c *Conversation) ToolResults() []*Turn {
	var ret []*Turn
	for _, t := range c.turns {
		if t.IsToolResult() {
			ret = append(ret, t)
		}
	}
	return ret
}

// ResultFor looks up the result recorded for an invocation ID.
func (c *Conversation) ResultFor(invocationID string) (actions.Result, bool) {
	for _, t := range c.turns {
		if t.IsToolResult() && t.ToolCallID == invocationID {
			return *t.Result, true
		}
	}
	return actions.Result{}, false
}

func (c *Conversation) String() string {
	lines := make([]string, 0, len(c.turns))
	for _, t := range c.turns {
		lines = append(lines, t.String())
	}
	return strings.Join(lines, "\n")
}
