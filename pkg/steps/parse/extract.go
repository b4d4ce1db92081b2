package parse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ToolCall is a tool request found in free-form model output, in the shape
// {"tool": "<name>", "arguments": {...}}.
type ToolCall struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// ExtractToolCall looks for a tool request in text. It takes the first '{', scans
// forward to the matching '}' while skipping over JSON strings, and accepts the
// candidate only if it decodes to an object with a non-empty string "tool" and an
// object "arguments". Prose before and after the object is ignored.
func ExtractToolCall(text string) (*ToolCall, bool) {
	block, ok := FirstBalancedObject(text)
	if !ok {
		return nil, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil, false
	}

	toolRaw, ok := raw["tool"]
	if !ok {
		return nil, false
	}
	var name string
	if err := json.Unmarshal(toolRaw, &name); err != nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	args, ok := raw["arguments"]
	if !ok {
		return nil, false
	}
	args = bytes.TrimSpace(args)
	if len(args) == 0 || args[0] != '{' {
		return nil, false
	}

	return &ToolCall{Tool: name, Arguments: args}, true
}

// FirstBalancedObject returns the substring from the first '{' in text up to and
// including its matching '}'. Braces inside JSON strings are not counted. It returns
// false when there is no '{' or the object is never closed.
func FirstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
