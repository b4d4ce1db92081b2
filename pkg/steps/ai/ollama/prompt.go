package ollama

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/pkg/errors"
)

const systemPromptTemplate = `You are a helpful assistant that can create directories and files on the user's computer.
{{- if .Tools }}

Available tools:
{{ .Tools | toPrettyJson }}

When the user asks for one of these actions, respond with a JSON object containing the tool call:
{
    "tool": "<one of {{ .ToolNames | join ", " }}>",
    "arguments": {
        "<parameter>": "<value>"
    }
}
{{- end }}
{{- if .DesktopPath }}

The user's desktop path is: {{ .DesktopPath }}

If the user mentions "desktop" or "desktop location", use the path: {{ .DesktopPath }}
{{- end }}
`

var systemPrompt = template.Must(
	template.New("system-prompt").Funcs(sprig.TxtFuncMap()).Parse(systemPromptTemplate),
)

type promptData struct {
	Tools       []actions.ToolSpec
	ToolNames   []string
	DesktopPath string
}

// RenderSystemPrompt renders the system prompt describing the available actions and
// the JSON shape a tool request must take. Without actions only the preamble and the
// desktop hint are rendered.
func RenderSystemPrompt(available []actions.Descriptor, desktopPath string) (string, error) {
	specs, err := actions.ToolSpecs(available)
	if err != nil {
		return "", err
	}
	data := promptData{
		Tools:       specs,
		DesktopPath: desktopPath,
	}
	for _, d := range available {
		data.ToolNames = append(data.ToolNames, d.Name)
	}

	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "could not render system prompt")
	}
	return buf.String(), nil
}

// ToolResultMessage is the user message that relays an action result to a model
// without native tool support.
func ToolResultMessage(resultJSON string) string {
	return fmt.Sprintf("Tool execution result: %s. Please provide a natural response to the user.", resultJSON)
}
