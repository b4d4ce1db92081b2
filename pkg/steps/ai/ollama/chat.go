package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/fsagent/pkg/conversation"
	"github.com/go-go-golems/fsagent/pkg/inference/engine"
	"github.com/go-go-golems/fsagent/pkg/settings"
	"github.com/go-go-golems/fsagent/pkg/steps/parse"
	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OllamaEngine talks to a local model server that has no native tool calling. Actions
// are described in the system prompt and tool requests are recovered from the reply
// text.
type OllamaEngine struct {
	settings    *settings.OllamaSettings
	client      *api.Client
	desktopPath string
}

type Option func(*engineOptions)

type engineOptions struct {
	httpClient  *http.Client
	desktopPath string
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *engineOptions) {
		o.httpClient = c
	}
}

// WithDesktopPath adds the desktop hint to the system prompt.
func WithDesktopPath(p string) Option {
	return func(o *engineOptions) {
		o.desktopPath = p
	}
}

func NewOllamaEngine(s *settings.OllamaSettings, options ...Option) (*OllamaEngine, error) {
	if s == nil {
		return nil, errors.New("no ollama settings")
	}
	opts := &engineOptions{}
	for _, o := range options {
		o(opts)
	}

	u, err := url.Parse(s.Host)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ollama host %q", s.Host)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid ollama host %q", s.Host)
	}

	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: s.Timeout}
	}

	return &OllamaEngine{
		settings:    s,
		client:      api.NewClient(u, httpClient),
		desktopPath: opts.desktopPath,
	}, nil
}

func (e *OllamaEngine) RunInference(
	ctx context.Context,
	c *conversation.Conversation,
	available []actions.Descriptor,
) (*engine.Response, error) {
	system, err := RenderSystemPrompt(available, e.desktopPath)
	if err != nil {
		return nil, err
	}

	stream := false
	req := &api.ChatRequest{
		Model:    e.settings.Model,
		Messages: ConversationToMessages(system, c),
		Stream:   &stream,
	}

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(available)).
		Msg("sending ollama chat request")

	var sb strings.Builder
	doneReason := ""
	err = e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		if resp.Done {
			doneReason = resp.DoneReason
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "ollama chat request to %s failed", e.settings.Host)
	}

	text := sb.String()
	log.Debug().Str("done_reason", doneReason).Int("length", len(text)).Msg("ollama reply received")

	if len(available) == 0 {
		return engine.NewFinalText(text, doneReason), nil
	}

	call, ok := parse.ExtractToolCall(text)
	if !ok {
		log.Debug().Msg("no tool call found in reply")
		return engine.NewFinalText(text, doneReason), nil
	}

	inv := actions.Invocation{
		ID:        "call_" + uuid.NewString(),
		Name:      call.Tool,
		Arguments: string(call.Arguments),
	}
	return engine.NewToolRequest(text, []actions.Invocation{inv}, engine.FinishReasonToolCalls), nil
}

// ConversationToMessages prepends the system prompt and maps the turns. Assistant
// tool requests are sent back as the text the model produced, and action results
// are relayed as user messages.
func ConversationToMessages(system string, c *conversation.Conversation) []api.Message {
	turns := c.Turns()
	msgs := make([]api.Message, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, api.Message{Role: string(conversation.RoleSystem), Content: system})
	}

	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem, conversation.RoleUser:
			msgs = append(msgs, api.Message{Role: string(t.Role), Content: t.Text})
		case conversation.RoleAssistant:
			content := t.Text
			if content == "" && t.HasToolCalls() {
				content = toolCallsText(t.ToolCalls)
			}
			msgs = append(msgs, api.Message{Role: string(conversation.RoleAssistant), Content: content})
		case conversation.RoleTool:
			msgs = append(msgs, api.Message{Role: string(conversation.RoleUser), Content: ToolResultMessage(t.Text)})
		default:
			log.Warn().Str("role", string(t.Role)).Msg("skipping turn with unknown role")
		}
	}
	return msgs
}

func toolCallsText(calls []actions.Invocation) string {
	parts := make([]string, 0, len(calls))
	for _, call := range calls {
		b, err := json.Marshal(struct {
			Tool      string          `json:"tool"`
			Arguments json.RawMessage `json:"arguments"`
		}{
			Tool:      call.Name,
			Arguments: rawOrEmpty(call.Arguments),
		})
		if err != nil {
			continue
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "\n")
}

func rawOrEmpty(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}

var _ engine.Engine = (*OllamaEngine)(nil)
