package openai

import (
	"net/http"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/fsagent/pkg/conversation"
	"github.com/go-go-golems/fsagent/pkg/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

func MakeClient(apiSettings *settings.APISettings, httpClient *http.Client) (*go_openai.Client, error) {
	if apiSettings == nil {
		return nil, errors.New("no api settings")
	}
	if apiSettings.APIKey == "" {
		return nil, errors.Wrap(settings.ErrMissingAPIKey, "could not create client")
	}
	if apiSettings.BaseURL == "" {
		return nil, errors.New("no base URL")
	}
	config := go_openai.DefaultConfig(apiSettings.APIKey)
	config.BaseURL = apiSettings.BaseURL
	if httpClient != nil {
		config.HTTPClient = httpClient
	} else if apiSettings.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: apiSettings.Timeout}
	}
	return go_openai.NewClientWithConfig(config), nil
}

// ConversationToMessages converts turns to chat messages. Assistant turns keep their
// tool calls and tool turns keep the ID of the call they answer, so the API can pair
// them up.
func ConversationToMessages(c *conversation.Conversation) []go_openai.ChatCompletionMessage {
	turns := c.Turns()
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleSystem,
				Content: t.Text,
			})
		case conversation.RoleUser:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleUser,
				Content: t.Text,
			})
		case conversation.RoleAssistant:
			msg := go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleAssistant,
				Content: t.Text,
			}
			for _, call := range t.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
					ID:   call.ID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			msgs = append(msgs, msg)
		case conversation.RoleTool:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    t.Text,
				Name:       t.ToolName,
				ToolCallID: t.ToolCallID,
			})
		default:
			log.Warn().Str("role", string(t.Role)).Msg("skipping turn with unknown role")
		}
	}
	return msgs
}

// DescriptorsToTools converts action descriptors to the request's tools field.
func DescriptorsToTools(descriptors []actions.Descriptor) ([]go_openai.Tool, error) {
	ret := make([]go_openai.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		params, err := d.ParametersJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "could not build parameters for %s", d.Name)
		}
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return ret, nil
}

// ToolCallsToInvocations keeps the order of the calls. Calls without an ID get one,
// since tool results are correlated by ID.
func ToolCallsToInvocations(calls []go_openai.ToolCall) []actions.Invocation {
	ret := make([]actions.Invocation, 0, len(calls))
	for _, tc := range calls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		ret = append(ret, actions.Invocation{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return ret
}
