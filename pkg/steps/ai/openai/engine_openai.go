package openai

import (
	"context"
	"net/http"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/fsagent/pkg/conversation"
	"github.com/go-go-golems/fsagent/pkg/inference/engine"
	"github.com/go-go-golems/fsagent/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine talks to an OpenAI-compatible chat completion endpoint that supports
// native tool calling, such as the Mistral API.
type OpenAIEngine struct {
	settings *settings.APISettings
	client   *go_openai.Client
}

type Option func(*engineOptions)

type engineOptions struct {
	httpClient *http.Client
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *engineOptions) {
		o.httpClient = c
	}
}

func NewOpenAIEngine(apiSettings *settings.APISettings, options ...Option) (*OpenAIEngine, error) {
	opts := &engineOptions{}
	for _, o := range options {
		o(opts)
	}

	client, err := MakeClient(apiSettings, opts.httpClient)
	if err != nil {
		return nil, err
	}

	return &OpenAIEngine{
		settings: apiSettings,
		client:   client,
	}, nil
}

func (e *OpenAIEngine) RunInference(
	ctx context.Context,
	c *conversation.Conversation,
	available []actions.Descriptor,
) (*engine.Response, error) {
	req := go_openai.ChatCompletionRequest{
		Model:    e.settings.Model,
		Messages: ConversationToMessages(c),
	}

	if len(available) > 0 {
		tools, err := DescriptorsToTools(available)
		if err != nil {
			return nil, err
		}
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("sending chat completion request")

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion response has no choices")
	}

	choice := resp.Choices[0]
	finishReason := string(choice.FinishReason)

	log.Debug().
		Str("finish_reason", finishReason).
		Int("tool_calls", len(choice.Message.ToolCalls)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion received")

	if len(choice.Message.ToolCalls) > 0 {
		if choice.FinishReason != go_openai.FinishReasonToolCalls {
			log.Debug().Str("finish_reason", finishReason).Msg("tool calls present without tool_calls finish reason")
		}
		return engine.NewToolRequest(
			choice.Message.Content,
			ToolCallsToInvocations(choice.Message.ToolCalls),
			finishReason,
		), nil
	}

	return engine.NewFinalText(choice.Message.Content, finishReason), nil
}

var _ engine.Engine = (*OpenAIEngine)(nil)
