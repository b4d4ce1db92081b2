package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/fsagent/pkg/conversation"
	"github.com/go-go-golems/fsagent/pkg/inference/engine"
	"github.com/go-go-golems/fsagent/pkg/inference/toolloop"
	"github.com/go-go-golems/fsagent/pkg/settings"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu       sync.Mutex
	requests []go_openai.ChatCompletionRequest
	auth     []string
	reply    func(req go_openai.ChatCompletionRequest) (int, string)
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req go_openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()

	status, body := f.reply(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newTestEngine(t *testing.T, f *fakeServer) *OpenAIEngine {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	e, err := NewOpenAIEngine(&settings.APISettings{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "mistral-large-latest",
	}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return e
}

func builtinDescriptors(t *testing.T) []actions.Descriptor {
	reg := actions.NewRegistry()
	require.NoError(t, actions.RegisterBuiltins(reg, actions.NewFilesystem(afero.NewMemMapFs())))
	return reg.Descriptors()
}

const toolCallReply = `{
  "id": "cmpl-1",
  "object": "chat.completion",
  "model": "mistral-large-latest",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "abc123def",
        "type": "function",
        "function": {"name": "create_directory", "arguments": "{\"path\":\"/tmp\",\"directory_name\":\"demo\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

const finalReply = `{
  "id": "cmpl-2",
  "object": "chat.completion",
  "model": "mistral-large-latest",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "I created /tmp/demo for you."}
  }]
}`

func TestRunInferenceToolRequest(t *testing.T) {
	f := &fakeServer{reply: func(go_openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, toolCallReply
	}}
	e := newTestEngine(t, f)

	c := conversation.New(conversation.NewUserTurn("make a demo folder in /tmp"))
	resp, err := e.RunInference(context.Background(), c, builtinDescriptors(t))
	require.NoError(t, err)

	assert.True(t, resp.IsToolRequest())
	assert.Equal(t, engine.FinishReasonToolCalls, resp.FinishReason)
	require.Len(t, resp.Invocations, 1)
	assert.Equal(t, "abc123def", resp.Invocations[0].ID)
	assert.Equal(t, "create_directory", resp.Invocations[0].Name)
	assert.JSONEq(t, `{"path":"/tmp","directory_name":"demo"}`, resp.Invocations[0].Arguments)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "Bearer test-key", f.auth[0])
	assert.Equal(t, "mistral-large-latest", req.Model)
	assert.Equal(t, "auto", req.ToolChoice)
	require.Len(t, req.Tools, 2)
	assert.Equal(t, "create_directory", req.Tools[0].Function.Name)
	assert.Equal(t, "write_file", req.Tools[1].Function.Name)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, go_openai.ChatMessageRoleUser, req.Messages[0].Role)
}

func TestRunInferenceWithoutToolsSendsNoToolChoice(t *testing.T) {
	f := &fakeServer{reply: func(go_openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, finalReply
	}}
	e := newTestEngine(t, f)

	call := actions.Invocation{ID: "abc123def", Name: "create_directory", Arguments: `{"path":"/tmp","directory_name":"demo"}`}
	c := conversation.New(
		conversation.NewUserTurn("make a demo folder in /tmp"),
		conversation.NewToolCallTurn("", []actions.Invocation{call}),
		conversation.NewToolResultTurn(call, actions.NewSuccessResult("Directory created successfully at: /tmp/demo", "/tmp/demo")),
	)

	resp, err := e.RunInference(context.Background(), c, nil)
	require.NoError(t, err)
	assert.False(t, resp.IsToolRequest())
	assert.Equal(t, "I created /tmp/demo for you.", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Empty(t, req.Tools)
	assert.Nil(t, req.ToolChoice)

	require.Len(t, req.Messages, 3)
	assistant := req.Messages[1]
	assert.Equal(t, go_openai.ChatMessageRoleAssistant, assistant.Role)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "abc123def", assistant.ToolCalls[0].ID)
	assert.Equal(t, "create_directory", assistant.ToolCalls[0].Function.Name)

	tool := req.Messages[2]
	assert.Equal(t, go_openai.ChatMessageRoleTool, tool.Role)
	assert.Equal(t, "abc123def", tool.ToolCallID)
	assert.Equal(t, "create_directory", tool.Name)
	assert.JSONEq(t, `{"success":true,"message":"Directory created successfully at: /tmp/demo","path":"/tmp/demo"}`, tool.Content)
}

func TestRunInferenceErrors(t *testing.T) {
	t.Run("empty choices", func(t *testing.T) {
		f := &fakeServer{reply: func(go_openai.ChatCompletionRequest) (int, string) {
			return http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`
		}}
		e := newTestEngine(t, f)
		_, err := e.RunInference(context.Background(), conversation.New(conversation.NewUserTurn("hi")), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no choices")
	})

	t.Run("server error", func(t *testing.T) {
		f := &fakeServer{reply: func(go_openai.ChatCompletionRequest) (int, string) {
			return http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`
		}}
		e := newTestEngine(t, f)
		_, err := e.RunInference(context.Background(), conversation.New(conversation.NewUserTurn("hi")), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat completion request failed")
	})
}

func TestMakeClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIEngine(&settings.APISettings{BaseURL: "http://localhost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, settings.ErrMissingAPIKey)
}

func TestToolCallsWithoutIDGetOne(t *testing.T) {
	invs := ToolCallsToInvocations([]go_openai.ToolCall{
		{Function: go_openai.FunctionCall{Name: "a", Arguments: "{}"}},
		{ID: "b-id", Function: go_openai.FunctionCall{Name: "b", Arguments: "{}"}},
	})
	require.Len(t, invs, 2)
	assert.NotEmpty(t, invs[0].ID)
	assert.Equal(t, "b-id", invs[1].ID)
	assert.Equal(t, "a", invs[0].Name)
}

const mixedToolCallReply = `{
  "id": "cmpl-3",
  "object": "chat.completion",
  "model": "mistral-large-latest",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [
        {"id": "known1", "type": "function", "function": {"name": "create_directory", "arguments": "{\"path\":\"/tmp\",\"directory_name\":\"demo\"}"}},
        {"id": "abc123def", "type": "function", "function": {"name": "delete_everything", "arguments": "{}"}}
      ]
    }
  }]
}`

// requireToolCallsAnswered fails when an assistant tool call in req has no tool
// message with the same ID.
func requireToolCallsAnswered(t *testing.T, req go_openai.ChatCompletionRequest) {
	t.Helper()
	answered := map[string]bool{}
	for _, m := range req.Messages {
		if m.Role == go_openai.ChatMessageRoleTool {
			answered[m.ToolCallID] = true
		}
	}
	for _, m := range req.Messages {
		for _, tc := range m.ToolCalls {
			assert.True(t, answered[tc.ID], "tool call %s (%s) has no tool message", tc.ID, tc.Function.Name)
		}
	}
}

func TestSkippedUnknownActionsLeaveNoDanglingToolCalls(t *testing.T) {
	for _, tc := range []struct {
		name      string
		first     string
		toolCalls []string
	}{
		{name: "mixed batch", first: mixedToolCallReply, toolCalls: []string{"known1"}},
		{name: "only unknown", first: strings.Replace(toolCallReply, `"create_directory"`, `"delete_everything"`, 1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeServer{}
			f.reply = func(go_openai.ChatCompletionRequest) (int, string) {
				if len(f.requests) == 1 {
					return http.StatusOK, tc.first
				}
				return http.StatusOK, finalReply
			}
			e := newTestEngine(t, f)

			reg := actions.NewRegistry()
			require.NoError(t, actions.RegisterBuiltins(reg, actions.NewFilesystem(afero.NewMemMapFs())))

			res, err := toolloop.New(
				toolloop.WithEngine(e),
				toolloop.WithRegistry(reg),
				toolloop.WithSkipUnknownActions(true),
			).Run(context.Background(), "make a demo folder in /tmp", toolloop.Environment{})
			require.NoError(t, err)
			assert.Equal(t, "I created /tmp/demo for you.", res.FinalText)
			require.Len(t, res.Skipped, 1)
			assert.Equal(t, "delete_everything", res.Skipped[0].Name)

			require.Len(t, f.requests, 2)
			followUp := f.requests[1]
			requireToolCallsAnswered(t, followUp)

			var ids []string
			for _, m := range followUp.Messages {
				for _, call := range m.ToolCalls {
					ids = append(ids, call.ID)
				}
			}
			assert.Equal(t, tc.toolCalls, ids)
		})
	}
}
