package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/fsagent/pkg/settings"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedOllama answers /api/chat with the given contents, in order.
type scriptedOllama struct {
	mu       sync.Mutex
	contents []string
	calls    int
}

func (s *scriptedOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()

	content := "nothing left to say"
	if i < len(s.contents) {
		content = s.contents[i]
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"model":       "mistral",
		"created_at":  "2024-01-01T00:00:00Z",
		"message":     map[string]string{"role": "assistant", "content": content},
		"done":        true,
		"done_reason": "stop",
	})
}

func TestLocalDispatchPrintsTrace(t *testing.T) {
	srv := httptest.NewServer(&scriptedOllama{contents: []string{
		`Sure. {"tool":"create_directory","arguments":{"path":"/data","directory_name":"ProjectData"}}`,
		"I created the folder ProjectData in /data.",
	}})
	defer srv.Close()

	s := settings.NewSettings()
	s.Ollama.Host = srv.URL
	s.DesktopPath = "/data"

	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	err := runDispatch(context.Background(), &out, s, "make a folder called 'ProjectData' on my desktop", LocalEngineFactory, dispatchOptions{
		fs:      fs,
		summary: true,
	})
	require.NoError(t, err)

	exists, err := afero.DirExists(fs, "/data/ProjectData")
	require.NoError(t, err)
	assert.True(t, exists)

	text := out.String()
	assert.Contains(t, text, "User Request: make a folder called 'ProjectData' on my desktop")
	assert.Contains(t, text, "Tool Called: create_directory")
	assert.Contains(t, text, "Success: true")
	assert.Contains(t, text, "Final Response:\nI created the folder ProjectData in /data.\n")
	assert.Contains(t, text, "round_trips: 2")
}

func TestHostedDispatchRequiresAPIKey(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	t.Setenv("FSAGENT_API_KEY", "")

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	s := settings.NewSettings()
	s.API.BaseURL = srv.URL

	var out bytes.Buffer
	err := runDispatch(context.Background(), &out, s, "hi", HostedEngineFactory, dispatchOptions{fs: afero.NewMemMapFs()})
	require.Error(t, err)
	assert.ErrorIs(t, err, settings.ErrMissingAPIKey)
	assert.False(t, called)
	assert.Empty(t, out.String())
}

func TestHostedDispatchFinalText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hello!"}}]}`))
	}))
	defer srv.Close()

	s := settings.NewSettings()
	s.API.APIKey = "k"
	s.API.BaseURL = srv.URL + "/v1"

	var out bytes.Buffer
	err := runDispatch(context.Background(), &out, s, "say hello", HostedEngineFactory, dispatchOptions{fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Final Response:\nHello!")
	assert.NotContains(t, out.String(), "Tool Called")
}

func TestToolRows(t *testing.T) {
	reg, err := NewRegistry(afero.NewMemMapFs(), settings.NewSettings())
	require.NoError(t, err)

	t.Run("one row per action", func(t *testing.T) {
		rows, err := toolRows(reg.Descriptors(), &ToolsSettings{})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		name, ok := rows[0].Get("name")
		require.True(t, ok)
		assert.Equal(t, "create_directory", name)
		params, _ := rows[0].Get("parameters")
		assert.Equal(t, "path, directory_name", params)
		required, _ := rows[0].Get("required")
		assert.Equal(t, "path, directory_name", required)
		_, ok = rows[0].Get("schema")
		assert.False(t, ok)

		name, _ = rows[1].Get("name")
		assert.Equal(t, "write_file", name)
	})

	t.Run("with schema", func(t *testing.T) {
		rows, err := toolRows(reg.Descriptors(), &ToolsSettings{WithSchema: true})
		require.NoError(t, err)
		schema, ok := rows[0].Get("schema")
		require.True(t, ok)
		m, ok := schema.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "object", m["type"])
	})

	t.Run("one row per parameter", func(t *testing.T) {
		rows, err := toolRows(reg.Descriptors(), &ToolsSettings{Parameters: true})
		require.NoError(t, err)
		require.Len(t, rows, 5)
		action, _ := rows[0].Get("action")
		param, _ := rows[0].Get("parameter")
		assert.Equal(t, "create_directory", action)
		assert.Equal(t, "path", param)
		action, _ = rows[4].Get("action")
		param, _ = rows[4].Get("parameter")
		assert.Equal(t, "write_file", action)
		assert.Equal(t, "content", param)
	})
}

func TestConfigCommandRedactsKey(t *testing.T) {
	cmd, err := NewConfigCommand(func() (*settings.Settings, error) {
		s := settings.NewSettings()
		s.API.APIKey = "sk-secret"
		return s, nil
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, cmd.RunIntoWriter(context.Background(), nil, &out))
	assert.NotContains(t, out.String(), "sk-secret")
	assert.Contains(t, out.String(), "***")
	assert.Contains(t, out.String(), settings.DefaultAPIModel)
}

func TestPromptResolution(t *testing.T) {
	p, err := promptSource{args: []string{"make", "a", "folder"}}.resolve()
	require.NoError(t, err)
	assert.Equal(t, "make a folder", p)

	p, err = promptSource{example: 2}.resolve()
	require.NoError(t, err)
	assert.Equal(t, "make a folder called 'ProjectData' on my desktop", p)

	p, err = ExamplePrompt(4)
	require.NoError(t, err)
	assert.NotContains(t, p, "{cwd}")

	_, err = ExamplePrompt(9)
	assert.Error(t, err)

	var w bytes.Buffer
	p, err = promptSource{reader: strings.NewReader("backup please\n"), writer: &w}.resolve()
	require.NoError(t, err)
	assert.Equal(t, "backup please", p)
	assert.Contains(t, w.String(), "Enter your request")

	_, err = promptSource{}.resolve()
	assert.Error(t, err)
}
