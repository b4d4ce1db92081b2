package actions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text  string `json:"text" jsonschema:"description=Text to echo back"`
	Times int    `json:"times,omitempty"`
}

func echo(in echoInput) Result {
	return NewSuccessResult(in.Text, "")
}

func newMemRegistry(t *testing.T) (*Registry, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, NewFilesystem(fs)))
	return reg, fs
}

func TestRegisterRejectsInvalidActions(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register("not_a_function", "", "this is not a function")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a function")

	err = reg.Register("", "", echo)
	assert.Error(t, err)

	err = reg.Register("wrong_return", "", func(in echoInput) string { return in.Text })
	assert.Error(t, err)

	err = reg.Register("wrong_first_arg", "", func(a int, in echoInput) Result { return Result{} })
	assert.Error(t, err)

	err = reg.Register("not_struct", "", func(s string) Result { return Result{} })
	assert.Error(t, err)

	require.NoError(t, reg.Register("echo", "Echo", echo))
	err = reg.Register("echo", "Echo again", echo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Equal(t, []string{"echo"}, reg.Names())
}

func TestDescriptorsFollowRegistrations(t *testing.T) {
	reg, _ := newMemRegistry(t)

	descriptors := reg.Descriptors()
	require.Len(t, descriptors, 2)
	assert.Equal(t, CreateDirectoryAction, descriptors[0].Name)
	assert.Equal(t, WriteFileAction, descriptors[1].Name)

	for _, d := range descriptors {
		assert.True(t, reg.Has(d.Name))
	}
	for _, name := range reg.Names() {
		_, ok := reg.Descriptor(name)
		assert.True(t, ok)
	}

	cd := descriptors[0]
	assert.Equal(t, []string{"path", "directory_name"}, cd.ParameterNames())
	assert.Equal(t, Parameter{
		Type:        "string",
		Description: "The full path where the directory should be created",
		Required:    true,
	}, cd.Parameters["path"])
	assert.True(t, cd.Parameters["directory_name"].Required)
}

func TestDescriptorOptionalParameters(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", "Echo", echo))

	d, ok := reg.Descriptor("echo")
	require.True(t, ok)
	assert.True(t, d.Parameters["text"].Required)
	assert.False(t, d.Parameters["times"].Required)
	assert.Equal(t, "integer", d.Parameters["times"].Type)
}

func TestToolSpecIsPlainObjectSchema(t *testing.T) {
	reg, _ := newMemRegistry(t)

	specs, err := ToolSpecs(reg.Descriptors())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "function", specs[0].Type)
	assert.Equal(t, CreateDirectoryAction, specs[0].Function.Name)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(specs[0].Function.Parameters, &params))
	assert.Equal(t, "object", params["type"])
	assert.NotContains(t, params, "$schema")
	assert.NotContains(t, params, "$id")
	assert.ElementsMatch(t, []interface{}{"path", "directory_name"}, params["required"])
}

func TestInvoke(t *testing.T) {
	reg, fs := newMemRegistry(t)
	ctx := context.Background()

	t.Run("unknown action", func(t *testing.T) {
		res := reg.Invoke(ctx, "delete_everything", `{"path":"/"}`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "unknown action")
		assert.Nil(t, res.Path)
	})

	t.Run("malformed arguments", func(t *testing.T) {
		res := reg.Invoke(ctx, CreateDirectoryAction, `{"path": "/tmp", "directory_name": `)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "invalid arguments")

		exists, err := afero.DirExists(fs, "/tmp")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("missing required argument", func(t *testing.T) {
		res := reg.Invoke(ctx, CreateDirectoryAction, `{"path": "/tmp"}`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "directory_name")
	})

	t.Run("wrong argument type", func(t *testing.T) {
		res := reg.Invoke(ctx, CreateDirectoryAction, `{"path": 12, "directory_name": "demo"}`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "invalid arguments")
	})

	t.Run("valid arguments", func(t *testing.T) {
		res := reg.Invoke(ctx, CreateDirectoryAction, `{"path": "/tmp", "directory_name": "demo"}`)
		require.True(t, res.Success, res.Message)
		require.NotNil(t, res.Path)
		assert.Equal(t, "/tmp/demo", *res.Path)

		exists, err := afero.DirExists(fs, "/tmp/demo")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestInvokeRecoversPanics(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("boom", "Always panics", func(in echoInput) Result {
		panic("boom")
	}))

	res := reg.Invoke(context.Background(), "boom", `{"text":"x"}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "boom")
}

func TestInvokePassesContext(t *testing.T) {
	type key string
	reg := NewRegistry()
	require.NoError(t, reg.Register("ctx", "Reads the context", func(ctx context.Context, in echoInput) Result {
		v, _ := ctx.Value(key("k")).(string)
		return NewSuccessResult(v+in.Text, "")
	}))

	ctx := context.WithValue(context.Background(), key("k"), "hello ")
	res := reg.Invoke(ctx, "ctx", `{"text":"world"}`)
	assert.True(t, res.Success)
	assert.Equal(t, "hello world", res.Message)
}

func TestResultJSON(t *testing.T) {
	assert.JSONEq(t,
		`{"success":false,"message":"Error creating directory: nope","path":null}`,
		NewFailureResult("Error creating directory: nope").JSON())
	assert.JSONEq(t,
		`{"success":true,"message":"ok","path":"/tmp/x"}`,
		NewSuccessResult("ok", "/tmp/x").JSON())
}
