package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := NewSettings()
	assert.Equal(t, DefaultAPIBaseURL, s.API.BaseURL)
	assert.Equal(t, DefaultAPIModel, s.API.Model)
	assert.Equal(t, DefaultOllamaHost, s.Ollama.Host)
	assert.Equal(t, DefaultOllamaModel, s.Ollama.Model)
	assert.Empty(t, s.AllowedPaths)
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "from-env")
	t.Setenv("FSAGENT_API_KEY", "")

	s := NewSettings()
	s.UpdateFromViper(viper.New())
	assert.Equal(t, "from-env", s.API.APIKey)
	assert.NoError(t, s.ValidateAPI())
}

func TestExplicitAPIKeyWins(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "from-env")

	v := viper.New()
	v.Set(KeyAPIKey, "explicit")
	v.Set(KeyAPIModel, "mistral-small-latest")
	v.Set(KeyAllowedPaths, []string{"/tmp"})

	s := NewSettings()
	s.UpdateFromViper(v)
	assert.Equal(t, "explicit", s.API.APIKey)
	assert.Equal(t, "mistral-small-latest", s.API.Model)
	assert.Equal(t, []string{"/tmp"}, s.AllowedPaths)
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	t.Setenv("FSAGENT_API_KEY", "")

	s := NewSettings()
	s.UpdateFromViper(viper.New())
	err := s.ValidateAPI()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	s.API.APIKey = "YOUR_API_KEY_HERE"
	err = s.ValidateAPI()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	require.NoError(t, os.Unsetenv("MISTRAL_API_KEY"))

	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte("MISTRAL_API_KEY=dotenv-key\n"), 0o600))

	require.NoError(t, LoadDotEnv(p, filepath.Join(dir, "missing.env")))

	s := NewSettings()
	s.UpdateFromViper(viper.New())
	assert.Equal(t, "dotenv-key", s.API.APIKey)
}

func TestCloneAndRedact(t *testing.T) {
	s := NewSettings()
	s.API.APIKey = "secret"
	s.AllowedPaths = []string{"/a"}

	c := s.Clone()
	c.API.Model = "other"
	c.AllowedPaths[0] = "/b"
	assert.Equal(t, DefaultAPIModel, s.API.Model)
	assert.Equal(t, "/a", s.AllowedPaths[0])

	out, err := s.YAML()
	require.NoError(t, err)
	assert.NotContains(t, out, "secret")
	assert.Equal(t, "secret", s.API.APIKey)
}
