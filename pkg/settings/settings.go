package settings

import (
	"os"
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ErrMissingAPIKey = errors.New("missing API key")

const (
	KeyAPIKey       = "api-key"
	KeyAPIBaseURL   = "api-base-url"
	KeyAPIModel     = "api-model"
	KeyTimeout      = "timeout"
	KeyOllamaHost   = "ollama-host"
	KeyOllamaModel  = "ollama-model"
	KeyAllowedPaths = "allowed-paths"
	KeyDesktopPath  = "desktop-path"
)

const (
	DefaultAPIBaseURL  = "https://api.mistral.ai/v1"
	DefaultAPIModel    = "mistral-large-latest"
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "mistral"
	DefaultTimeout     = 60 * time.Second
)

// placeholderAPIKey is the value shipped in sample .env files.
const placeholderAPIKey = "YOUR_API_KEY_HERE"

// apiKeyEnvVars are consulted, in order, when no key was configured explicitly.
var apiKeyEnvVars = []string{"MISTRAL_API_KEY", "FSAGENT_API_KEY"}

type APISettings struct {
	APIKey  string        `yaml:"api-key,omitempty"`
	BaseURL string        `yaml:"base-url,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type OllamaSettings struct {
	Host    string        `yaml:"host,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type Settings struct {
	API          *APISettings    `yaml:"api,omitempty"`
	Ollama       *OllamaSettings `yaml:"ollama,omitempty"`
	AllowedPaths []string        `yaml:"allowed-paths,omitempty"`
	DesktopPath  string          `yaml:"desktop-path,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		API: &APISettings{
			BaseURL: DefaultAPIBaseURL,
			Model:   DefaultAPIModel,
			Timeout: DefaultTimeout,
		},
		Ollama: &OllamaSettings{
			Host:    DefaultOllamaHost,
			Model:   DefaultOllamaModel,
			Timeout: DefaultTimeout,
		},
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// LoadDotEnv loads the given .env files (or ./.env) into the process environment.
// Missing files are ignored. Variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "could not stat %s", p)
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "could not load %s", p)
		}
	}
	return nil
}

// UpdateFromViper overrides every value that is set in v.
func (s *Settings) UpdateFromViper(v *viper.Viper) {
	if v.IsSet(KeyAPIKey) {
		s.API.APIKey = v.GetString(KeyAPIKey)
	}
	if s.API.APIKey == "" {
		for _, name := range apiKeyEnvVars {
			if k := os.Getenv(name); k != "" {
				s.API.APIKey = k
				break
			}
		}
	}
	if v.IsSet(KeyAPIBaseURL) {
		s.API.BaseURL = v.GetString(KeyAPIBaseURL)
	}
	if v.IsSet(KeyAPIModel) {
		s.API.Model = v.GetString(KeyAPIModel)
	}
	if v.IsSet(KeyTimeout) {
		d := v.GetDuration(KeyTimeout)
		s.API.Timeout = d
		s.Ollama.Timeout = d
	}
	if v.IsSet(KeyOllamaHost) {
		s.Ollama.Host = v.GetString(KeyOllamaHost)
	}
	if v.IsSet(KeyOllamaModel) {
		s.Ollama.Model = v.GetString(KeyOllamaModel)
	}
	if v.IsSet(KeyAllowedPaths) {
		s.AllowedPaths = v.GetStringSlice(KeyAllowedPaths)
	}
	if v.IsSet(KeyDesktopPath) {
		s.DesktopPath = v.GetString(KeyDesktopPath)
	}
}

// ValidateAPI checks that the hosted endpoint can be called.
func (s *Settings) ValidateAPI() error {
	if s.API == nil {
		return errors.Wrap(ErrMissingAPIKey, "no api settings")
	}
	key := strings.TrimSpace(s.API.APIKey)
	if key == "" || key == placeholderAPIKey {
		return errors.Wrapf(ErrMissingAPIKey, "set %s or %s", apiKeyEnvVars[0], KeyAPIKey)
	}
	if s.API.BaseURL == "" {
		return errors.New("no api base url")
	}
	if s.API.Model == "" {
		return errors.New("no api model")
	}
	return nil
}

func (s *Settings) ValidateOllama() error {
	if s.Ollama == nil || s.Ollama.Host == "" {
		return errors.New("no ollama host")
	}
	if s.Ollama.Model == "" {
		return errors.New("no ollama model")
	}
	return nil
}

// Redacted returns a copy that is safe to print.
func (s *Settings) Redacted() *Settings {
	ret := s.Clone()
	if ret.API != nil && ret.API.APIKey != "" {
		ret.API.APIKey = "***"
	}
	return ret
}

func (s *Settings) YAML() (string, error) {
	b, err := yaml.Marshal(s.Redacted())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
