package toolloop

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/fsagent/pkg/conversation"
	"github.com/rs/zerolog/log"
)

// Environment is auxiliary context appended to the user's request.
type Environment struct {
	DesktopPath      string `yaml:"desktop-path,omitempty"`
	WorkingDirectory string `yaml:"working-directory,omitempty"`
}

// DefaultEnvironment resolves the desktop and working directories of the current
// process. desktopOverride replaces the home-based desktop path when set.
func DefaultEnvironment(desktopOverride string) Environment {
	env := Environment{
		WorkingDirectory: actions.WorkingDirectory(),
	}
	if desktopOverride != "" {
		p, err := actions.ExpandPath(desktopOverride)
		if err == nil {
			env.DesktopPath = p
			return env
		}
		log.Warn().Err(err).Str("path", desktopOverride).Msg("could not expand desktop path")
	}
	p, err := actions.DesktopPath()
	if err != nil {
		log.Warn().Err(err).Msg("could not resolve desktop path")
		return env
	}
	env.DesktopPath = p
	return env
}

// Note is the text appended to the prompt, empty when nothing is known.
func (e Environment) Note() string {
	var sb strings.Builder
	if e.DesktopPath != "" {
		_, _ = fmt.Fprintf(&sb, "\n\nNote: The desktop path is: %s", e.DesktopPath)
	}
	if e.WorkingDirectory != "" {
		_, _ = fmt.Fprintf(&sb, "\nThe current working directory is: %s", e.WorkingDirectory)
	}
	return sb.String()
}

func BuildInitialConversation(prompt string, env Environment) *conversation.Conversation {
	return conversation.New(conversation.NewUserTurn(prompt + env.Note()))
}
