package cmds

import (
	"github.com/go-go-golems/fsagent/pkg/inference/engine"
	"github.com/go-go-golems/fsagent/pkg/inference/toolloop"
	"github.com/go-go-golems/fsagent/pkg/settings"
	"github.com/go-go-golems/fsagent/pkg/steps/ai/ollama"
	"github.com/go-go-golems/fsagent/pkg/steps/ai/openai"
	"github.com/spf13/cobra"
)

func HostedEngineFactory(s *settings.Settings, _ toolloop.Environment) (engine.Engine, string, error) {
	if err := s.ValidateAPI(); err != nil {
		return nil, "", err
	}
	eng, err := openai.NewOpenAIEngine(s.API)
	if err != nil {
		return nil, "", err
	}
	return eng, "hosted:" + s.API.Model, nil
}

func LocalEngineFactory(s *settings.Settings, env toolloop.Environment) (engine.Engine, string, error) {
	if err := s.ValidateOllama(); err != nil {
		return nil, "", err
	}
	eng, err := ollama.NewOllamaEngine(s.Ollama, ollama.WithDesktopPath(env.DesktopPath))
	if err != nil {
		return nil, "", err
	}
	return eng, "local:" + s.Ollama.Model, nil
}

func NewRunCommand(load SettingsLoader) *cobra.Command {
	return newDispatchCommand(
		"run [prompt...]",
		"Run a request against the hosted chat completion API",
		load,
		HostedEngineFactory,
	)
}

func NewLocalCommand(load SettingsLoader) *cobra.Command {
	return newDispatchCommand(
		"local [prompt...]",
		"Run a request against a local ollama server",
		load,
		LocalEngineFactory,
	)
}

func newDispatchCommand(use string, short string, load SettingsLoader, makeEngine EngineFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			example, _ := flags.GetInt("example")
			interactive, _ := flags.GetBool("interactive")
			raw, _ := flags.GetBool("raw-events")
			noRender, _ := flags.GetBool("no-render")
			skipUnknown, _ := flags.GetBool("skip-unknown")
			summary, _ := flags.GetBool("summary")
			verbose, _ := flags.GetBool("verbose")

			ps := promptSource{args: args, example: example}
			if interactive || (len(args) == 0 && example == 0) {
				ps.reader = cmd.InOrStdin()
				ps.writer = cmd.OutOrStdout()
			}
			prompt, err := ps.resolve()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return runDispatch(cmd.Context(), out, s, prompt, makeEngine, dispatchOptions{
				rawEvents:   raw,
				verbose:     verbose,
				render:      !noRender && isTerminal(out),
				skipUnknown: skipUnknown,
				summary:     summary,
			})
		},
	}

	cmd.Flags().Int("example", 0, "Run one of the built-in example prompts (see fsagent examples)")
	cmd.Flags().BoolP("interactive", "i", false, "Ask for the prompt on stdin")
	cmd.Flags().Bool("raw-events", false, "Print the raw JSON events instead of the readable trace")
	cmd.Flags().Bool("no-render", false, "Do not render the final response as markdown")
	cmd.Flags().Bool("skip-unknown", false, "Silently drop requests for unknown actions")
	cmd.Flags().Bool("summary", false, "Print a YAML summary of the run")
	cmd.Flags().BoolP("verbose", "v", false, "Show info events and watermill logs")

	return cmd
}

func NewExamplesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "List the built-in example prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ListExamples(cmd.OutOrStdout())
		},
	}
}
