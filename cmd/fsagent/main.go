package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/fsagent/cmd/fsagent/cmds"
	"github.com/go-go-golems/fsagent/pkg/doc"
	"github.com/go-go-golems/fsagent/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/cli"
	glazed_cmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "fsagent",
	Short:         "fsagent lets a chat model create directories and files through tool calls",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		if err := logging.InitLoggerFromViper(); err != nil {
			return err
		}

		envFiles, _ := cmd.Flags().GetStringSlice("env-file")
		return settings.LoadDotEnv(envFiles...)
	},
}

func loadSettings() (*settings.Settings, error) {
	s := settings.NewSettings()
	s.UpdateFromViper(viper.GetViper())
	if e := log.Debug(); e.Enabled() {
		if y, err := s.YAML(); err == nil {
			e.Str("settings", y).Msg("resolved settings")
		}
	}
	return s, nil
}

func addSettingsFlags(rootCmd *cobra.Command) {
	pf := rootCmd.PersistentFlags()
	pf.StringSlice("env-file", []string{".env"}, "Environment files to load")

	pf.String(settings.KeyAPIKey, "", "API key for the hosted endpoint (or MISTRAL_API_KEY)")
	pf.String(settings.KeyAPIBaseURL, settings.DefaultAPIBaseURL, "Base URL of the OpenAI-compatible endpoint")
	pf.String(settings.KeyAPIModel, settings.DefaultAPIModel, "Hosted model")
	pf.Duration(settings.KeyTimeout, settings.DefaultTimeout, "Request timeout")
	pf.String(settings.KeyOllamaHost, settings.DefaultOllamaHost, "Ollama server address")
	pf.String(settings.KeyOllamaModel, settings.DefaultOllamaModel, "Ollama model")
	pf.StringSlice(settings.KeyAllowedPaths, nil, "Restrict actions to these roots or glob patterns")
	pf.String(settings.KeyDesktopPath, "", "Override the desktop path given to the model")
}

func addGlazedCommand(rootCmd *cobra.Command, command glazed_cmds.Command) {
	cobraCommand, err := cli.BuildCobraCommand(command)
	cobra.CheckErr(err)
	rootCmd.AddCommand(cobraCommand)
}

func main() {
	// settings flags have to exist before clay binds the persistent flags to viper
	addSettingsFlags(rootCmd)

	err := clay.InitViper("fsagent", rootCmd)
	cobra.CheckErr(err)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	helpSystem := help.NewHelpSystem()
	err = doc.AddDocToHelpSystem(helpSystem)
	cobra.CheckErr(err)
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	rootCmd.AddCommand(
		cmds.NewRunCommand(loadSettings),
		cmds.NewLocalCommand(loadSettings),
		cmds.NewExamplesCommand(),
	)

	toolsCmd, err := cmds.NewToolsCommand(loadSettings)
	cobra.CheckErr(err)
	addGlazedCommand(rootCmd, toolsCmd)

	configCmd, err := cmds.NewConfigCommand(loadSettings)
	cobra.CheckErr(err)
	addGlazedCommand(rootCmd, configCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Debug().Err(err).Msg("fsagent failed")
		rootCmd.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
