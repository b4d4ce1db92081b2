package cmds

import (
	"context"
	"io"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
)

// ConfigCommand prints the resolved settings as YAML with the API key redacted.
type ConfigCommand struct {
	*cmds.CommandDescription
	load SettingsLoader
}

var _ cmds.WriterCommand = (*ConfigCommand)(nil)

func NewConfigCommand(load SettingsLoader) (*ConfigCommand, error) {
	return &ConfigCommand{
		CommandDescription: cmds.NewCommandDescription(
			"config",
			cmds.WithShort("Print the resolved configuration with secrets redacted"),
		),
		load: load,
	}, nil
}

func (c *ConfigCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s, err := c.load()
	if err != nil {
		return err
	}
	y, err := s.YAML()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, y)
	return err
}
