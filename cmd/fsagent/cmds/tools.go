package cmds

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
)

type ToolsSettings struct {
	Parameters bool `glazed.parameter:"parameters"`
	WithSchema bool `glazed.parameter:"with-schema"`
}

// ToolsCommand lists the actions offered to the model as glazed rows.
type ToolsCommand struct {
	*cmds.CommandDescription
	load SettingsLoader
}

var _ cmds.GlazeCommand = (*ToolsCommand)(nil)

func NewToolsCommand(load SettingsLoader) (*ToolsCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create glazed parameter layer")
	}

	return &ToolsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"tools",
			cmds.WithShort("List the actions offered to the model"),
			cmds.WithLong("Lists every registered action with its parameters, as derived from the action's input type."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"parameters",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Emit one row per action parameter"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"with-schema",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Add the JSON schema sent to the model"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
		load: load,
	}, nil
}

func (c *ToolsCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &ToolsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "failed to initialize settings")
	}

	fsSettings, err := c.load()
	if err != nil {
		return err
	}
	reg, err := NewRegistry(nil, fsSettings)
	if err != nil {
		return err
	}

	rows, err := toolRows(reg.Descriptors(), s)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func toolRows(descriptors []actions.Descriptor, s *ToolsSettings) ([]types.Row, error) {
	ret := []types.Row{}
	for i := range descriptors {
		d := &descriptors[i]

		if s.Parameters {
			for _, name := range d.ParameterNames() {
				p := d.Parameters[name]
				ret = append(ret, types.NewRow(
					types.MRP("action", d.Name),
					types.MRP("parameter", name),
					types.MRP("type", p.Type),
					types.MRP("required", p.Required),
					types.MRP("description", p.Description),
				))
			}
			continue
		}

		var required []string
		for _, name := range d.ParameterNames() {
			if d.Parameters[name].Required {
				required = append(required, name)
			}
		}
		row := types.NewRow(
			types.MRP("name", d.Name),
			types.MRP("description", d.Description),
			types.MRP("parameters", strings.Join(d.ParameterNames(), ", ")),
			types.MRP("required", strings.Join(required, ", ")),
		)

		if s.WithSchema {
			raw, err := d.ParametersJSON()
			if err != nil {
				return nil, err
			}
			var schema map[string]interface{}
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, errors.Wrapf(err, "could not decode schema of %s", d.Name)
			}
			row.Set("schema", schema)
		}

		ret = append(ret, row)
	}
	return ret, nil
}
