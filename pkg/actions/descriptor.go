package actions

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Parameter is the flattened view of one property of an action's input.
type Parameter struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required" yaml:"required"`
}

// Descriptor describes a registered action to the model. It is derived from the
// action's input type at registration time and never edited by hand.
type Descriptor struct {
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	Parameters  map[string]Parameter `json:"parameters" yaml:"parameters"`

	// order keeps the property order of the input struct for display.
	order  []string
	schema *jsonschema.Schema
}

// ToolSpec is the function-tool record used by chat APIs and inlined into
// system prompts for servers without native tool calling.
type ToolSpec struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

func reflectInputSchema(inputType reflect.Type) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference:            true,
		Anonymous:                 true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.ReflectFromType(inputType)
	schema.Version = ""
	schema.ID = ""
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}

func newDescriptor(name, description string, inputType reflect.Type) (*Descriptor, error) {
	if inputType.Kind() != reflect.Struct {
		return nil, errors.Errorf("input of action %s must be a struct, got %s", name, inputType.Kind())
	}

	schema := reflectInputSchema(inputType)
	d := &Descriptor{
		Name:        name,
		Description: description,
		Parameters:  map[string]Parameter{},
		schema:      schema,
	}

	required := map[string]bool{}
	for _, r := range schema.Required {
		required[r] = true
	}

	if schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			d.Parameters[pair.Key] = Parameter{
				Type:        pair.Value.Type,
				Description: pair.Value.Description,
				Required:    required[pair.Key],
			}
			d.order = append(d.order, pair.Key)
		}
	}

	return d, nil
}

// ParameterNames returns the parameter names in declaration order.
func (d *Descriptor) ParameterNames() []string {
	ret := make([]string, len(d.order))
	copy(ret, d.order)
	return ret
}

// ParametersJSON returns the JSON schema of the action's arguments.
func (d *Descriptor) ParametersJSON() (json.RawMessage, error) {
	b, err := json.Marshal(d.schema)
	if err != nil {
		return nil, errors.Wrapf(err, "could not marshal schema of action %s", d.Name)
	}
	return b, nil
}

func (d *Descriptor) ToolSpec() (ToolSpec, error) {
	params, err := d.ParametersJSON()
	if err != nil {
		return ToolSpec{}, err
	}
	return ToolSpec{
		Type: "function",
		Function: ToolFunction{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		},
	}, nil
}

// ToolSpecs converts a list of descriptors, stopping at the first failure.
func ToolSpecs(descriptors []Descriptor) ([]ToolSpec, error) {
	ret := make([]ToolSpec, 0, len(descriptors))
	for i := range descriptors {
		spec, err := descriptors[i].ToolSpec()
		if err != nil {
			return nil, err
		}
		ret = append(ret, spec)
	}
	return ret, nil
}
