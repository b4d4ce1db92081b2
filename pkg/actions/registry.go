package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	resultType  = reflect.TypeOf(Result{})
)

type action struct {
	descriptor *Descriptor
	validator  *gojsonschema.Schema
	inputType  reflect.Type
	fn         reflect.Value
	withCtx    bool
}

// Registry maps action names to their implementation and descriptor. Registering an
// action produces both at once, so what the model is told about and what can be run
// are always the same set.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]*action
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{
		actions: map[string]*action{},
	}
}

// Register adds an action. fn must have one of the signatures
//
//	func(Input) Result
//	func(context.Context, Input) Result
//
// where Input is a struct whose JSON form is the action's arguments.
func (r *Registry) Register(name string, description string, fn interface{}) error {
	if name == "" {
		return errors.New("action name cannot be empty")
	}

	fnValue := reflect.ValueOf(fn)
	if fn == nil || fnValue.Kind() != reflect.Func {
		return errors.Errorf("action %s is not a function", name)
	}
	fnType := fnValue.Type()

	if fnType.NumOut() != 1 || fnType.Out(0) != resultType {
		return errors.Errorf("action %s must return exactly one actions.Result", name)
	}

	a := &action{fn: fnValue}
	switch fnType.NumIn() {
	case 1:
		a.inputType = fnType.In(0)
	case 2:
		if fnType.In(0) != contextType {
			return errors.Errorf("two-arg action %s must take (context.Context, Input)", name)
		}
		a.inputType = fnType.In(1)
		a.withCtx = true
	default:
		return errors.Errorf("action %s must take (Input) or (context.Context, Input)", name)
	}

	d, err := newDescriptor(name, description, a.inputType)
	if err != nil {
		return err
	}
	a.descriptor = d

	schemaJSON, err := d.ParametersJSON()
	if err != nil {
		return err
	}
	a.validator, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return errors.Wrapf(err, "could not compile schema of action %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		return errors.Errorf("action %s already registered", name)
	}
	r.actions[name] = a
	r.order = append(r.order, name)

	log.Debug().Str("action", name).Strs("parameters", d.ParameterNames()).Msg("registered action")
	return nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, len(r.order))
	copy(ret, r.order)
	return ret
}

// Descriptors returns a snapshot of every descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		ret = append(ret, *r.actions[name].descriptor)
	}
	return ret
}

func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return Descriptor{}, false
	}
	return *a.descriptor, true
}

// Invoke runs the named action with raw JSON arguments. It never returns an error:
// unknown actions, malformed or invalid arguments and panics all become failure results.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs string) (result Result) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return NewFailureResult(fmt.Sprintf("unknown action %q", name))
	}

	if strings.TrimSpace(rawArgs) == "" {
		rawArgs = "{}"
	}

	validation, err := a.validator.Validate(gojsonschema.NewStringLoader(rawArgs))
	if err != nil {
		log.Debug().Err(err).Str("action", name).Str("arguments", rawArgs).Msg("could not decode arguments")
		return NewFailureResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
	}
	if !validation.Valid() {
		descs := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			descs = append(descs, e.String())
		}
		return NewFailureResult(fmt.Sprintf("invalid arguments for %s: %s", name, strings.Join(descs, "; ")))
	}

	input := reflect.New(a.inputType)
	if err := json.Unmarshal([]byte(rawArgs), input.Interface()); err != nil {
		return NewFailureResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("action", name).Msg("action panicked")
			result = NewFailureResult(fmt.Sprintf("action %s failed: %v", name, p))
		}
	}()

	var in []reflect.Value
	if a.withCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	in = append(in, input.Elem())

	out := a.fn.Call(in)
	return out[0].Interface().(Result)
}
