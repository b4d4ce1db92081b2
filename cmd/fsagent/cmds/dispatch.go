package cmds

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/go-go-golems/fsagent/pkg/events"
	"github.com/go-go-golems/fsagent/pkg/inference/engine"
	"github.com/go-go-golems/fsagent/pkg/inference/toolloop"
	"github.com/go-go-golems/fsagent/pkg/settings"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// SettingsLoader resolves the settings for a command invocation.
type SettingsLoader func() (*settings.Settings, error)

// EngineFactory builds the engine a command dispatches to, and the name used to
// label its events.
type EngineFactory func(s *settings.Settings, env toolloop.Environment) (engine.Engine, string, error)

type dispatchOptions struct {
	fs          afero.Fs
	rawEvents   bool
	verbose     bool
	render      bool
	skipUnknown bool
	summary     bool
}

func newFilesystem(fs afero.Fs, s *settings.Settings) *actions.Filesystem {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return actions.NewFilesystem(fs, actions.WithPathPolicy(actions.PathPolicy{Allowed: s.AllowedPaths}))
}

func NewRegistry(fs afero.Fs, s *settings.Settings) (*actions.Registry, error) {
	reg := actions.NewRegistry()
	if err := actions.RegisterBuiltins(reg, newFilesystem(fs, s)); err != nil {
		return nil, errors.Wrap(err, "could not register actions")
	}
	return reg, nil
}

func renderMarkdown(s string) (string, error) {
	return glamour.Render(s, "dark")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// runDispatch runs one request through the tool loop while a watermill router prints
// the events to w.
func runDispatch(
	ctx context.Context,
	w io.Writer,
	s *settings.Settings,
	prompt string,
	makeEngine EngineFactory,
	opts dispatchOptions,
) error {
	env := toolloop.DefaultEnvironment(s.DesktopPath)

	eng, name, err := makeEngine(s, env)
	if err != nil {
		return err
	}

	reg, err := NewRegistry(opts.fs, s)
	if err != nil {
		return err
	}

	router, err := events.NewEventRouter(events.WithVerbose(opts.verbose))
	if err != nil {
		return errors.Wrap(err, "failed to create event router")
	}
	defer func() {
		_ = router.Close()
	}()

	if opts.rawEvents {
		router.AddHandler("raw", events.DefaultTopic, router.DumpRawEvents(w))
	} else {
		printerOptions := []events.PrinterOption{events.WithShowInfo(opts.verbose)}
		if opts.render {
			printerOptions = append(printerOptions, events.WithFinalRenderer(renderMarkdown))
		}
		router.AddHandler("printer", events.DefaultTopic, events.StepPrinterFunc(w, printerOptions...))
	}

	loop := toolloop.New(
		toolloop.WithEngine(eng),
		toolloop.WithRegistry(reg),
		toolloop.WithSink(router.Sink(events.DefaultTopic)),
		toolloop.WithEngineName(name),
		toolloop.WithSkipUnknownActions(opts.skipUnknown),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var result *toolloop.Result
	eg := errgroup.Group{}
	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		select {
		case <-router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}

		var err error
		result, err = loop.Run(ctx, prompt, env)
		if err != nil {
			log.Debug().Err(err).Msg("dispatch failed")
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	if opts.summary && result != nil {
		b, err := yaml.Marshal(result)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "\n%s", b); err != nil {
			return err
		}
	}

	return nil
}
