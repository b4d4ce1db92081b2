package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const bannerWidth = 60

type printerOptions struct {
	renderFinal func(string) (string, error)
	showInfo    bool
}

type PrinterOption func(*printerOptions)

// WithFinalRenderer post-processes the final answer before printing, for example to
// render markdown on a terminal.
func WithFinalRenderer(f func(string) (string, error)) PrinterOption {
	return func(o *printerOptions) {
		o.renderFinal = f
	}
}

func WithShowInfo(show bool) PrinterOption {
	return func(o *printerOptions) {
		o.showInfo = show
	}
}

// StepPrinterFunc returns a handler printing a human readable trace of a run: the
// request banner, every tool request and its result, and the final answer.
func StepPrinterFunc(w io.Writer, options ...PrinterOption) func(msg *message.Message) error {
	opts := &printerOptions{}
	for _, o := range options {
		o(opts)
	}

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("could not decode event")
			return nil
		}

		switch p_ := e.(type) {
		case *EventStart:
			line := strings.Repeat("=", bannerWidth)
			_, err = fmt.Fprintf(w, "\n%s\nUser Request: %s\n%s\n\n", line, p_.Prompt, line)

		case *EventToolCall:
			if p_.StopReason != "" {
				if _, err = fmt.Fprintf(w, "Stop reason: %s\n", p_.StopReason); err != nil {
					return err
				}
			}
			var args interface{}
			if err_ := yaml.Unmarshal([]byte(p_.ToolCall.Input), &args); err_ != nil || args == nil {
				args = p_.ToolCall.Input
			}
			v_, err_ := yaml.Marshal(map[string]interface{}{"arguments": args})
			if err_ != nil {
				return err_
			}
			_, err = fmt.Fprintf(w, "Tool Called: %s\n%s\n", p_.ToolCall.Name, v_)

		case *EventToolResult:
			_, err = fmt.Fprintf(w, "Tool Execution Result:\n  Success: %t\n  Message: %s\n\n",
				p_.ToolResult.Success, p_.ToolResult.Message)

		case *EventFinal:
			text := p_.Text
			if opts.renderFinal != nil {
				if rendered, err_ := opts.renderFinal(text); err_ == nil {
					text = rendered
				} else {
					log.Debug().Err(err_).Msg("could not render final response")
				}
			}
			if !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			_, err = fmt.Fprintf(w, "Final Response:\n%s", text)

		case *EventError:
			_, err = fmt.Fprintf(w, "\nError: %s\n", p_.ErrorString)

		case *EventInfo:
			if !opts.showInfo {
				return nil
			}
			if _, err = fmt.Fprintf(w, "[i] %s\n", p_.Message); err != nil {
				return err
			}
			if len(p_.Data) > 0 {
				v_, err_ := yaml.Marshal(p_.Data)
				if err_ != nil {
					return err_
				}
				_, err = fmt.Fprintf(w, "%s\n", v_)
			}
		}

		return err
	}
}
