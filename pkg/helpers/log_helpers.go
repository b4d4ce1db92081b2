package helpers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
)

// RunIDMetadataKey is the watermill metadata key that carries the dispatch run ID.
const RunIDMetadataKey = "run_id"

type runIDKey struct{}

// NewRunID returns a short identifier for a single dispatch run.
func NewRunID() string {
	return shortuuid.New()
}

func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	runID, ok := ctx.Value(runIDKey{}).(string)
	return runID, ok && runID != ""
}

// WatermillLogger sends watermill's logs to zerolog. Watermill reports router and
// subscriber lifecycle at info level, which is demoted to debug.
type WatermillLogger struct {
	logger zerolog.Logger
}

func NewWatermillLogger(logger zerolog.Logger) *WatermillLogger {
	return &WatermillLogger{
		logger: logger.With().Str("component", "watermill").Logger(),
	}
}

func (w *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{
		logger: w.logger.With().Fields(map[string]interface{}(fields)).Logger(),
	}
}

var _ watermill.LoggerAdapter = (*WatermillLogger)(nil)

// RunIDPublisher copies the run ID from each message's context into its metadata.
// Messages that already carry a run ID, or whose context has none, pass through
// unchanged.
type RunIDPublisher struct {
	message.Publisher
}

func (p RunIDPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.Metadata.Get(RunIDMetadataKey) != "" {
			continue
		}
		if runID, ok := RunIDFromContext(msg.Context()); ok {
			msg.Metadata.Set(RunIDMetadataKey, runID)
		}
	}

	return p.Publisher.Publish(topic, messages...)
}
