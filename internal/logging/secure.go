// Package logging provides the operator logger: structured zerolog output with
// every string value passed through credential sanitization.
package logging

import (
	"io"
	"time"

	"github.com/olegiv/go-logger"
	internalerrors "github.com/olegiv/logwatch-alerts-go/internal/errors"
	"github.com/rs/zerolog"
)

// eventSource is satisfied by *logger.Logger and *zerolog.Logger.
type eventSource interface {
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
}

// SecureLogger sanitizes every string and error it is given, so AWS keys,
// Mongo passwords and bot tokens never reach the log sinks.
type SecureLogger struct {
	src   eventSource
	close func() error
}

// New creates a go-logger instance from cfg and wraps it. go-logger applies
// cfg.Level through zerolog's global level, which also gates the application
// log; New moves the level onto the operator logger and resets the global
// level to trace.
func New(cfg logger.Config) *SecureLogger {
	log := logger.New(cfg)
	level := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Logger.Level(level)
	return NewSecure(log)
}

// NewSecure wraps a go-logger instance.
func NewSecure(log *logger.Logger) *SecureLogger {
	return &SecureLogger{src: log, close: log.Close}
}

// NewConsole creates a SecureLogger writing JSON lines to w. The lambda
// runtime uses it because the function filesystem is read-only.
func NewConsole(w io.Writer, level zerolog.Level) *SecureLogger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &SecureLogger{src: &zl}
}

// Nop returns a logger that discards everything.
func Nop() *SecureLogger {
	zl := zerolog.Nop()
	return &SecureLogger{src: &zl}
}

// SecureEvent wraps a zerolog Event to provide secure string methods.
type SecureEvent struct {
	event *zerolog.Event
}

// Debug starts a new debug-level log event.
func (s *SecureLogger) Debug() *SecureEvent {
	return &SecureEvent{event: s.src.Debug()}
}

// Info starts a new info-level log event.
func (s *SecureLogger) Info() *SecureEvent {
	return &SecureEvent{event: s.src.Info()}
}

// Warn starts a new warn-level log event.
func (s *SecureLogger) Warn() *SecureEvent {
	return &SecureEvent{event: s.src.Warn()}
}

// Error starts a new error-level log event.
func (s *SecureLogger) Error() *SecureEvent {
	return &SecureEvent{event: s.src.Error()}
}

// Close closes the underlying logger.
func (s *SecureLogger) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Str adds a sanitized string field.
func (e *SecureEvent) Str(key, val string) *SecureEvent {
	e.event.Str(key, internalerrors.SanitizeString(val))
	return e
}

// Strs adds a sanitized string slice field.
func (e *SecureEvent) Strs(key string, vals []string) *SecureEvent {
	clean := make([]string, len(vals))
	for i, v := range vals {
		clean[i] = internalerrors.SanitizeString(v)
	}
	e.event.Strs(key, clean)
	return e
}

// Int adds an integer field to the log event.
func (e *SecureEvent) Int(key string, val int) *SecureEvent {
	e.event.Int(key, val)
	return e
}

// Int64 adds an int64 field to the log event.
func (e *SecureEvent) Int64(key string, val int64) *SecureEvent {
	e.event.Int64(key, val)
	return e
}

// Float64 adds a float64 field to the log event.
func (e *SecureEvent) Float64(key string, val float64) *SecureEvent {
	e.event.Float64(key, val)
	return e
}

// Bool adds a boolean field to the log event.
func (e *SecureEvent) Bool(key string, val bool) *SecureEvent {
	e.event.Bool(key, val)
	return e
}

// Dur adds a duration field to the log event.
func (e *SecureEvent) Dur(key string, val time.Duration) *SecureEvent {
	e.event.Dur(key, val)
	return e
}

// Err adds a sanitized error field.
func (e *SecureEvent) Err(err error) *SecureEvent {
	if err != nil {
		e.event.Err(internalerrors.SanitizeError(err))
	}
	return e
}

// Msg sends the log event with a sanitized message.
func (e *SecureEvent) Msg(msg string) {
	e.event.Msg(internalerrors.SanitizeString(msg))
}

// Msgf sends a formatted log event. String and error arguments are
// sanitized; other types pass through unchanged.
func (e *SecureEvent) Msgf(format string, v ...interface{}) {
	args := make([]interface{}, len(v))
	for i, arg := range v {
		switch a := arg.(type) {
		case string:
			args[i] = internalerrors.SanitizeString(a)
		case error:
			args[i] = internalerrors.SanitizeError(a)
		default:
			args[i] = arg
		}
	}
	e.event.Msgf(format, args...)
}
