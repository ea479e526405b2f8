// Package applog writes application logs in the line format scanned by the
// daily report and the critical scan:
//
//	2006-01-02 15:04:05 - <name> - <LEVEL> - <message>
//
// Lines go to a rotated local file, an optional extra writer, and an
// in-memory buffer that is uploaded to object storage when the logger closes.
package applog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level names written into log lines.
const (
	LevelDebug    = "DEBUG"
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

const (
	defaultName = "XemplaLogger"
	timeLayout  = "2006-01-02 15:04:05"
	keyLayout   = "2006/01/02"
)

// Uploader stores a finished log object.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Config holds application logger configuration
type Config struct {
	Name       string         // logger name written into every line
	Level      string         // debug, info, warning, error, critical
	FilePath   string         // local log file; empty disables the file
	MaxSizeMB  int            // rotation size of the local file
	MaxBackups int            // rotated files to keep
	Output     io.Writer      // extra destination, e.g. os.Stdout
	Uploader   Uploader       // object store for the buffered log; nil disables upload
	Location   *time.Location // zone of the key date prefix; nil means UTC
}

// Logger is a leveled application logger.
type Logger struct {
	zl       zerolog.Logger
	name     string
	file     *lumberjack.Logger
	uploader Uploader
	loc      *time.Location
	now      func() time.Time

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// New creates an application logger.
func New(cfg Config) (*Logger, error) {
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	l := &Logger{
		name:     cfg.Name,
		uploader: cfg.Uploader,
		loc:      cfg.Location,
		now:      time.Now,
	}

	var writers []io.Writer
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     30, // days
		}
		writers = append(writers, l.file)
	}
	if cfg.Output != nil {
		writers = append(writers, cfg.Output)
	}
	if cfg.Uploader != nil {
		writers = append(writers, &bufferWriter{l: l})
	}

	out := io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	l.zl = zerolog.New(newLineWriter(out, cfg.Name)).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return l, nil
}

// newLineWriter renders zerolog events as "time - name - LEVEL - message".
func newLineWriter(out io.Writer, name string) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: timeLayout,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.MessageFieldName,
		},
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("- %s - %s -", name, levelName(i))
		},
	}
}

// levelName maps zerolog level strings to the names used in log lines.
// zerolog has no critical level; fatal stands in for it.
func levelName(i interface{}) string {
	s, _ := i.(string)
	switch s {
	case zerolog.LevelDebugValue, zerolog.LevelTraceValue:
		return LevelDebug
	case zerolog.LevelWarnValue:
		return LevelWarning
	case zerolog.LevelErrorValue:
		return LevelError
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return LevelCritical
	default:
		return LevelInfo
	}
}

// parseLevel converts a level name to a zerolog level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Name returns the logger name.
func (l *Logger) Name() string {
	return l.name
}

// Debug starts a DEBUG line.
func (l *Logger) Debug() *zerolog.Event {
	return l.zl.Debug()
}

// Info starts an INFO line.
func (l *Logger) Info() *zerolog.Event {
	return l.zl.Info()
}

// Warning starts a WARNING line.
func (l *Logger) Warning() *zerolog.Event {
	return l.zl.Warn()
}

// Error starts an ERROR line.
func (l *Logger) Error() *zerolog.Event {
	return l.zl.Error()
}

// Critical starts a CRITICAL line. It never exits the process.
func (l *Logger) Critical() *zerolog.Event {
	return l.zl.WithLevel(zerolog.FatalLevel)
}

// ObjectKey returns the object key a log closed at t is uploaded under. The
// date prefix is taken in t's location and is what the daily report lists.
func ObjectKey(name string, t time.Time) string {
	id := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s/%s-%s-%s.log", t.Format(keyLayout), name, t.Format("150405"), id)
}

// Close flushes the local file and uploads the buffered log. It returns the
// uploaded key, or "" when nothing was uploaded.
func (l *Logger) Close(ctx context.Context) (string, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return "", nil
	}
	l.closed = true
	body := append([]byte(nil), l.buf.Bytes()...)
	l.buf.Reset()
	l.mu.Unlock()

	var fileErr error
	if l.file != nil {
		fileErr = l.file.Close()
	}

	if l.uploader == nil || len(body) == 0 {
		return "", fileErr
	}

	key := ObjectKey(l.name, l.now().In(l.loc))
	if err := l.uploader.Put(ctx, key, body); err != nil {
		return "", fmt.Errorf("failed to upload log %s: %w", key, err)
	}
	return key, fileErr
}

// bufferWriter collects rendered lines for upload.
type bufferWriter struct {
	l *Logger
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	if w.l.closed {
		return len(p), nil
	}
	return w.l.buf.Write(p)
}
