// Package logging provides the structured logger shared by every component
// in the game server, built on arbor's chained-event API.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// Logger wraps arbor.ILogger so components share one logging interface and
// correlation-id plumbing.
type Logger struct {
	arbor.ILogger
}

// Config controls where and how log output is written. Outputs may name
// "console" (stderr) and/or "file"; an empty list means console only.
type Config struct {
	Level      string
	Format     string
	Outputs    []string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

const (
	defaultLevel      = "info"
	defaultFilePath   = "logs/gameserver.log"
	defaultMaxSize    = 20 << 20
	defaultMaxBackups = 10
)

func consoleWriterConfig() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		Writer:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

func fileWriterConfig(cfg Config) models.WriterConfiguration {
	wc := models.WriterConfiguration{
		Type:       models.LogWriterTypeFile,
		FileName:   cfg.FilePath,
		MaxSize:    int64(cfg.MaxSizeMB) << 20,
		MaxBackups: cfg.MaxBackups,
		TimeFormat: time.RFC3339,
	}
	if wc.FileName == "" {
		wc.FileName = defaultFilePath
	}
	if wc.MaxSize <= 0 {
		wc.MaxSize = defaultMaxSize
	}
	if wc.MaxBackups <= 0 {
		wc.MaxBackups = defaultMaxBackups
	}
	return wc
}

// NewFromConfig creates a logger from cfg. A memory writer is always
// attached so recent events stay queryable for diagnostics.
func NewFromConfig(cfg Config) *Logger {
	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"console"}
	}

	l := arbor.NewLogger()
	for _, out := range outputs {
		switch out {
		case "console":
			l = l.WithConsoleWriter(consoleWriterConfig())
		case "file":
			l = l.WithFileWriter(fileWriterConfig(cfg))
		}
	}

	level := cfg.Level
	if level == "" {
		level = defaultLevel
	}
	l = l.WithMemoryWriter(models.WriterConfiguration{Type: models.LogWriterTypeMemory}).
		WithLevelFromString(level)

	return &Logger{ILogger: l}
}

// NewSilent creates a logger that discards everything. Handing arbor an
// explicit writer list keeps events away from any globally-registered
// writers, so tests stay quiet.
func NewSilent() *Logger {
	l := arbor.NewLogger().WithWriters([]writers.IWriter{newSink(io.Discard)})
	return &Logger{ILogger: l}
}

// NewWithOutput creates a logger that renders each event as one plain
// line on w, for tests that assert on log content.
func NewWithOutput(level string, w io.Writer) *Logger {
	if level == "" {
		level = defaultLevel
	}
	l := arbor.NewLogger().
		WithWriters([]writers.IWriter{newSink(w)}).
		WithLevelFromString(level)
	return &Logger{ILogger: l}
}

// WithCorrelationID forks the logger with a correlation id attached, so a
// single request or tick can be traced through every layer it touches.
func (l *Logger) WithCorrelationID(id string) *Logger {
	return &Logger{ILogger: l.ILogger.WithCorrelationId(id)}
}

// sink adapts an io.Writer to arbor's writer interface. Events arrive as
// JSON; sink renders each as "message key=value ..." with keys sorted so
// output is stable for assertions. Undecodable input is dropped.
type sink struct {
	out io.Writer
	min log.Level
}

func newSink(out io.Writer) *sink {
	return &sink{out: out}
}

func (s *sink) Write(p []byte) (int, error) {
	if s.out == io.Discard {
		return len(p), nil
	}

	var evt models.LogEvent
	if err := json.Unmarshal(p, &evt); err != nil || evt.Level < s.min {
		return len(p), nil
	}

	var b strings.Builder
	b.WriteString(evt.Message)

	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, evt.Fields[k])
	}
	if evt.Error != "" {
		fmt.Fprintf(&b, " error=%s", evt.Error)
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(s.out, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *sink) WithLevel(level log.Level) writers.IWriter {
	s.min = level
	return s
}

func (s *sink) GetFilePath() string { return "" }
func (s *sink) Close() error        { return nil }
