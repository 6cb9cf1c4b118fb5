package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewSilent(t *testing.T) {
	logger := NewSilent()
	if logger == nil {
		t.Fatal("NewSilent returned nil")
	}
	// Must not panic or write anywhere.
	logger.Info().Str("k", "v").Msg("quiet")
	logger.Error().Msg("still quiet")
}

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("debug", &buf)

	logger.Info().Str("agent", "a1").Msg("vote recorded")

	out := buf.String()
	if !strings.Contains(out, "vote recorded") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "agent=a1") {
		t.Errorf("output missing field: %q", out)
	}
}

func TestWithCorrelationID(t *testing.T) {
	logger := NewSilent()
	child := logger.WithCorrelationID("corr-1")
	if child == nil {
		t.Fatal("WithCorrelationID returned nil")
	}
	child.Info().Msg("tagged")

	// The parent is unaffected; both remain usable.
	logger.Info().Msg("untagged")
}

func TestNewFromConfigDefaults(t *testing.T) {
	logger := NewFromConfig(Config{Outputs: []string{"console"}})
	if logger == nil {
		t.Fatal("NewFromConfig returned nil")
	}
	logger.Debug().Msg("below default level, dropped")
}
