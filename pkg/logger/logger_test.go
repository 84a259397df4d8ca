package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"", INFO},
		{"verbose", INFO},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var out, errOut bytes.Buffer
	log := NewWithWriters("warn", &out, &errOut)

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn %d", 1)
	log.Error("error %s", "two")

	if out.Len() != 0 {
		t.Errorf("Expected no stdout output at warn level, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[WARN] ") || !strings.Contains(errOut.String(), "warn 1") {
		t.Errorf("Expected warn line, got %q", errOut.String())
	}
	if !strings.Contains(errOut.String(), "error two") {
		t.Errorf("Expected error line, got %q", errOut.String())
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	var log *Logger
	if log.Enabled(ERROR) {
		t.Error("Nil logger should report every level as disabled")
	}
}
