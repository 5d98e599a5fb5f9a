package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"Warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"chatty":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("json") != FormatJSON {
		t.Error("json should parse as FormatJSON")
	}
	if ParseFormat("pretty") != FormatConsole {
		t.Error("unknown formats should fall back to console")
	}
}

func TestNewHonoursLevel(t *testing.T) {
	l := New("warn", FormatJSON)
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}
}

func TestForUsesInitLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Init(zap.New(core))
	defer Init(prev)

	For(ComponentDriver).Infof("state %d -> %d", 0, 1)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != ComponentDriver {
		t.Errorf("logger name = %q, want %q", entries[0].LoggerName, ComponentDriver)
	}
	if entries[0].Message != "state 0 -> 1" {
		t.Errorf("message = %q", entries[0].Message)
	}
}
