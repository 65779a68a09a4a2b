// Package logging tests for the zap-backed global logger.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestInit verifies level parsing and global replacement.
func TestInit(t *testing.T) {
	if err := Init("debug", true); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if L() == nil {
		t.Fatal("L() returned nil after Init()")
	}

	if err := Init("not-a-level", false); err == nil {
		t.Error("Init() with a bad level should fail")
	}
}

// TestL_lazyDefault verifies a usable logger exists without Init.
func TestL_lazyDefault(t *testing.T) {
	SetLogger(nil)
	defer SetLogger(zap.NewNop())

	if L() == nil {
		t.Fatal("L() should build a default logger")
	}
}

// TestConvenienceFuncs verifies messages and fields reach the core.
func TestConvenienceFuncs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	Debug("probe succeeded", zap.String("addr", "1.1.1.1:443"))
	Info("queue drained", zap.Int("applied", 3))
	Warn("entry failed", zap.Int("attempts", 2))

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	if entries[0].Level != zapcore.DebugLevel || entries[0].Message != "probe succeeded" {
		t.Errorf("first entry = %v %q", entries[0].Level, entries[0].Message)
	}
	if got := entries[1].ContextMap()["applied"]; got != int64(3) {
		t.Errorf("applied field = %v, want 3", got)
	}
}

// TestError verifies the error is attached as a field.
func TestError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	Error("apply failed", errTest, zap.String("entry_id", "abc"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; got != "boom" {
		t.Errorf("error field = %v, want boom", got)
	}

	// A nil error must not add an empty field.
	Error("no cause", nil)
	last := logs.All()[1]
	if _, ok := last.ContextMap()["error"]; ok {
		t.Error("nil error should not produce an error field")
	}
}

var errTest = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
