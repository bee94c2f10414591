package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	prod, err := New(false)
	if err != nil {
		t.Fatalf("New(false) failed: %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected production logger to drop debug entries")
	}

	dev, err := New(true)
	if err != nil {
		t.Fatalf("New(true) failed: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected development logger to emit debug entries")
	}
}
