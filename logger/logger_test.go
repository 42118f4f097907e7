package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInit(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	Init("debug", true)
	if !Log.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level should be enabled")
	}

	Init("nonsense", false)
	if Log.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("unknown level should fall back to info")
	}
	if !Log.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level should be enabled")
	}
}
