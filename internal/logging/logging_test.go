package logging

import (
	"testing"

	"bts-wall-bot/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestLevelMapping(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"unknown": zapcore.InfoLevel,
	}
	for name, want := range cases {
		if got := level(name); got != want {
			t.Fatalf("level(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewHonorsConfiguredLevel(t *testing.T) {
	log := New(config.LoggingConfig{Level: "warn"})
	defer log.Sync()
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info suppressed at warn level")
	}
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn enabled")
	}
}
