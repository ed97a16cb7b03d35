package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"Error": zapcore.ErrorLevel,
	}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %s, %v", raw, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_AppliesLevel(t *testing.T) {
	l, err := New(Config{Level: "warn", Encoding: "json", Fields: map[string]string{"service": "snaplink"}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("warn should be enabled")
	}
}

func TestNew_RejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Development: true, Level: "chatty"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestL_BeforeInit(t *testing.T) {
	if L() == nil {
		t.Fatal("L must never return nil")
	}
}
