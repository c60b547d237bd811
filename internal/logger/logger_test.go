package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_KnownEnvironments(t *testing.T) {
	for _, env := range []string{"local", "dev", "docker", "prod"} {
		t.Run(env, func(t *testing.T) {
			l, err := New(env, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l == nil {
				t.Fatal("expected a logger")
			}
		})
	}
}

func TestNew_UnknownEnvironment(t *testing.T) {
	if _, err := New("staging", ""); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestNew_LevelOverride(t *testing.T) {
	l, err := New("prod", "debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level enabled after override")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("prod", "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Error("expected the stored logger back")
	}
	if got := FromContext(context.Background()); got == nil {
		t.Error("expected a nop logger for an empty context")
	}
}
