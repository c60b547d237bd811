package hybrid

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStartReprobe_PromotesRecoveredPrimary(t *testing.T) {
	primary := &mockBackend{name: "redis", initErr: errors.New("conn refused")}
	fallback := &mockBackend{name: "memory"}
	svc, _ := newService(t, primary, fallback)
	mustInit(t, svc)

	if svc.PrimaryActive() {
		t.Fatal("primary must start demoted")
	}

	// The primary recovers before the probe loop starts.
	primary.initErr = nil

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc.StartReprobe(ctx, 5*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for !svc.PrimaryActive() {
		select {
		case <-deadline:
			t.Fatal("primary was not promoted after recovery")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := svc.ActiveBackend(); got != "redis" {
		t.Errorf("expected active backend %q after promotion, got %q", "redis", got)
	}
}

func TestStartReprobe_ZeroIntervalIsNoop(t *testing.T) {
	primary := &mockBackend{name: "redis", initErr: errors.New("conn refused")}
	fallback := &mockBackend{name: "memory"}
	svc, _ := newService(t, primary, fallback)
	mustInit(t, svc)

	primary.initErr = nil
	svc.StartReprobe(context.Background(), 0)

	time.Sleep(30 * time.Millisecond)
	if svc.PrimaryActive() {
		t.Error("zero interval must not start a probe loop")
	}
}

func TestStartReprobe_NoPrimaryIsNoop(t *testing.T) {
	fallback := &mockBackend{name: "memory"}
	svc, _ := newService(t, nil, fallback)
	mustInit(t, svc)

	svc.StartReprobe(context.Background(), 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	if svc.PrimaryActive() {
		t.Error("no primary can be promoted")
	}
}
