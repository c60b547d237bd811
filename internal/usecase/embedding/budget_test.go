package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/reach-cloud/promptdex/internal/domain"
)

func TestBudgetTracker_RejectWhenExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionReject, zap.NewNop())

	bt.Record(100)

	err := bt.Check(context.Background())
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected domain.ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestBudgetTracker_WarnWhenExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionWarn, zap.NewNop())

	bt.Record(200)

	err := bt.Check(context.Background())
	if err != nil {
		t.Fatalf("expected nil error for warn action, got %v", err)
	}
}

func TestBudgetTracker_MonthlyReject(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 500, BudgetActionReject, zap.NewNop())

	bt.Record(500)

	err := bt.Check(context.Background())
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected domain.ErrEmbeddingQuotaExceeded for monthly limit, got %v", err)
	}
}

func TestBudgetTracker_UnlimitedWhenZero(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 0, BudgetActionReject, zap.NewNop())

	bt.Record(999999999)

	err := bt.Check(context.Background())
	if err != nil {
		t.Fatalf("expected nil error for unlimited budget, got %v", err)
	}
}

func TestBudgetTracker_BelowLimitAllows(t *testing.T) {
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionReject, zap.NewNop())

	bt.Record(500)

	err := bt.Check(context.Background())
	if err != nil {
		t.Fatalf("expected nil error when below limit, got %v", err)
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionWarn, zap.NewNop())

	bt.Record(300)

	if daily := bt.RemainingDaily(); daily != 700 {
		t.Errorf("expected daily remaining 700, got %d", daily)
	}
	if monthly := bt.RemainingMonthly(); monthly != 9700 {
		t.Errorf("expected monthly remaining 9700, got %d", monthly)
	}
}

func TestBudgetTracker_RemainingUnlimited(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 0, BudgetActionWarn, zap.NewNop())

	if daily := bt.RemainingDaily(); daily != -1 {
		t.Errorf("expected -1 for unlimited daily, got %d", daily)
	}
	if monthly := bt.RemainingMonthly(); monthly != -1 {
		t.Errorf("expected -1 for unlimited monthly, got %d", monthly)
	}
}

func TestBudgetTracker_RemainingFloorsAtZero(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 1000, BudgetActionWarn, zap.NewNop())

	bt.Record(250)

	if daily := bt.RemainingDaily(); daily != 0 {
		t.Errorf("expected daily remaining 0 after overshoot, got %d", daily)
	}
}

func TestBudgetTracker_DailyRollover(t *testing.T) {
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionReject, zap.NewNop())
	base := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	now := base
	bt.now = func() time.Time { return now }
	bt.lastDayReset = truncateToDay(base)
	bt.lastMonthReset = truncateToMonth(base)

	bt.Record(900)

	now = base.Add(24 * time.Hour)
	if got := bt.DailyUsed(); got != 0 {
		t.Errorf("expected daily counter reset after rollover, got %d", got)
	}
	if got := bt.MonthlyUsed(); got != 900 {
		t.Errorf("monthly counter must survive a day rollover, got %d", got)
	}
}

func TestBudgetTracker_MonthlyRollover(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 10000, BudgetActionReject, zap.NewNop())
	base := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	now := base
	bt.now = func() time.Time { return now }
	bt.lastDayReset = truncateToDay(base)
	bt.lastMonthReset = truncateToMonth(base)

	bt.Record(10000)
	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected quota exceeded before rollover, got %v", err)
	}

	now = time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected fresh budget after month rollover, got %v", err)
	}
	if got := bt.MonthlyUsed(); got != 0 {
		t.Errorf("expected monthly counter reset, got %d", got)
	}
}

func TestBudgetTracker_LimitAccessors(t *testing.T) {
	bt := NewBudgetTracker("test", 123, 456, BudgetActionWarn, zap.NewNop())

	if bt.DailyLimit() != 123 || bt.MonthlyLimit() != 456 {
		t.Errorf("unexpected limits: %d, %d", bt.DailyLimit(), bt.MonthlyLimit())
	}
}
