// Package usage reports embedding token consumption against the configured
// budget windows.
package usage

import (
	"context"
	"time"
)

// Window describes one budget window (day or month).
type Window struct {
	Limit     int64
	Used      int64
	Remaining int64 // -1 when unlimited
	Exhausted bool
	ResetsAt  time.Time // UTC start of the next window
}

// Report is a point-in-time snapshot of embedding token consumption.
type Report struct {
	Provider    string
	Model       string
	GeneratedAt time.Time
	Daily       Window
	Monthly     Window
}

// Service builds usage reports from the budget tracker.
type Service struct {
	br       BudgetReader
	provider string
	model    string
	now      func() time.Time
}

// New creates a Service. br may be nil (unlimited mode: zero usage,
// remaining reported as -1).
func New(br BudgetReader, provider, model string) *Service {
	return &Service{
		br:       br,
		provider: provider,
		model:    model,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Report assembles the daily and monthly windows.
func (s *Service) Report(_ context.Context) Report {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	daily := Window{Remaining: -1, ResetsAt: dayStart.Add(24 * time.Hour)}
	monthly := Window{Remaining: -1, ResetsAt: monthStart.AddDate(0, 1, 0)}

	if s.br != nil {
		daily.Limit = s.br.DailyLimit()
		daily.Used = s.br.DailyUsed()
		daily.Remaining = s.br.RemainingDaily()
		daily.Exhausted = daily.Limit > 0 && daily.Remaining <= 0

		monthly.Limit = s.br.MonthlyLimit()
		monthly.Used = s.br.MonthlyUsed()
		monthly.Remaining = s.br.RemainingMonthly()
		monthly.Exhausted = monthly.Limit > 0 && monthly.Remaining <= 0
	}

	return Report{
		Provider:    s.provider,
		Model:       s.model,
		GeneratedAt: now,
		Daily:       daily,
		Monthly:     monthly,
	}
}
