package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/clock"
	"github.com/kailas-cloud/kidlock/internal/domain"
	"github.com/kailas-cloud/kidlock/internal/domain/daily"
	"github.com/kailas-cloud/kidlock/internal/domain/settings"
	"github.com/kailas-cloud/kidlock/internal/metrics"
)

// Status is a snapshot of today's allowance.
type Status struct {
	DailyLimitMinutes int
	AddedMinutes      int
	UsedMinutes       int
	RemainingMinutes  int
	HasPermission     bool
	ResetsAt          time.Time
}

// Engine computes the remaining allowance and owns every daily-state mutation.
// All read-modify-write sequences hold mu.
type Engine struct {
	mu     sync.Mutex
	repo   StateRepository
	usage  UsageSource
	clock  clock.Clock
	logger *zap.Logger

	// last successfully read values, served when the store is unreachable
	lastLimit int
	lastState daily.State
}

// New creates a budget engine.
func New(repo StateRepository, usage UsageSource, clk clock.Clock, logger *zap.Logger) *Engine {
	return &Engine{
		repo:   repo,
		usage:  usage,
		clock:  clk,
		logger: logger,
	}
}

// RemainingMinutes returns max(0, limit + added - used).
func (e *Engine) RemainingMinutes(ctx context.Context) int {
	return e.Status(ctx).RemainingMinutes
}

// HasRemainingTime reports whether any allowance is left today.
func (e *Engine) HasRemainingTime(ctx context.Context) bool {
	return e.RemainingMinutes(ctx) > 0
}

// Status rolls the day over if needed and returns today's numbers.
// Missing usage permission or an unreadable usage source leaves zero remaining.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	today := clock.StartOfDay(now)

	st, err := e.currentLocked(ctx, today)
	if err != nil {
		e.logger.Warn("Daily state unavailable, using last known", zap.Error(err))
		st = e.lastState
		if st.NeedsRollover(today) {
			st = st.RolledOver(today)
		}
	}
	limit := e.limitLocked(ctx)

	permitted := e.usage.HasPermission(ctx)
	used, remaining := 0, 0
	if permitted {
		raw, err := e.rawUsedLocked(ctx, today, now)
		if err != nil {
			e.logger.Warn("Usage query failed, no time remaining", zap.Error(err))
		} else {
			used = st.EffectiveUsed(raw)
			remaining = daily.Remaining(limit, st.AddedMinutes(), used)
		}
	}
	metrics.RemainingMinutes.Set(float64(remaining))

	return Status{
		DailyLimitMinutes: limit,
		AddedMinutes:      st.AddedMinutes(),
		UsedMinutes:       used,
		RemainingMinutes:  remaining,
		HasPermission:     permitted,
		ResetsAt:          clock.NextDay(now),
	}
}

// EnsureDailyRollover zeroes the daily counters once per day. Idempotent within a day.
func (e *Engine) EnsureDailyRollover(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.currentLocked(ctx, clock.TodayStart(e.clock)); err != nil {
		return fmt.Errorf("ensure rollover: %w", err)
	}
	return nil
}

// ApplyGrant adds minutes plus whatever overrun earlier grants did not cover,
// so the whole grant shows up as remaining time.
func (e *Engine) ApplyGrant(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("apply grant: %w", domain.NewInvalidInput("minutes", "must be non-negative"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	today := clock.StartOfDay(now)

	st, err := e.currentLocked(ctx, today)
	if err != nil {
		return fmt.Errorf("apply grant: %w", err)
	}
	limit, err := e.repo.DailyLimit(ctx)
	if err != nil {
		return fmt.Errorf("apply grant: %w", err)
	}
	e.lastLimit = limit

	used := 0
	if e.usage.HasPermission(ctx) {
		raw, err := e.rawUsedLocked(ctx, today, now)
		if err != nil {
			e.logger.Warn("Usage query failed, granting without debt", zap.Error(err))
		}
		used = st.EffectiveUsed(raw)
	}
	add := daily.Compensated(minutes, limit, st.AddedMinutes(), used)
	debt := add - minutes

	st = st.WithAdded(add)
	e.saveLocked(ctx, st)
	metrics.GrantedMinutesTotal.Add(float64(add))

	e.logger.Info("Grant applied",
		zap.Int("minutes", minutes),
		zap.Int("debt", debt),
		zap.Int("added_total", st.AddedMinutes()),
	)
	return nil
}

// ResetToday clears granted minutes and moves the usage baseline to the current usage,
// restoring the full daily limit.
func (e *Engine) ResetToday(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	today := clock.StartOfDay(now)

	st, err := e.currentLocked(ctx, today)
	if err != nil {
		return fmt.Errorf("reset today: %w", err)
	}

	raw := 0
	if e.usage.HasPermission(ctx) {
		if raw, err = e.rawUsedLocked(ctx, today, now); err != nil {
			return fmt.Errorf("reset today: %w", err)
		}
	}
	st = st.Unlocked(raw)
	e.saveLocked(ctx, st)

	e.logger.Info("Daily allowance reset", zap.Int("usage_baseline", raw))
	return nil
}

// DailyLimit returns the configured daily limit in minutes.
func (e *Engine) DailyLimit(ctx context.Context) (int, error) {
	limit, err := e.repo.DailyLimit(ctx)
	if err != nil {
		return 0, fmt.Errorf("get daily limit: %w", err)
	}
	return limit, nil
}

// SetDailyLimit validates and stores the daily limit.
func (e *Engine) SetDailyLimit(ctx context.Context, minutes int) error {
	if err := settings.ValidateDailyLimit(minutes); err != nil {
		return fmt.Errorf("set daily limit: %w: %w", domain.ErrInvalidInput, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.repo.SetDailyLimit(ctx, minutes); err != nil {
		return fmt.Errorf("set daily limit: %w", err)
	}
	e.lastLimit = minutes
	return nil
}

// currentLocked loads the daily state and performs the rollover when the stored
// boundary is before today.
func (e *Engine) currentLocked(ctx context.Context, today time.Time) (daily.State, error) {
	st, err := e.repo.DailyState(ctx)
	if err != nil {
		return daily.State{}, fmt.Errorf("load daily state: %w", err)
	}
	if st.NeedsRollover(today) {
		prev := st
		st = st.RolledOver(today)
		e.saveLocked(ctx, st)
		metrics.RolloversTotal.Inc()
		e.logger.Info("Daily rollover",
			zap.Time("previous_boundary", prev.LastResetBoundary()),
			zap.Time("boundary", today),
			zap.Int("dropped_added_minutes", prev.AddedMinutes()),
		)
	}
	e.lastState = st
	return st, nil
}

func (e *Engine) limitLocked(ctx context.Context) int {
	limit, err := e.repo.DailyLimit(ctx)
	if err != nil {
		e.logger.Warn("Daily limit unavailable, using last known",
			zap.Int("limit", e.lastLimit),
			zap.Error(err),
		)
		return e.lastLimit
	}
	e.lastLimit = limit
	return limit
}

// rawUsedLocked returns whole minutes of foreground time since today's start.
func (e *Engine) rawUsedLocked(ctx context.Context, today, now time.Time) (int, error) {
	ms, err := e.usage.ForegroundMillis(ctx, today, now)
	if err != nil {
		return 0, fmt.Errorf("query usage: %w", err)
	}
	return daily.MillisToMinutes(ms), nil
}

// saveLocked writes the state. Write failures are logged and otherwise ignored;
// the in-memory copy still serves the current call.
func (e *Engine) saveLocked(ctx context.Context, st daily.State) {
	e.lastState = st
	if err := e.repo.SaveDailyState(ctx, st); err != nil {
		e.logger.Warn("Daily state not persisted", zap.Error(err))
	}
}
