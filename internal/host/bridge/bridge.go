// Package bridge connects the core to the device agent: the agent reports foreground
// changes and usage statistics over HTTP and receives commands on a stream.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/clock"
)

const subscriberBuffer = 32

var (
	// ErrNoAgent means no agent is subscribed to the command stream.
	ErrNoAgent = errors.New("no device agent connected")
	// ErrNoReport means the agent has not reported usage yet.
	ErrNoReport = errors.New("no usage report received")
)

// Config holds freshness windows for agent data.
type Config struct {
	// LiveFreshness bounds how old a reported foreground package may be for the live probe.
	LiveFreshness time.Duration
	// ReportFreshness bounds how old a usage report may be for the recent-usage probe.
	ReportFreshness time.Duration
}

// Bridge implements the usage source and the enforcement host on top of agent reports.
type Bridge struct {
	cfg    Config
	clock  clock.Clock
	logger *zap.Logger

	mu           sync.RWMutex
	report       UsageReport
	reportAt     time.Time
	foreground   string
	foregroundAt time.Time
	subs         map[uint64]chan Command
	nextSub      uint64
}

// New creates a bridge.
func New(cfg Config, clk clock.Clock, logger *zap.Logger) *Bridge {
	return &Bridge{
		cfg:    cfg,
		clock:  clk,
		logger: logger,
		subs:   make(map[uint64]chan Command),
	}
}

// ReportForeground records the package the agent saw come to the foreground.
func (b *Bridge) ReportForeground(pkg string) {
	b.mu.Lock()
	b.foreground = pkg
	b.foregroundAt = b.clock.Now()
	b.mu.Unlock()
}

// ReportUsage stores the latest usage snapshot.
func (b *Bridge) ReportUsage(r UsageReport) {
	b.mu.Lock()
	b.report = r
	b.reportAt = b.clock.Now()
	b.mu.Unlock()
}

// HasPermission reports usage access. A report from a previous day does not count.
func (b *Bridge) HasPermission(_ context.Context) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reportedTodayLocked() && b.report.UsagePermission
}

// RequestPermission asks the agent to open the usage access prompt.
func (b *Bridge) RequestPermission(ctx context.Context) error {
	return b.send(ctx, CommandRequestUsagePermission, "")
}

// ForegroundMillis returns today's cumulative foreground time. Only windows starting at
// the current day start are known; a report from a previous day counts as zero.
func (b *Bridge) ForegroundMillis(_ context.Context, start, _ time.Time) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.reportAt.IsZero() {
		return 0, ErrNoReport
	}
	if !clock.StartOfDay(b.reportAt).Equal(start) {
		return 0, nil
	}
	return b.report.ForegroundMillis, nil
}

// MonitoringEnabled reports whether the agent's monitoring service is on and the agent
// is listening for commands.
func (b *Bridge) MonitoringEnabled(_ context.Context) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) > 0 && b.reportedTodayLocked() && b.report.MonitoringEnabled
}

// GoHome sends the launcher to the foreground.
func (b *Bridge) GoHome(ctx context.Context) error {
	return b.send(ctx, CommandGoHome, "")
}

// KillBackgroundProcess asks the agent to stop pkg.
func (b *Bridge) KillBackgroundProcess(ctx context.Context, pkg string) error {
	return b.send(ctx, CommandKillBackgroundProcess, pkg)
}

// NotifyLimitReached shows the limit notification for pkg.
func (b *Bridge) NotifyLimitReached(ctx context.Context, pkg string) error {
	return b.send(ctx, CommandNotifyLimitReached, pkg)
}

// LaunchMain opens the child screen.
func (b *Bridge) LaunchMain(ctx context.Context) error {
	return b.send(ctx, CommandLaunchMain, "")
}

// HealthCheck fails while no agent is subscribed.
func (b *Bridge) HealthCheck(_ context.Context) error {
	if !b.Connected() {
		return ErrNoAgent
	}
	return nil
}

// Connected reports whether any agent is subscribed.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) > 0
}

// LiveProbe returns the reported foreground package while it is fresh.
func (b *Bridge) LiveProbe(_ context.Context) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.foreground == "" || b.clock.Now().Sub(b.foregroundAt) > b.cfg.LiveFreshness {
		return "", false
	}
	return b.foreground, true
}

// RecentUsageProbe returns the latest usage-event package while the report is fresh.
func (b *Bridge) RecentUsageProbe(_ context.Context) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.report.RecentPackage == "" || b.clock.Now().Sub(b.reportAt) > b.cfg.ReportFreshness {
		return "", false
	}
	return b.report.RecentPackage, true
}

// Subscribe registers a command stream. The returned func unsubscribes and closes the channel.
func (b *Bridge) Subscribe() (<-chan Command, func()) {
	ch := make(chan Command, subscriberBuffer)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	b.logger.Info("Agent subscribed", zap.Uint64("subscriber", id))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
			b.logger.Info("Agent unsubscribed", zap.Uint64("subscriber", id))
		})
	}
}

// send fans a command out to every subscriber without blocking.
func (b *Bridge) send(_ context.Context, typ CommandType, pkg string) error {
	cmd := Command{
		ID:      uuid.NewString(),
		Type:    typ,
		Package: pkg,
		At:      b.clock.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.subs) == 0 {
		return fmt.Errorf("%s: %w", typ, ErrNoAgent)
	}
	delivered := 0
	for id, ch := range b.subs {
		select {
		case ch <- cmd:
			delivered++
		default:
			b.logger.Warn("Agent command dropped, stream full",
				zap.Uint64("subscriber", id),
				zap.String("type", string(typ)),
			)
		}
	}
	if delivered == 0 {
		return fmt.Errorf("%s: all streams full: %w", typ, ErrNoAgent)
	}
	return nil
}

func (b *Bridge) reportedTodayLocked() bool {
	if b.reportAt.IsZero() {
		return false
	}
	return !b.reportAt.Before(clock.TodayStart(b.clock))
}
