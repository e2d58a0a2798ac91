package enforce

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/clock"
	"github.com/kailas-cloud/kidlock/internal/metrics"
)

const (
	eventBuffer    = 16
	evictionBuffer = 8
)

// Source tells what triggered an eviction.
type Source string

const (
	// SourceEvent is a foreground change reported by the host.
	SourceEvent Source = "event"
	// SourceTick is the periodic check.
	SourceTick Source = "tick"
)

// Eviction is emitted after the foreground application was sent home.
type Eviction struct {
	Package string
	Source  Source
	At      time.Time
}

// Config holds the monitor's tunables.
type Config struct {
	SelfPackage    string
	TickInterval   time.Duration
	Debounce       time.Duration
	ExemptPrefixes []string
	ExemptPackages []string
}

// Monitor evicts non-exempt foreground applications once the daily budget is spent.
type Monitor struct {
	cfg    Config
	budget Budget
	flags  Flags
	host   Host
	clock  clock.Clock
	probes []Probe
	logger *zap.Logger

	exempt    map[string]struct{}
	events    chan string
	evictions chan Eviction

	mu           sync.Mutex
	lastKnown    string
	lastEviction time.Time
}

// New creates a monitor. probes are tried in order on every tick; the monitor's own
// last-known foreground package is always the final fallback.
func New(
	cfg Config, budget Budget, flags Flags, host Host, clk clock.Clock,
	logger *zap.Logger, probes ...Probe,
) *Monitor {
	exempt := make(map[string]struct{}, len(cfg.ExemptPackages))
	for _, p := range cfg.ExemptPackages {
		exempt[p] = struct{}{}
	}
	m := &Monitor{
		cfg:       cfg,
		budget:    budget,
		flags:     flags,
		host:      host,
		clock:     clk,
		logger:    logger,
		exempt:    exempt,
		events:    make(chan string, eventBuffer),
		evictions: make(chan Eviction, evictionBuffer),
	}
	m.probes = append(append([]Probe(nil), probes...), m.lastKnownProbe)
	return m
}

// ForegroundChanged queues a foreground change. Never blocks; drops the event when the
// queue is full since the next tick covers it.
func (m *Monitor) ForegroundChanged(pkg string) {
	select {
	case m.events <- pkg:
	default:
		m.logger.Debug("Foreground event dropped", zap.String("package", pkg))
	}
}

// Evictions delivers eviction decisions. Slow readers miss decisions.
func (m *Monitor) Evictions() <-chan Eviction {
	return m.evictions
}

// LastKnown returns the cached foreground package.
func (m *Monitor) LastKnown() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastKnown
}

// Run processes events and ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	m.logger.Info("Enforcement monitor started",
		zap.Duration("tick", m.cfg.TickInterval),
		zap.Duration("debounce", m.cfg.Debounce),
	)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Enforcement monitor stopped")
			return
		case pkg := <-m.events:
			m.handleEvent(ctx, pkg)
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) handleEvent(ctx context.Context, pkg string) {
	switch {
	case pkg == "":
		return
	case pkg == m.cfg.SelfPackage:
		m.setLastKnown(pkg)
		return
	case m.isExempt(pkg):
		m.setLastKnown("")
		return
	}
	m.setLastKnown(pkg)
	m.enforce(ctx, pkg, SourceEvent)
}

func (m *Monitor) tick(ctx context.Context) {
	if !m.host.MonitoringEnabled(ctx) {
		return
	}
	pkg, ok := m.foreground(ctx)
	if !ok || pkg == m.cfg.SelfPackage {
		return
	}
	// An exempt foreground means the cached package is no longer in front.
	if m.isExempt(pkg) {
		m.setLastKnown("")
		return
	}
	m.enforce(ctx, pkg, SourceTick)
}

// foreground returns the first probe hit. false means Unknown.
func (m *Monitor) foreground(ctx context.Context) (string, bool) {
	for _, probe := range m.probes {
		if pkg, ok := probe(ctx); ok && pkg != "" {
			return pkg, true
		}
	}
	return "", false
}

func (m *Monitor) lastKnownProbe(_ context.Context) (string, bool) {
	pkg := m.LastKnown()
	return pkg, pkg != ""
}

func (m *Monitor) enforce(ctx context.Context, pkg string, src Source) {
	blocking, err := m.flags.BlockingEnabled(ctx)
	if err != nil {
		m.logger.Warn("Blocking flag unavailable, skipping", zap.Error(err))
		return
	}
	if !blocking || m.budget.HasRemainingTime(ctx) {
		return
	}

	now := m.clock.Now()
	m.mu.Lock()
	if !m.lastEviction.IsZero() && now.Sub(m.lastEviction) < m.cfg.Debounce {
		m.mu.Unlock()
		return
	}
	m.lastEviction = now
	m.mu.Unlock()

	if err := m.host.GoHome(ctx); err != nil {
		m.logger.Warn("Go home failed", zap.String("package", pkg), zap.Error(err))
	}
	if err := m.host.KillBackgroundProcess(ctx, pkg); err != nil {
		m.logger.Debug("Kill background process failed", zap.String("package", pkg), zap.Error(err))
	}
	m.setLastKnown("")
	metrics.EvictionsTotal.WithLabelValues(string(src)).Inc()

	m.logger.Info("Foreground application evicted",
		zap.String("package", pkg),
		zap.String("source", string(src)),
	)

	select {
	case m.evictions <- Eviction{Package: pkg, Source: src, At: now}:
	default:
		m.logger.Debug("Eviction decision dropped, no reader", zap.String("package", pkg))
	}
}

func (m *Monitor) isExempt(pkg string) bool {
	if _, ok := m.exempt[pkg]; ok {
		return true
	}
	for _, prefix := range m.cfg.ExemptPrefixes {
		if strings.HasPrefix(pkg, prefix) {
			return true
		}
	}
	return false
}

func (m *Monitor) setLastKnown(pkg string) {
	m.mu.Lock()
	m.lastKnown = pkg
	m.mu.Unlock()
}
