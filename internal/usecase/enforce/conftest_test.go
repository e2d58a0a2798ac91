package enforce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockBudget struct {
	mu        sync.Mutex
	remaining bool
}

func (m *mockBudget) HasRemainingTime(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

type mockFlags struct {
	blocking bool
	err      error
}

func (m *mockFlags) BlockingEnabled(_ context.Context) (bool, error) { return m.blocking, m.err }

type mockHost struct {
	mu         sync.Mutex
	monitoring bool
	homes      int
	killed     []string
	killErr    error
}

func (m *mockHost) MonitoringEnabled(_ context.Context) bool { return m.monitoring }

func (m *mockHost) GoHome(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homes++
	return nil
}

func (m *mockHost) KillBackgroundProcess(_ context.Context, pkg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killed = append(m.killed, pkg)
	return m.killErr
}

func (m *mockHost) homeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.homes
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// --- Helpers ---

const selfPackage = "uk.telegramgames.kidlock"

var errUnavailable = errors.New("flag store unavailable")

func testConfig() Config {
	return Config{
		SelfPackage:    selfPackage,
		TickInterval:   time.Hour,
		Debounce:       500 * time.Millisecond,
		ExemptPrefixes: []string{"com.android", "android"},
		ExemptPackages: []string{"com.google.android.tv.settings", "com.google.android.leanbacklauncher"},
	}
}

type fixture struct {
	monitor *Monitor
	budget  *mockBudget
	flags   *mockFlags
	host    *mockHost
	clock   *fakeClock
}

// newFixture builds a monitor with an exhausted budget and blocking on.
func newFixture(t *testing.T, probes ...Probe) *fixture {
	t.Helper()
	f := &fixture{
		budget: &mockBudget{},
		flags:  &mockFlags{blocking: true},
		host:   &mockHost{monitoring: true},
		clock:  &fakeClock{now: time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)},
	}
	f.monitor = New(testConfig(), f.budget, f.flags, f.host, f.clock, zap.NewNop(), probes...)
	return f
}

func fixedProbe(pkg string) Probe {
	return func(_ context.Context) (string, bool) { return pkg, pkg != "" }
}

func missProbe(_ context.Context) (string, bool) { return "", false }
