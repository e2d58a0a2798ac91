package budget

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/domain/daily"
)

// --- Mocks ---

type mockRepo struct {
	limit     int
	state     daily.State
	loadErr   error
	limitErr  error
	saveErr   error
	saveCalls int
}

func (m *mockRepo) DailyLimit(_ context.Context) (int, error) {
	if m.limitErr != nil {
		return 0, m.limitErr
	}
	return m.limit, nil
}

func (m *mockRepo) SetDailyLimit(_ context.Context, minutes int) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.limit = minutes
	return nil
}

func (m *mockRepo) DailyState(_ context.Context) (daily.State, error) {
	if m.loadErr != nil {
		return daily.State{}, m.loadErr
	}
	return m.state, nil
}

func (m *mockRepo) SaveDailyState(_ context.Context, s daily.State) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = s
	return nil
}

type mockUsage struct {
	permitted bool
	millis    int64
	err       error
	requested int
	lastStart time.Time
}

func (m *mockUsage) HasPermission(_ context.Context) bool { return m.permitted }

func (m *mockUsage) RequestPermission(_ context.Context) error {
	m.requested++
	return nil
}

func (m *mockUsage) ForegroundMillis(_ context.Context, start, _ time.Time) (int64, error) {
	m.lastStart = start
	if m.err != nil {
		return 0, m.err
	}
	return m.millis, nil
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

// noon on a fixed day, so that today's start is unambiguous.
var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func minutes(n int) int64 { return int64(n) * daily.MillisPerMinute }

type fixture struct {
	engine *Engine
	repo   *mockRepo
	usage  *mockUsage
	clock  *fakeClock
}

// newFixture builds an engine whose state is already rolled over for today.
func newFixture(t *testing.T, limit, added, usedMinutes int) *fixture {
	t.Helper()
	today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	f := &fixture{
		repo:  &mockRepo{limit: limit, state: daily.New(added, today, 0)},
		usage: &mockUsage{permitted: true, millis: minutes(usedMinutes)},
		clock: &fakeClock{now: testNow},
	}
	f.engine = New(f.repo, f.usage, f.clock, zap.NewNop())
	return f
}
