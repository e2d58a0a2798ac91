package admin

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/domain"
	"github.com/kailas-cloud/kidlock/internal/domain/grant"
	"github.com/kailas-cloud/kidlock/internal/usecase/budget"
)

// --- Mocks ---

type mockEngine struct {
	limit      int
	status     budget.Status
	setLimitFn func(ctx context.Context, minutes int) error
	rollovers  int
	resets     int
}

func (m *mockEngine) SetDailyLimit(ctx context.Context, minutes int) error {
	if m.setLimitFn != nil {
		return m.setLimitFn(ctx, minutes)
	}
	m.limit = minutes
	return nil
}

func (m *mockEngine) DailyLimit(_ context.Context) (int, error) { return m.limit, nil }

func (m *mockEngine) EnsureDailyRollover(_ context.Context) error {
	m.rollovers++
	return nil
}

func (m *mockEngine) ResetToday(_ context.Context) error {
	m.resets++
	m.status.RemainingMinutes = m.limit
	return nil
}

func (m *mockEngine) Status(_ context.Context) budget.Status { return m.status }

type mockRegistry struct {
	codes     map[string]int
	used      map[string]bool
	pin       string
	consumed  []string
	deleted   []string
	generated int
}

func (m *mockRegistry) Generate(_ context.Context, count, minutes int) ([]grant.Code, error) {
	m.generated = count
	c, _ := grant.New("AAAAAA", minutes)
	return []grant.Code{c}, nil
}

func (m *mockRegistry) Consume(_ context.Context, value string) (int, error) {
	m.consumed = append(m.consumed, value)
	minutes, ok := m.codes[value]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if m.used[value] {
		return 0, domain.ErrAlreadyUsed
	}
	m.used[value] = true
	return minutes, nil
}

func (m *mockRegistry) Delete(_ context.Context, value string) error {
	m.deleted = append(m.deleted, value)
	return nil
}

func (m *mockRegistry) List(_ context.Context) ([]grant.Code, error) { return nil, nil }

func (m *mockRegistry) SetPin(_ context.Context, pin string) error {
	m.pin = pin
	return nil
}

func (m *mockRegistry) VerifyPin(_ context.Context, candidate string) bool {
	return candidate == m.pin
}

type mockDevice struct {
	autostart bool
	blocking  bool
	writes    int
}

func (m *mockDevice) AutostartEnabled(_ context.Context) (bool, error) { return m.autostart, nil }

func (m *mockDevice) SetAutostartEnabled(_ context.Context, enabled bool) error {
	m.writes++
	m.autostart = enabled
	return nil
}

func (m *mockDevice) BlockingEnabled(_ context.Context) (bool, error) { return m.blocking, nil }

func (m *mockDevice) SetBlockingEnabled(_ context.Context, enabled bool) error {
	m.writes++
	m.blocking = enabled
	return nil
}

type mockHost struct {
	usage      bool
	monitoring bool
	requested  int
}

func (m *mockHost) HasPermission(_ context.Context) bool { return m.usage }

func (m *mockHost) RequestPermission(_ context.Context) error {
	m.requested++
	return nil
}

func (m *mockHost) MonitoringEnabled(_ context.Context) bool { return m.monitoring }

// --- Helpers ---

type fixture struct {
	svc      *Service
	engine   *mockEngine
	registry *mockRegistry
	device   *mockDevice
	host     *mockHost
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		engine: &mockEngine{limit: 60},
		registry: &mockRegistry{
			codes: map[string]int{"ABC123": 15, "ZERO00": 0},
			used:  map[string]bool{},
			pin:   "482913",
		},
		device: &mockDevice{blocking: true},
		host:   &mockHost{usage: true, monitoring: true},
	}
	f.svc = New(f.engine, f.registry, f.device, f.host, f.host, zap.NewNop())
	return f
}
