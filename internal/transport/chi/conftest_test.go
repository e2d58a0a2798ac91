package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domgrant "github.com/kailas-cloud/kidlock/internal/domain/grant"
	"github.com/kailas-cloud/kidlock/internal/host/bridge"
	adminuc "github.com/kailas-cloud/kidlock/internal/usecase/admin"
	"github.com/kailas-cloud/kidlock/internal/usecase/budget"
	healthuc "github.com/kailas-cloud/kidlock/internal/usecase/health"
)

const testPIN = "123456"

// --- mock admin service ---

type mockAdmin struct {
	status      budget.Status
	redemption  adminuc.Redemption
	redeemErr   error
	codes       []domgrant.Code
	codesErr    error
	settings    adminuc.Settings
	permissions adminuc.Permissions
	err         error

	gotLimit     int
	gotCount     int
	gotMinutes   int
	gotDeleted   string
	gotPin       string
	gotBlocking  *bool
	gotAutostart *bool
}

func (m *mockAdmin) Status(_ context.Context) budget.Status { return m.status }

func (m *mockAdmin) RedeemCodeOrPin(_ context.Context, _ string) (adminuc.Redemption, error) {
	return m.redemption, m.redeemErr
}

func (m *mockAdmin) VerifyPin(_ context.Context, pin string) bool { return pin == testPIN }

func (m *mockAdmin) SetDailyLimit(_ context.Context, minutes int) error {
	m.gotLimit = minutes
	return m.err
}

func (m *mockAdmin) GenerateCodes(_ context.Context, count, minutesPerCode int) ([]domgrant.Code, error) {
	m.gotCount, m.gotMinutes = count, minutesPerCode
	return m.codes, m.codesErr
}

func (m *mockAdmin) ListCodes(_ context.Context) ([]domgrant.Code, error) {
	return m.codes, m.codesErr
}

func (m *mockAdmin) DeleteCode(_ context.Context, value string) error {
	m.gotDeleted = value
	return m.err
}

func (m *mockAdmin) ChangePin(_ context.Context, pin string) error {
	m.gotPin = pin
	return m.err
}

func (m *mockAdmin) Unlock(_ context.Context) (budget.Status, error) { return m.status, m.err }

func (m *mockAdmin) Settings(_ context.Context) (adminuc.Settings, error) {
	return m.settings, m.err
}

func (m *mockAdmin) SetAutostart(_ context.Context, enabled bool) error {
	m.gotAutostart = &enabled
	return m.err
}

func (m *mockAdmin) SetBlocking(_ context.Context, enabled bool) error {
	m.gotBlocking = &enabled
	return m.err
}

func (m *mockAdmin) Permissions(_ context.Context) (adminuc.Permissions, error) {
	return m.permissions, m.err
}

func (m *mockAdmin) RequestUsagePermission(_ context.Context) error { return m.err }

// --- mock health ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- mock host bridge ---

type mockBridge struct {
	foreground []string
	reports    []bridge.UsageReport
	commands   []bridge.Command
	stopped    bool
}

func (m *mockBridge) ReportForeground(pkg string) { m.foreground = append(m.foreground, pkg) }

func (m *mockBridge) ReportUsage(r bridge.UsageReport) { m.reports = append(m.reports, r) }

func (m *mockBridge) Subscribe() (<-chan bridge.Command, func()) {
	ch := make(chan bridge.Command, len(m.commands))
	for _, c := range m.commands {
		ch <- c
	}
	close(ch)
	return ch, func() { m.stopped = true }
}

type mockSink struct {
	packages []string
}

func (m *mockSink) ForegroundChanged(pkg string) { m.packages = append(m.packages, pkg) }

// --- fixture ---

type fixture struct {
	admin  *mockAdmin
	health *mockHealth
	bridge *mockBridge
	sink   *mockSink
	router http.Handler
}

func newFixture(t *testing.T, agentKeys ...string) *fixture {
	t.Helper()
	f := &fixture{
		admin:  &mockAdmin{},
		health: &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}},
		bridge: &mockBridge{},
		sink:   &mockSink{},
	}
	s := NewServer(f.admin, f.health, f.bridge, f.sink, zap.NewNop())
	r := chi.NewRouter()
	s.Register(r, agentKeys)
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) asAdmin(method, path, body string) *httptest.ResponseRecorder {
	return f.do(method, path, body, AdminPINHeader, testPIN)
}
