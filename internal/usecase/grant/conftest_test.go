package grant

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	domgrant "github.com/kailas-cloud/kidlock/internal/domain/grant"
)

// --- Mocks ---

type mockRepo struct {
	codes     []domgrant.Code
	pin       string
	codesErr  error
	saveErr   error
	pinErr    error
	saveCalls int
}

func (m *mockRepo) Codes(_ context.Context) ([]domgrant.Code, error) {
	if m.codesErr != nil {
		return nil, m.codesErr
	}
	out := make([]domgrant.Code, len(m.codes))
	copy(out, m.codes)
	return out, nil
}

func (m *mockRepo) SaveCodes(_ context.Context, codes []domgrant.Code) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.codes = append([]domgrant.Code(nil), codes...)
	return nil
}

func (m *mockRepo) PIN(_ context.Context) (string, error) {
	if m.pinErr != nil {
		return "", m.pinErr
	}
	return m.pin, nil
}

func (m *mockRepo) SetPIN(_ context.Context, pin string) error {
	m.pin = pin
	return nil
}

type mockApplier struct {
	applyFn func(ctx context.Context, minutes int) error
	applied []int
}

func (m *mockApplier) ApplyGrant(ctx context.Context, minutes int) error {
	m.applied = append(m.applied, minutes)
	if m.applyFn != nil {
		return m.applyFn(ctx, minutes)
	}
	return nil
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

var testNow = time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, codes ...domgrant.Code) (*Registry, *mockRepo, *mockApplier) {
	t.Helper()
	repo := &mockRepo{codes: codes, pin: "000000"}
	applier := &mockApplier{}
	return New(repo, applier, fixedClock(testNow), zap.NewNop()), repo, applier
}

func mustCode(t *testing.T, value string, minutes int) domgrant.Code {
	t.Helper()
	c, err := domgrant.New(value, minutes)
	if err != nil {
		t.Fatalf("mustCode(%q): %v", value, err)
	}
	return c
}
