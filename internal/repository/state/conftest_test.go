package state

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/db"
)

// mockStore is a map-backed store with optional failure hooks.
type mockStore struct {
	data      map[string]string
	getFn     func(ctx context.Context, key string) ([]byte, error)
	setFn     func(ctx context.Context, key string, value []byte) error
	setSyncFn func(ctx context.Context, key string, value []byte) error
	delFn     func(ctx context.Context, key string) error
	setCalls  int
	syncCalls int
	delCalls  int
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(v), nil
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	m.setCalls++
	if m.setFn != nil {
		if err := m.setFn(ctx, key, value); err != nil {
			return err
		}
	}
	m.data[key] = string(value)
	return nil
}

func (m *mockStore) SetSync(ctx context.Context, key string, value []byte) error {
	m.syncCalls++
	if m.setSyncFn != nil {
		if err := m.setSyncFn(ctx, key, value); err != nil {
			return err
		}
	}
	m.data[key] = string(value)
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	m.delCalls++
	if m.delFn != nil {
		if err := m.delFn(ctx, key); err != nil {
			return err
		}
	}
	delete(m.data, key)
	return nil
}

var testDefaults = Defaults{PIN: "000000", DailyLimitMinutes: 60, BlockingEnabled: true}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{data: map[string]string{}}
	return New(ms, "kidlock:", testDefaults, nil, zap.NewNop()), ms
}
