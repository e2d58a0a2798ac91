// Package state persists settings, grant codes and daily bookkeeping as plain KV strings.
package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/db"
	"github.com/kailas-cloud/kidlock/internal/domain/daily"
	"github.com/kailas-cloud/kidlock/internal/domain/grant"
)

// store is the consumer interface for state operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetSync(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Key suffixes under the configured prefix.
const (
	keyPIN           = "settings:pin"
	keyDailyLimit    = "settings:daily_limit_minutes"
	keyCodes         = "codes"
	keyAddedMinutes  = "daily:added_minutes"
	keyLastReset     = "daily:last_reset_boundary"
	keyUsageBaseline = "daily:usage_baseline_minutes"
	keyAutostart     = "device:autostart_enabled"
	keyBlocking      = "device:blocking_enabled"
)

// Defaults are returned for keys that were never written.
type Defaults struct {
	PIN               string
	DailyLimitMinutes int
	BlockingEnabled   bool
}

// Repo implements the state repositories of the budget, grant and admin use cases.
type Repo struct {
	store    store
	prefix   string
	defaults Defaults
	retries  *prometheus.CounterVec
	logger   *zap.Logger
}

// New creates a state repository. retries may be nil.
func New(s store, prefix string, defaults Defaults, retries *prometheus.CounterVec, logger *zap.Logger) *Repo {
	return &Repo{
		store:    s,
		prefix:   prefix,
		defaults: defaults,
		retries:  retries,
		logger:   logger,
	}
}

// PIN returns the admin PIN.
func (r *Repo) PIN(ctx context.Context) (string, error) {
	v, ok, err := r.get(ctx, keyPIN)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return r.defaults.PIN, nil
	}
	return v, nil
}

// SetPIN stores the admin PIN. Callers validate the format.
func (r *Repo) SetPIN(ctx context.Context, pin string) error {
	return r.put(ctx, keyPIN, pin)
}

// DailyLimit returns the daily limit in minutes.
func (r *Repo) DailyLimit(ctx context.Context) (int, error) {
	return r.getInt(ctx, keyDailyLimit, r.defaults.DailyLimitMinutes)
}

// SetDailyLimit stores the daily limit in minutes.
func (r *Repo) SetDailyLimit(ctx context.Context, minutes int) error {
	return r.put(ctx, keyDailyLimit, strconv.Itoa(minutes))
}

// Codes returns every stored grant code. Malformed records are dropped with a warning.
func (r *Repo) Codes(ctx context.Context) ([]grant.Code, error) {
	v, _, err := r.get(ctx, keyCodes)
	if err != nil {
		return nil, err
	}
	codes, skipped := grant.Decode(v)
	if len(skipped) > 0 {
		r.logger.Warn("Dropped malformed grant code records", zap.Strings("records", skipped))
	}
	return codes, nil
}

// SaveCodes replaces the stored code list. An empty list removes the key.
func (r *Repo) SaveCodes(ctx context.Context, codes []grant.Code) error {
	if len(codes) == 0 {
		if err := r.store.Del(ctx, r.key(keyCodes)); err != nil {
			return fmt.Errorf("state DEL %s: %w", keyCodes, err)
		}
		return nil
	}
	return r.put(ctx, keyCodes, grant.Encode(codes))
}

// DailyState returns the daily bookkeeping. A never-written boundary is the zero time,
// which forces a rollover on first use.
func (r *Repo) DailyState(ctx context.Context) (daily.State, error) {
	added, err := r.getInt(ctx, keyAddedMinutes, 0)
	if err != nil {
		return daily.State{}, err
	}
	baseline, err := r.getInt(ctx, keyUsageBaseline, 0)
	if err != nil {
		return daily.State{}, err
	}
	v, ok, err := r.get(ctx, keyLastReset)
	if err != nil {
		return daily.State{}, err
	}
	var boundary time.Time
	if ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return daily.State{}, fmt.Errorf("parse %s: %w", keyLastReset, err)
		}
		if ms > 0 {
			boundary = time.UnixMilli(ms)
		}
	}
	return daily.New(added, boundary, baseline), nil
}

// SaveDailyState writes the three daily keys. The boundary goes last so that a crash
// mid-sequence leaves the old boundary and the next read rolls over again.
func (r *Repo) SaveDailyState(ctx context.Context, s daily.State) error {
	var ms int64
	if !s.LastResetBoundary().IsZero() {
		ms = s.LastResetBoundary().UnixMilli()
	}
	return errors.Join(
		r.put(ctx, keyAddedMinutes, strconv.Itoa(s.AddedMinutes())),
		r.put(ctx, keyUsageBaseline, strconv.Itoa(s.UsageBaseline())),
		r.put(ctx, keyLastReset, strconv.FormatInt(ms, 10)),
	)
}

// AutostartEnabled reports whether the child screen is launched on boot.
func (r *Repo) AutostartEnabled(ctx context.Context) (bool, error) {
	return r.getBool(ctx, keyAutostart, false)
}

// SetAutostartEnabled stores the autostart flag.
func (r *Repo) SetAutostartEnabled(ctx context.Context, enabled bool) error {
	return r.put(ctx, keyAutostart, strconv.FormatBool(enabled))
}

// BlockingEnabled reports whether the monitor may evict applications.
func (r *Repo) BlockingEnabled(ctx context.Context) (bool, error) {
	return r.getBool(ctx, keyBlocking, r.defaults.BlockingEnabled)
}

// SetBlockingEnabled stores the blocking flag.
func (r *Repo) SetBlockingEnabled(ctx context.Context, enabled bool) error {
	return r.put(ctx, keyBlocking, strconv.FormatBool(enabled))
}

func (r *Repo) key(suffix string) string {
	return r.prefix + suffix
}

func (r *Repo) get(ctx context.Context, suffix string) (string, bool, error) {
	data, err := r.store.Get(ctx, r.key(suffix))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("state GET %s: %w", suffix, err)
	}
	return string(data), true, nil
}

func (r *Repo) getInt(ctx context.Context, suffix string, def int) (int, error) {
	v, ok, err := r.get(ctx, suffix)
	if err != nil {
		return 0, err
	}
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", suffix, err)
	}
	return n, nil
}

func (r *Repo) getBool(ctx context.Context, suffix string, def bool) (bool, error) {
	v, ok, err := r.get(ctx, suffix)
	if err != nil {
		return false, err
	}
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", suffix, err)
	}
	return b, nil
}

// put writes once, then retries once with an fsynced write.
func (r *Repo) put(ctx context.Context, suffix, value string) error {
	key := r.key(suffix)
	err := r.store.Set(ctx, key, []byte(value))
	if err == nil {
		return nil
	}

	r.logger.Warn("State write failed, retrying durably", zap.String("key", key), zap.Error(err))
	if retryErr := r.store.SetSync(ctx, key, []byte(value)); retryErr != nil {
		r.countRetry("failed")
		r.logger.Error("State write lost, value may be stale until next write",
			zap.String("key", key),
			zap.Error(retryErr),
		)
		return fmt.Errorf("state SET %s: %w", suffix, errors.Join(err, retryErr))
	}
	r.countRetry("recovered")
	return nil
}

func (r *Repo) countRetry(result string) {
	if r.retries != nil {
		r.retries.WithLabelValues(result).Inc()
	}
}
