package budget

import (
	"context"
	"time"

	"github.com/kailas-cloud/kidlock/internal/domain/daily"
)

// StateRepository persists the daily limit and the daily bookkeeping.
type StateRepository interface {
	DailyLimit(ctx context.Context) (int, error)
	SetDailyLimit(ctx context.Context, minutes int) error
	DailyState(ctx context.Context) (daily.State, error)
	SaveDailyState(ctx context.Context, s daily.State) error
}

// UsageSource reports cumulative foreground time of the device.
type UsageSource interface {
	HasPermission(ctx context.Context) bool
	RequestPermission(ctx context.Context) error
	ForegroundMillis(ctx context.Context, start, end time.Time) (int64, error)
}
