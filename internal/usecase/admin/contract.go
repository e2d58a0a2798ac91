package admin

import (
	"context"

	"github.com/kailas-cloud/kidlock/internal/domain/grant"
	"github.com/kailas-cloud/kidlock/internal/usecase/budget"
)

// Engine is the subset of the budget engine the admin surface drives.
type Engine interface {
	SetDailyLimit(ctx context.Context, minutes int) error
	DailyLimit(ctx context.Context) (int, error)
	EnsureDailyRollover(ctx context.Context) error
	ResetToday(ctx context.Context) error
	Status(ctx context.Context) budget.Status
}

// Registry manages grant codes and the admin PIN.
type Registry interface {
	Generate(ctx context.Context, count, minutesPerCode int) ([]grant.Code, error)
	Consume(ctx context.Context, value string) (int, error)
	Delete(ctx context.Context, value string) error
	List(ctx context.Context) ([]grant.Code, error)
	SetPin(ctx context.Context, pin string) error
	VerifyPin(ctx context.Context, candidate string) bool
}

// DeviceRepository persists the device flags.
type DeviceRepository interface {
	AutostartEnabled(ctx context.Context) (bool, error)
	SetAutostartEnabled(ctx context.Context, enabled bool) error
	BlockingEnabled(ctx context.Context) (bool, error)
	SetBlockingEnabled(ctx context.Context, enabled bool) error
}

// PermissionSource reports and requests usage statistics access.
type PermissionSource interface {
	HasPermission(ctx context.Context) bool
	RequestPermission(ctx context.Context) error
}

// MonitoringChecker reports whether the host's foreground monitoring service is enabled.
type MonitoringChecker interface {
	MonitoringEnabled(ctx context.Context) bool
}
