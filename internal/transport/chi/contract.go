package chi

import (
	"context"

	domgrant "github.com/kailas-cloud/kidlock/internal/domain/grant"
	"github.com/kailas-cloud/kidlock/internal/host/bridge"
	adminuc "github.com/kailas-cloud/kidlock/internal/usecase/admin"
	"github.com/kailas-cloud/kidlock/internal/usecase/budget"
	healthuc "github.com/kailas-cloud/kidlock/internal/usecase/health"
)

// AdminService is the child screen and admin surface.
type AdminService interface {
	Status(ctx context.Context) budget.Status
	RedeemCodeOrPin(ctx context.Context, input string) (adminuc.Redemption, error)
	VerifyPin(ctx context.Context, pin string) bool
	SetDailyLimit(ctx context.Context, minutes int) error
	GenerateCodes(ctx context.Context, count, minutesPerCode int) ([]domgrant.Code, error)
	ListCodes(ctx context.Context) ([]domgrant.Code, error)
	DeleteCode(ctx context.Context, value string) error
	ChangePin(ctx context.Context, pin string) error
	Unlock(ctx context.Context) (budget.Status, error)
	Settings(ctx context.Context) (adminuc.Settings, error)
	SetAutostart(ctx context.Context, enabled bool) error
	SetBlocking(ctx context.Context, enabled bool) error
	Permissions(ctx context.Context) (adminuc.Permissions, error)
	RequestUsagePermission(ctx context.Context) error
}

// HealthService aggregates component checks.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// HostBridge receives agent reports and streams commands back.
type HostBridge interface {
	ReportForeground(pkg string)
	ReportUsage(r bridge.UsageReport)
	Subscribe() (<-chan bridge.Command, func())
}

// ForegroundSink is notified of every foreground change.
type ForegroundSink interface {
	ForegroundChanged(pkg string)
}
