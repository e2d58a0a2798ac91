package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/domain"
	"github.com/kailas-cloud/kidlock/internal/domain/grant"
	"github.com/kailas-cloud/kidlock/internal/metrics"
	"github.com/kailas-cloud/kidlock/internal/usecase/budget"
)

// RedemptionKind tells a grant redemption from an admin PIN entry.
type RedemptionKind string

const (
	// RedemptionGrant means a grant code was consumed.
	RedemptionGrant RedemptionKind = "grant"
	// RedemptionAdmin means the input matched the admin PIN.
	RedemptionAdmin RedemptionKind = "admin"
)

// Redemption is the outcome of RedeemCodeOrPin.
type Redemption struct {
	Kind    RedemptionKind
	Minutes int
}

// Permissions describes what the host has granted.
type Permissions struct {
	UsageAccess       bool
	Monitoring        bool
	CanEnableBlocking bool
	BlockingEnabled   bool
}

// Settings is the admin view of the persisted configuration.
type Settings struct {
	DailyLimitMinutes int
	AutostartEnabled  bool
	BlockingEnabled   bool
}

// Service implements the parent-facing actions and the child's redeem entry.
type Service struct {
	engine   Engine
	registry Registry
	device   DeviceRepository
	perms    PermissionSource
	monitor  MonitoringChecker
	logger   *zap.Logger
}

// New creates an admin service.
func New(
	engine Engine, registry Registry, device DeviceRepository,
	perms PermissionSource, monitor MonitoringChecker, logger *zap.Logger,
) *Service {
	return &Service{
		engine:   engine,
		registry: registry,
		device:   device,
		perms:    perms,
		monitor:  monitor,
		logger:   logger,
	}
}

// SetDailyLimit changes the daily allowance.
func (s *Service) SetDailyLimit(ctx context.Context, minutes int) error {
	if err := s.engine.SetDailyLimit(ctx, minutes); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	s.logger.Info("Daily limit changed", zap.Int("minutes", minutes))
	return nil
}

// GenerateCodes replaces all codes with a fresh batch.
func (s *Service) GenerateCodes(ctx context.Context, count, minutesPerCode int) ([]grant.Code, error) {
	codes, err := s.registry.Generate(ctx, count, minutesPerCode)
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	return codes, nil
}

// ListCodes returns every stored code.
func (s *Service) ListCodes(ctx context.Context) ([]grant.Code, error) {
	codes, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	return codes, nil
}

// DeleteCode removes one code. Unknown codes are ignored.
func (s *Service) DeleteCode(ctx context.Context, value string) error {
	if err := s.registry.Delete(ctx, normalize(value)); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	return nil
}

// RedeemCodeOrPin consumes a grant code, or recognizes the admin PIN when no code matches.
func (s *Service) RedeemCodeOrPin(ctx context.Context, input string) (Redemption, error) {
	value := normalize(input)
	if len(value) != grant.CodeLength {
		metrics.RedemptionsTotal.WithLabelValues("invalid").Inc()
		return Redemption{}, fmt.Errorf("redeem: %w", domain.NewInvalidInput("code",
			fmt.Sprintf("must be %d characters", grant.CodeLength)))
	}

	if err := s.engine.EnsureDailyRollover(ctx); err != nil {
		s.logger.Warn("Rollover before redeem failed", zap.Error(err))
	}

	minutes, err := s.registry.Consume(ctx, value)
	switch {
	case err == nil:
		metrics.RedemptionsTotal.WithLabelValues("grant").Inc()
		return Redemption{Kind: RedemptionGrant, Minutes: minutes}, nil
	case errors.Is(err, domain.ErrAlreadyUsed):
		metrics.RedemptionsTotal.WithLabelValues("already_used").Inc()
		return Redemption{}, fmt.Errorf("redeem: %w", err)
	case !errors.Is(err, domain.ErrNotFound):
		return Redemption{}, fmt.Errorf("redeem: %w", err)
	}

	if s.registry.VerifyPin(ctx, value) {
		metrics.RedemptionsTotal.WithLabelValues("admin").Inc()
		return Redemption{Kind: RedemptionAdmin}, nil
	}

	metrics.RedemptionsTotal.WithLabelValues("not_found").Inc()
	return Redemption{}, fmt.Errorf("redeem: %w", domain.ErrNotFound)
}

// VerifyPin reports whether pin unlocks the admin surface.
func (s *Service) VerifyPin(ctx context.Context, pin string) bool {
	return s.registry.VerifyPin(ctx, pin)
}

// ChangePin stores a new PIN.
func (s *Service) ChangePin(ctx context.Context, pin string) error {
	if err := s.registry.SetPin(ctx, pin); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	return nil
}

// Unlock restores the full daily limit for the rest of today.
func (s *Service) Unlock(ctx context.Context) (budget.Status, error) {
	if err := s.engine.ResetToday(ctx); err != nil {
		return budget.Status{}, fmt.Errorf("admin: %w", err)
	}
	return s.engine.Status(ctx), nil
}

// Status returns today's allowance.
func (s *Service) Status(ctx context.Context) budget.Status {
	return s.engine.Status(ctx)
}

// Settings returns the persisted configuration.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	limit, err := s.engine.DailyLimit(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("admin: %w", err)
	}
	autostart, err := s.device.AutostartEnabled(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("admin: %w", err)
	}
	blocking, err := s.device.BlockingEnabled(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("admin: %w", err)
	}
	return Settings{DailyLimitMinutes: limit, AutostartEnabled: autostart, BlockingEnabled: blocking}, nil
}

// SetAutostart toggles launching the child screen on boot.
func (s *Service) SetAutostart(ctx context.Context, enabled bool) error {
	if err := s.device.SetAutostartEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	s.logger.Info("Autostart changed", zap.Bool("enabled", enabled))
	return nil
}

// SetBlocking toggles eviction. Enabling requires usage access and the monitoring service.
func (s *Service) SetBlocking(ctx context.Context, enabled bool) error {
	if enabled && !s.permissionsGranted(ctx) {
		return fmt.Errorf("admin: enable blocking: %w", domain.ErrPermissionsRequired)
	}
	if err := s.device.SetBlockingEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	s.logger.Info("Blocking changed", zap.Bool("enabled", enabled))
	return nil
}

// Permissions reports the host permissions. Blocking is switched off when they are
// no longer all granted.
func (s *Service) Permissions(ctx context.Context) (Permissions, error) {
	p := Permissions{
		UsageAccess: s.perms.HasPermission(ctx),
		Monitoring:  s.monitor.MonitoringEnabled(ctx),
	}
	p.CanEnableBlocking = p.UsageAccess && p.Monitoring

	blocking, err := s.device.BlockingEnabled(ctx)
	if err != nil {
		return Permissions{}, fmt.Errorf("admin: %w", err)
	}
	if blocking && !p.CanEnableBlocking {
		if err := s.device.SetBlockingEnabled(ctx, false); err != nil {
			return Permissions{}, fmt.Errorf("admin: %w", err)
		}
		s.logger.Warn("Blocking disabled, host permissions missing",
			zap.Bool("usage_access", p.UsageAccess),
			zap.Bool("monitoring", p.Monitoring),
		)
		blocking = false
	}
	p.BlockingEnabled = blocking
	return p, nil
}

// RequestUsagePermission asks the host to show the usage access prompt.
func (s *Service) RequestUsagePermission(ctx context.Context) error {
	if err := s.perms.RequestPermission(ctx); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	return nil
}

func (s *Service) permissionsGranted(ctx context.Context) bool {
	return s.perms.HasPermission(ctx) && s.monitor.MonitoringEnabled(ctx)
}

func normalize(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}
