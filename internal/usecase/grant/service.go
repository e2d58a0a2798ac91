package grant

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/clock"
	"github.com/kailas-cloud/kidlock/internal/domain"
	domgrant "github.com/kailas-cloud/kidlock/internal/domain/grant"
	"github.com/kailas-cloud/kidlock/internal/domain/settings"
)

// Registry generates, consumes and deletes grant codes and guards the admin PIN.
// Generate, Consume and Delete are serialized by mu, which is always taken before
// the engine's lock.
type Registry struct {
	mu      sync.Mutex
	repo    Repository
	applier GrantApplier
	clock   clock.Clock
	random  io.Reader
	logger  *zap.Logger
}

// New creates a registry drawing code values from crypto/rand.
func New(repo Repository, applier GrantApplier, clk clock.Clock, logger *zap.Logger) *Registry {
	return &Registry{
		repo:    repo,
		applier: applier,
		clock:   clk,
		random:  rand.Reader,
		logger:  logger,
	}
}

// Generate replaces every stored code with count fresh codes worth minutesPerCode each.
// Arguments are validated before anything is touched.
func (r *Registry) Generate(ctx context.Context, count, minutesPerCode int) ([]domgrant.Code, error) {
	if count < domgrant.MinBatch || count > domgrant.MaxBatch {
		return nil, fmt.Errorf("generate codes: %w", domain.NewInvalidInput("count",
			fmt.Sprintf("must be between %d and %d", domgrant.MinBatch, domgrant.MaxBatch)))
	}
	if minutesPerCode < 0 {
		return nil, fmt.Errorf("generate codes: %w", domain.NewInvalidInput("minutes", "must be non-negative"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, count)
	codes := make([]domgrant.Code, 0, count)
	for len(codes) < count {
		value, err := r.drawValue()
		if err != nil {
			return nil, fmt.Errorf("generate codes: %w", err)
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}

		code, err := domgrant.New(value, minutesPerCode)
		if err != nil {
			return nil, fmt.Errorf("generate codes: %w", err)
		}
		codes = append(codes, code)
	}

	if err := r.repo.SaveCodes(ctx, codes); err != nil {
		r.logger.Warn("Generated codes not persisted", zap.Int("count", count), zap.Error(err))
	}
	r.logger.Info("Grant codes generated", zap.Int("count", count), zap.Int("minutes", minutesPerCode))
	return codes, nil
}

// Consume credits the code's minutes and marks it used. Returns the granted minutes.
func (r *Registry) Consume(ctx context.Context, value string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes, err := r.repo.Codes(ctx)
	if err != nil {
		return 0, fmt.Errorf("consume code: %w", err)
	}

	idx := indexOf(codes, value)
	if idx < 0 {
		return 0, fmt.Errorf("consume code: %w", domain.ErrNotFound)
	}
	if codes[idx].IsUsed() {
		return 0, fmt.Errorf("consume code: %w", domain.ErrAlreadyUsed)
	}

	// The grant is credited before the code is marked used, so a failed grant leaves
	// the code redeemable.
	if m := codes[idx].Minutes(); m > 0 {
		if err := r.applier.ApplyGrant(ctx, m); err != nil {
			return 0, fmt.Errorf("consume code: %w", err)
		}
	}

	code := codes[idx].MarkUsed(r.clock.Now())
	codes[idx] = code
	if err := r.repo.SaveCodes(ctx, codes); err != nil {
		r.logger.Warn("Consumed code not persisted", zap.String("code", value), zap.Error(err))
	}

	r.logger.Info("Grant code consumed", zap.String("code", value), zap.Int("minutes", code.Minutes()))
	return code.Minutes(), nil
}

// Delete removes a code. Unknown values are a no-op.
func (r *Registry) Delete(ctx context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes, err := r.repo.Codes(ctx)
	if err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	idx := indexOf(codes, value)
	if idx < 0 {
		return nil
	}

	codes = append(codes[:idx], codes[idx+1:]...)
	if err := r.repo.SaveCodes(ctx, codes); err != nil {
		r.logger.Warn("Code deletion not persisted", zap.String("code", value), zap.Error(err))
	}
	return nil
}

// List returns every stored code, used ones included.
func (r *Registry) List(ctx context.Context) ([]domgrant.Code, error) {
	codes, err := r.repo.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return codes, nil
}

// SetPin stores a new admin PIN.
func (r *Registry) SetPin(ctx context.Context, pin string) error {
	if err := settings.ValidatePIN(pin); err != nil {
		return fmt.Errorf("set pin: %w: %w", domain.ErrInvalidInput, err)
	}
	if err := r.repo.SetPIN(ctx, pin); err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	r.logger.Info("Admin PIN changed")
	return nil
}

// VerifyPin compares candidate with the stored PIN. An unreadable PIN never matches.
func (r *Registry) VerifyPin(ctx context.Context, candidate string) bool {
	pin, err := r.repo.PIN(ctx)
	if err != nil {
		r.logger.Warn("PIN unavailable", zap.Error(err))
		return false
	}
	return candidate == pin
}

func (r *Registry) drawValue() (string, error) {
	alphabet := big.NewInt(int64(len(domgrant.Alphabet)))
	buf := make([]byte, domgrant.CodeLength)
	for i := range buf {
		n, err := rand.Int(r.random, alphabet)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = domgrant.Alphabet[n.Int64()]
	}
	return string(buf), nil
}

func indexOf(codes []domgrant.Code, value string) int {
	for i, c := range codes {
		if c.Value() == value {
			return i
		}
	}
	return -1
}
