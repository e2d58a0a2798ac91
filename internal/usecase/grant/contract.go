package grant

import (
	"context"

	domgrant "github.com/kailas-cloud/kidlock/internal/domain/grant"
)

// Repository persists grant codes and the admin PIN.
type Repository interface {
	Codes(ctx context.Context) ([]domgrant.Code, error)
	SaveCodes(ctx context.Context, codes []domgrant.Code) error
	PIN(ctx context.Context) (string, error)
	SetPIN(ctx context.Context, pin string) error
}

// GrantApplier credits redeemed minutes to today's allowance.
type GrantApplier interface {
	ApplyGrant(ctx context.Context, minutes int) error
}
