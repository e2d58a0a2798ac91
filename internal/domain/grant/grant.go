// Package grant defines single-use time-grant codes.
package grant

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CodeLength is the fixed length of every code value.
	CodeLength = 6
	// Alphabet is the set of characters a code is drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// MinBatch and MaxBatch bound a single generation request.
	MinBatch = 1
	MaxBatch = 100
)

// Code is a time-grant code (immutable value object).
type Code struct {
	value   string
	minutes int
	used    bool
	usedAt  time.Time
}

// New validates and creates an active code.
func New(value string, minutes int) (Code, error) {
	if err := ValidateValue(value); err != nil {
		return Code{}, err
	}
	if minutes < 0 {
		return Code{}, fmt.Errorf("minutes must be non-negative, got %d", minutes)
	}
	return Code{value: value, minutes: minutes}, nil
}

// Reconstruct hydrates a code from storage without validation.
func Reconstruct(value string, minutes int, used bool, usedAt time.Time) Code {
	return Code{value: value, minutes: minutes, used: used, usedAt: usedAt}
}

// ValidateValue checks length and alphabet.
func ValidateValue(value string) error {
	if len(value) != CodeLength {
		return fmt.Errorf("code must be %d characters, got %d", CodeLength, len(value))
	}
	for _, r := range value {
		if !strings.ContainsRune(Alphabet, r) {
			return fmt.Errorf("code contains invalid character %q", r)
		}
	}
	return nil
}

// Value returns the code string.
func (c Code) Value() string { return c.value }

// Minutes returns the minutes granted on redemption.
func (c Code) Minutes() int { return c.minutes }

// IsUsed reports whether the code was consumed.
func (c Code) IsUsed() bool { return c.used }

// UsedAt returns the consumption time (zero if active).
func (c Code) UsedAt() time.Time { return c.usedAt }

// MarkUsed returns the consumed copy. A used code keeps its original timestamp.
func (c Code) MarkUsed(at time.Time) Code {
	if c.used {
		return c
	}
	c.used = true
	c.usedAt = at
	return c
}
