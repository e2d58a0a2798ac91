// Package settings holds the parent-controlled budget settings.
package settings

import "fmt"

// PINLength is the number of digits in an admin PIN.
const PINLength = 6

// Defaults used when nothing has been persisted yet.
const (
	DefaultPIN               = "000000"
	DefaultDailyLimitMinutes = 60
)

// ValidatePIN requires exactly PINLength ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return fmt.Errorf("pin must be %d digits, got %d characters", PINLength, len(pin))
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return fmt.Errorf("pin must contain digits only")
		}
	}
	return nil
}

// ValidateDailyLimit rejects negative limits.
func ValidateDailyLimit(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("daily limit must be non-negative, got %d", minutes)
	}
	return nil
}
