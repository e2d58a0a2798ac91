package enforce

import "context"

// Budget answers whether any allowance is left today.
type Budget interface {
	HasRemainingTime(ctx context.Context) bool
}

// Flags exposes the persisted blocking switch.
type Flags interface {
	BlockingEnabled(ctx context.Context) (bool, error)
}

// Host performs evictions on the device.
type Host interface {
	MonitoringEnabled(ctx context.Context) bool
	GoHome(ctx context.Context) error
	KillBackgroundProcess(ctx context.Context, pkg string) error
}

// Probe reports the current foreground package, or false when it cannot tell.
type Probe func(ctx context.Context) (string, bool)
