package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// AgentChecker checks that the device agent is connected.
type AgentChecker interface {
	HealthCheck(ctx context.Context) error
}
