package bridge

import "time"

// CommandType names an action the device agent performs.
type CommandType string

const (
	// CommandGoHome brings the launcher to the foreground.
	CommandGoHome CommandType = "go_home"
	// CommandKillBackgroundProcess asks the agent to stop a package's background process.
	CommandKillBackgroundProcess CommandType = "kill_background_process"
	// CommandRequestUsagePermission opens the usage access settings screen.
	CommandRequestUsagePermission CommandType = "request_usage_permission"
	// CommandNotifyLimitReached shows the "time is up" notification.
	CommandNotifyLimitReached CommandType = "notify_limit_reached"
	// CommandLaunchMain opens the child screen.
	CommandLaunchMain CommandType = "launch_main"
)

// Command is one entry on the agent's command stream.
type Command struct {
	ID      string      `json:"id"`
	Type    CommandType `json:"type"`
	Package string      `json:"package,omitempty"`
	At      time.Time   `json:"at"`
}

// UsageReport is the agent's periodic usage statistics snapshot.
type UsageReport struct {
	UsagePermission   bool
	MonitoringEnabled bool
	// ForegroundMillis is cumulative foreground time since the agent's local midnight.
	ForegroundMillis int64
	// RecentPackage is the package of the latest foreground usage event, if any.
	RecentPackage string
}
