package chi

import (
	"time"

	domgrant "github.com/kailas-cloud/kidlock/internal/domain/grant"
	adminuc "github.com/kailas-cloud/kidlock/internal/usecase/admin"
	"github.com/kailas-cloud/kidlock/internal/usecase/budget"
)

// ErrorCode is a machine-readable error kind.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeNotFound            ErrorCode = "not_found"
	CodeAlreadyUsed         ErrorCode = "code_already_used"
	CodePermissionsRequired ErrorCode = "permissions_required"
	CodeAgentUnavailable    ErrorCode = "agent_unavailable"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// StatusResponse is today's allowance.
type StatusResponse struct {
	DailyLimitMinutes int       `json:"daily_limit_minutes"`
	AddedMinutes      int       `json:"added_minutes"`
	UsedMinutes       int       `json:"used_minutes"`
	RemainingMinutes  int       `json:"remaining_minutes"`
	HasPermission     bool      `json:"has_permission"`
	ResetsAt          time.Time `json:"resets_at"`
}

// RedeemRequest carries a grant code or the admin PIN.
type RedeemRequest struct {
	Code string `json:"code"`
}

// RedeemResponse tells a grant from an admin entry.
type RedeemResponse struct {
	Kind    string `json:"kind"`
	Minutes int    `json:"minutes"`
}

// LimitRequest sets the daily limit.
type LimitRequest struct {
	Minutes *int `json:"minutes"`
}

// GenerateCodesRequest asks for a fresh batch of codes.
type GenerateCodesRequest struct {
	Count          int  `json:"count"`
	MinutesPerCode *int `json:"minutes_per_code"` // default 30
}

// CodeResponse is one grant code.
type CodeResponse struct {
	Value   string     `json:"value"`
	Minutes int        `json:"minutes"`
	Used    bool       `json:"used"`
	UsedAt  *time.Time `json:"used_at,omitempty"`
}

// CodeListResponse wraps a list of codes.
type CodeListResponse struct {
	Items []CodeResponse `json:"items"`
}

// PinRequest changes the admin PIN.
type PinRequest struct {
	Pin string `json:"pin"`
}

// ToggleRequest flips a device flag.
type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// SettingsResponse is the persisted configuration.
type SettingsResponse struct {
	DailyLimitMinutes int  `json:"daily_limit_minutes"`
	AutostartEnabled  bool `json:"autostart_enabled"`
	BlockingEnabled   bool `json:"blocking_enabled"`
}

// PermissionsResponse reports host permissions.
type PermissionsResponse struct {
	UsageAccess       bool `json:"usage_access"`
	Monitoring        bool `json:"monitoring"`
	CanEnableBlocking bool `json:"can_enable_blocking"`
	BlockingEnabled   bool `json:"blocking_enabled"`
}

// ForegroundRequest reports a foreground change from the agent.
type ForegroundRequest struct {
	Package string `json:"package"`
}

// UsageReportRequest is the agent's usage statistics snapshot.
type UsageReportRequest struct {
	UsagePermission   bool   `json:"usage_permission"`
	MonitoringEnabled bool   `json:"monitoring_enabled"`
	ForegroundMillis  int64  `json:"foreground_millis"`
	RecentPackage     string `json:"recent_package"`
}

// HealthResponse is the aggregated health report.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

const defaultMinutesPerCode = 30

func statusToResponse(st budget.Status) StatusResponse {
	return StatusResponse{
		DailyLimitMinutes: st.DailyLimitMinutes,
		AddedMinutes:      st.AddedMinutes,
		UsedMinutes:       st.UsedMinutes,
		RemainingMinutes:  st.RemainingMinutes,
		HasPermission:     st.HasPermission,
		ResetsAt:          st.ResetsAt,
	}
}

func codeToResponse(c domgrant.Code) CodeResponse {
	resp := CodeResponse{Value: c.Value(), Minutes: c.Minutes(), Used: c.IsUsed()}
	if c.IsUsed() && !c.UsedAt().IsZero() {
		at := c.UsedAt()
		resp.UsedAt = &at
	}
	return resp
}

func codesToResponse(codes []domgrant.Code) CodeListResponse {
	items := make([]CodeResponse, len(codes))
	for i, c := range codes {
		items[i] = codeToResponse(c)
	}
	return CodeListResponse{Items: items}
}

func permissionsToResponse(p adminuc.Permissions) PermissionsResponse {
	return PermissionsResponse{
		UsageAccess:       p.UsageAccess,
		Monitoring:        p.Monitoring,
		CanEnableBlocking: p.CanEnableBlocking,
		BlockingEnabled:   p.BlockingEnabled,
	}
}
