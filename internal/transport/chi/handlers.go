package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/host/bridge"
	logpkg "github.com/kailas-cloud/kidlock/internal/logger"
)

// GetStatus handles GET /v1/status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusToResponse(s.admin.Status(r.Context())))
}

// Redeem handles POST /v1/redeem.
func (s *Server) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !decode(w, r, &req) {
		return
	}

	red, err := s.admin.RedeemCodeOrPin(r.Context(), req.Code)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RedeemResponse{Kind: string(red.Kind), Minutes: red.Minutes})
}

// GetSettings handles GET /v1/admin/settings.
func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.admin.Settings(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{
		DailyLimitMinutes: st.DailyLimitMinutes,
		AutostartEnabled:  st.AutostartEnabled,
		BlockingEnabled:   st.BlockingEnabled,
	})
}

// SetLimit handles PUT /v1/admin/limit.
func (s *Server) SetLimit(w http.ResponseWriter, r *http.Request) {
	var req LimitRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Minutes == nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "minutes is required")
		return
	}

	if err := s.admin.SetDailyLimit(r.Context(), *req.Minutes); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusToResponse(s.admin.Status(r.Context())))
}

// GenerateCodes handles POST /v1/admin/codes.
func (s *Server) GenerateCodes(w http.ResponseWriter, r *http.Request) {
	var req GenerateCodesRequest
	if !decode(w, r, &req) {
		return
	}
	minutes := defaultMinutesPerCode
	if req.MinutesPerCode != nil {
		minutes = *req.MinutesPerCode
	}

	codes, err := s.admin.GenerateCodes(r.Context(), req.Count, minutes)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, codesToResponse(codes))
}

// ListCodes handles GET /v1/admin/codes.
func (s *Server) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := s.admin.ListCodes(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codesToResponse(codes))
}

// DeleteCode handles DELETE /v1/admin/codes/{value}.
func (s *Server) DeleteCode(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteCode(r.Context(), chi.URLParam(r, "value")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePin handles PUT /v1/admin/pin.
func (s *Server) ChangePin(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.admin.ChangePin(r.Context(), req.Pin); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST /v1/admin/unlock.
func (s *Server) Unlock(w http.ResponseWriter, r *http.Request) {
	st, err := s.admin.Unlock(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusToResponse(st))
}

// SetAutostart handles PUT /v1/admin/autostart.
func (s *Server) SetAutostart(w http.ResponseWriter, r *http.Request) {
	enabled, ok := decodeToggle(w, r)
	if !ok {
		return
	}
	if err := s.admin.SetAutostart(r.Context(), enabled); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetBlocking handles PUT /v1/admin/blocking.
func (s *Server) SetBlocking(w http.ResponseWriter, r *http.Request) {
	enabled, ok := decodeToggle(w, r)
	if !ok {
		return
	}
	if err := s.admin.SetBlocking(r.Context(), enabled); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPermissions handles GET /v1/admin/permissions.
func (s *Server) GetPermissions(w http.ResponseWriter, r *http.Request) {
	p, err := s.admin.Permissions(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, permissionsToResponse(p))
}

// RequestUsagePermission handles POST /v1/admin/permissions/usage.
func (s *Server) RequestUsagePermission(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.RequestUsagePermission(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ReportForeground handles POST /v1/host/foreground.
func (s *Server) ReportForeground(w http.ResponseWriter, r *http.Request) {
	var req ForegroundRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Package == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "package is required")
		return
	}

	s.bridge.ReportForeground(req.Package)
	s.foreground.ForegroundChanged(req.Package)
	w.WriteHeader(http.StatusAccepted)
}

// ReportUsage handles POST /v1/host/report.
func (s *Server) ReportUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageReportRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ForegroundMillis < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "foreground_millis must be non-negative")
		return
	}

	s.bridge.ReportUsage(bridge.UsageReport{
		UsagePermission:   req.UsagePermission,
		MonitoringEnabled: req.MonitoringEnabled,
		ForegroundMillis:  req.ForegroundMillis,
		RecentPackage:     req.RecentPackage,
	})
	w.WriteHeader(http.StatusAccepted)
}

// StreamCommands handles GET /v1/host/commands. Commands are written as NDJSON until the
// agent disconnects.
func (s *Server) StreamCommands(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "streaming unsupported")
		return
	}

	cmds, stop := s.bridge.Subscribe()
	defer stop()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logpkg.FromContext(r.Context())
	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case cmd, open := <-cmds:
			if !open {
				return
			}
			if err := enc.Encode(cmd); err != nil {
				log.Warn("Command stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func decodeToggle(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req ToggleRequest
	if !decode(w, r, &req) {
		return false, false
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "enabled is required")
		return false, false
	}
	return *req.Enabled, true
}
