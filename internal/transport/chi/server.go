package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/domain"
	"github.com/kailas-cloud/kidlock/internal/host/bridge"
	logpkg "github.com/kailas-cloud/kidlock/internal/logger"
	healthuc "github.com/kailas-cloud/kidlock/internal/usecase/health"
	"github.com/kailas-cloud/kidlock/internal/version"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the child screen, admin and device agent APIs.
type Server struct {
	admin         AdminService
	health        HealthService
	bridge        HostBridge
	foreground    ForegroundSink
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	admin AdminService,
	health HealthService,
	host HostBridge,
	foreground ForegroundSink,
	logger *zap.Logger,
) *Server {
	s := &Server{
		admin:      admin,
		health:     health,
		bridge:     host,
		foreground: foreground,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		invalidInputHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyUsed, http.StatusConflict, CodeAlreadyUsed),
		sentinelHandler(domain.ErrPermissionsRequired, http.StatusPreconditionFailed, CodePermissionsRequired),
		sentinelHandler(bridge.ErrNoAgent, http.StatusServiceUnavailable, CodeAgentUnavailable),
	}
	return s
}

// Register mounts all routes on r. agentKeys guard the /v1/host routes.
func (s *Server) Register(r chi.Router, agentKeys []string) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.GetStatus)
		r.Post("/redeem", s.Redeem)

		r.Route("/admin", func(r chi.Router) {
			r.Use(surfaceLogger("admin"))
			r.Use(AdminPINMiddleware(func(req *http.Request, pin string) bool {
				return s.admin.VerifyPin(req.Context(), pin)
			}))
			r.Get("/settings", s.GetSettings)
			r.Put("/limit", s.SetLimit)
			r.Post("/codes", s.GenerateCodes)
			r.Get("/codes", s.ListCodes)
			r.Delete("/codes/{value}", s.DeleteCode)
			r.Put("/pin", s.ChangePin)
			r.Post("/unlock", s.Unlock)
			r.Put("/autostart", s.SetAutostart)
			r.Put("/blocking", s.SetBlocking)
			r.Get("/permissions", s.GetPermissions)
			r.Post("/permissions/usage", s.RequestUsagePermission)
		})

		r.Route("/host", func(r chi.Router) {
			r.Use(surfaceLogger("agent"))
			r.Use(BearerAuthMiddleware(agentKeys))
			r.Post("/foreground", s.ReportForeground)
			r.Post("/report", s.ReportUsage)
			r.Get("/commands", s.StreamCommands)
		})
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// surfaceLogger tags the request logger with the API surface.
func surfaceLogger(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logpkg.WithFields(r.Context(), zap.String("surface", name))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyUsed,
		domain.ErrPermissionsRequired,
		bridge.ErrNoAgent,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// invalidInputHandler reports the offending field when the error carries one.
func invalidInputHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	var iie *domain.InvalidInputError
	if errors.As(err, &iie) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, iie.Error())
		return true
	}
	writeError(w, http.StatusBadRequest, CodeValidationFailed, domain.ErrInvalidInput.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
