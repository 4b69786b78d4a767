package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryan0dhankhar/doorgate/internal/observability/metrics"
	"github.com/aryan0dhankhar/doorgate/internal/security"
	"github.com/aryan0dhankhar/doorgate/internal/security/audit"
	"github.com/aryan0dhankhar/doorgate/internal/security/auth"
	"github.com/aryan0dhankhar/doorgate/internal/security/middleware"
	"github.com/aryan0dhankhar/doorgate/internal/security/ratelimit"
)

// RouterDeps are the handlers and security components the router wires
type RouterDeps struct {
	Access *AccessHandler
	Health *HealthHandler
	Auth   *AuthHandler
	Admin  *AdminHandler
	Logs   *LogsHandler

	Tokens       *auth.TokenManager
	Authz        *security.AuthorizationService
	Audit        *audit.Logger
	LoginLimiter *ratelimit.Limiter
	CORSOrigins  []string
	Logger       *slog.Logger
}

// NewRouter builds the HTTP surface: the reader-facing decision and health
// endpoints, metrics, and the token-protected admin API.
func NewRouter(d RouterDeps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	jsonOnly := middleware.ValidateJSONContentType(log)
	requireToken := middleware.JWTMiddleware(d.Tokens, d.Audit, log)
	sanitize := middleware.SanitizeInputs(log)
	auditAdmin := middleware.AuditMiddleware(d.Audit)

	protect := func(perm security.Permission, h http.HandlerFunc) http.Handler {
		return requireToken(middleware.RequirePermission(d.Authz, d.Audit, perm, auditAdmin(sanitize(h))))
	}

	mux := http.NewServeMux()

	// reader-facing
	mux.Handle("POST /access", jsonOnly(d.Access))
	mux.HandleFunc("GET /{$}", d.Health.Health)
	mux.HandleFunc("GET /readyz", d.Health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// admin
	mux.Handle("POST /admin/login", middleware.RateLimitMiddleware(d.LoginLimiter, log)(jsonOnly(http.HandlerFunc(d.Auth.Login))))
	mux.Handle("GET /admin/users", protect(security.PermListUsers, d.Admin.ListUsers))
	mux.Handle("GET /admin/logs", protect(security.PermViewLogs, d.Admin.ListLogs))
	mux.Handle("GET /admin/logs/export", protect(security.PermExportLogs, d.Admin.ExportLogs))
	mux.Handle("GET /admin/logs/stream", protect(security.PermViewLogs, d.Logs.ServeHTTP))
	mux.Handle("GET /admin/doors", protect(security.PermListDoors, d.Admin.ListDoors))
	mux.Handle("POST /admin/doors", jsonOnly(protect(security.PermManageDoors, d.Admin.AddDoor)))
	mux.Handle("DELETE /admin/doors/{id}", protect(security.PermManageDoors, d.Admin.DeleteDoor))
	mux.Handle("GET /admin/groups", protect(security.PermListGroups, d.Admin.ListGroups))
	mux.Handle("DELETE /admin/groups/{name}", protect(security.PermManageGroups, d.Admin.DeleteGroup))
	mux.Handle("POST /admin/sync", protect(security.PermTriggerSync, d.Admin.Sync))

	// request id -> CORS -> metrics -> mux
	return middleware.RequestID(log)(
		middleware.CORS(d.CORSOrigins)(
			metrics.HTTPMetricsMiddleware(mux),
		),
	)
}
