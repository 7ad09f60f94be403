package main

import (
	"net/http"
	"slices"
	"strings"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/logger"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/policy"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	routerCfg *policy.RouterConfig
	metrics   *metrics.Metrics
	origins   []string
	handler   http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(routerCfg *policy.RouterConfig, m *metrics.Metrics, corsOrigins []string) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
		metrics:   m,
		origins:   corsOrigins,
	}
	app.setupRoutes()
	app.handler = logger.Recover(
		logger.Middleware(
			m.Middleware(
				app.cors(
					auth.Middleware(routerCfg.AuthService.VerifyToken)(app.mux)))))
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	sys := a.routerCfg.System
	ah := a.routerCfg.Auth
	ws := a.routerCfg.WS

	a.mux.HandleFunc("GET /{$}", sys.Root)
	a.mux.HandleFunc("GET /health", sys.Health)
	a.mux.HandleFunc("GET /healthz", sys.Healthz)
	if a.metrics != nil {
		a.mux.Handle("GET /metrics", a.metrics.Handler())
	}

	a.mux.HandleFunc("POST /api/auth/register", ah.Register)
	a.mux.HandleFunc("POST /api/auth/verify-email", ah.VerifyEmail)
	a.mux.HandleFunc("POST /api/auth/resend-otp", ah.ResendOTP)
	a.mux.HandleFunc("POST /api/auth/login", ah.Login)

	a.mux.HandleFunc("GET /ws/{token}", ws.Serve)
	a.mux.HandleFunc("GET /ws", ws.Serve)

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated routes (require bearer token)
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /api/auth/me", a.requireAuth(http.HandlerFunc(ah.Me)))
	a.mux.Handle("POST /api/auth/logout", a.requireAuth(http.HandlerFunc(ah.Logout)))

	uh := a.routerCfg.Users
	a.mux.Handle("GET /api/users",
		a.requireAuth(a.requirePermission(policy.ResourceUser, gate.ActionList)(http.HandlerFunc(uh.List))))
	a.mux.Handle("GET /api/users/online",
		a.requireAuth(a.requirePermission(policy.ResourceUser, gate.ActionList)(http.HandlerFunc(uh.Online))))
	// Self-or-admin is decided by the user policy inside the handler.
	a.mux.Handle("PATCH /api/users/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceUser, gate.ActionUpdate)(http.HandlerFunc(uh.Update))))

	// ─────────────────────────────────────────────────────────────────────────
	// CRM resources (require auth + specific permissions)
	// ─────────────────────────────────────────────────────────────────────────
	acc := a.routerCfg.Accounts
	a.mux.Handle("GET /api/accounts",
		a.requireAuth(a.requirePermission(policy.ResourceAccount, gate.ActionList)(http.HandlerFunc(acc.List))))
	a.mux.Handle("POST /api/accounts",
		a.requireAuth(a.requirePermission(policy.ResourceAccount, gate.ActionCreate)(http.HandlerFunc(acc.Create))))
	a.mux.Handle("GET /api/accounts/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceAccount, gate.ActionView)(http.HandlerFunc(acc.Get))))
	a.mux.Handle("PATCH /api/accounts/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceAccount, gate.ActionUpdate)(http.HandlerFunc(acc.Update))))
	a.mux.Handle("DELETE /api/accounts/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceAccount, gate.ActionDelete)(http.HandlerFunc(acc.Delete))))

	ch := a.routerCfg.Contacts
	a.mux.Handle("GET /api/contacts",
		a.requireAuth(a.requirePermission(policy.ResourceContact, gate.ActionList)(http.HandlerFunc(ch.List))))
	a.mux.Handle("POST /api/contacts",
		a.requireAuth(a.requirePermission(policy.ResourceContact, gate.ActionCreate)(http.HandlerFunc(ch.Create))))
	a.mux.Handle("GET /api/contacts/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceContact, gate.ActionView)(http.HandlerFunc(ch.Get))))
	a.mux.Handle("PATCH /api/contacts/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceContact, gate.ActionUpdate)(http.HandlerFunc(ch.Update))))
	a.mux.Handle("DELETE /api/contacts/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceContact, gate.ActionDelete)(http.HandlerFunc(ch.Delete))))

	lh := a.routerCfg.Leads
	a.mux.Handle("GET /api/leads",
		a.requireAuth(a.requirePermission(policy.ResourceLead, gate.ActionList)(http.HandlerFunc(lh.List))))
	a.mux.Handle("POST /api/leads",
		a.requireAuth(a.requirePermission(policy.ResourceLead, gate.ActionCreate)(http.HandlerFunc(lh.Create))))
	a.mux.Handle("GET /api/leads/stats/overview",
		a.requireAuth(a.requirePermission(policy.ResourceLead, gate.ActionList)(http.HandlerFunc(lh.Stats))))
	a.mux.Handle("GET /api/leads/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceLead, gate.ActionView)(http.HandlerFunc(lh.Get))))
	a.mux.Handle("PATCH /api/leads/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceLead, gate.ActionUpdate)(http.HandlerFunc(lh.Update))))
	a.mux.Handle("DELETE /api/leads/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceLead, gate.ActionDelete)(http.HandlerFunc(lh.Delete))))
	a.mux.Handle("POST /api/leads/{id}/convert",
		a.requireAuth(a.requirePermission(policy.ResourceLead, gate.ActionConvert)(http.HandlerFunc(lh.Convert))))

	dh := a.routerCfg.Deals
	a.mux.Handle("GET /api/deals",
		a.requireAuth(a.requirePermission(policy.ResourceDeal, gate.ActionList)(http.HandlerFunc(dh.List))))
	a.mux.Handle("POST /api/deals",
		a.requireAuth(a.requirePermission(policy.ResourceDeal, gate.ActionCreate)(http.HandlerFunc(dh.Create))))
	a.mux.Handle("GET /api/deals/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceDeal, gate.ActionView)(http.HandlerFunc(dh.Get))))
	a.mux.Handle("PATCH /api/deals/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceDeal, gate.ActionUpdate)(http.HandlerFunc(dh.Update))))
	a.mux.Handle("DELETE /api/deals/{id}",
		a.requireAuth(a.requirePermission(policy.ResourceDeal, gate.ActionDelete)(http.HandlerFunc(dh.Delete))))

	act := a.routerCfg.Activities
	a.mux.Handle("GET /api/activities",
		a.requireAuth(a.requirePermission(policy.ResourceActivity, gate.ActionList)(http.HandlerFunc(act.List))))
	a.mux.Handle("POST /api/activities",
		a.requireAuth(a.requirePermission(policy.ResourceActivity, gate.ActionCreate)(http.HandlerFunc(act.Create))))

	nh := a.routerCfg.Notifications
	a.mux.Handle("GET /api/notifications",
		a.requireAuth(a.requirePermission(policy.ResourceNotification, gate.ActionList)(http.HandlerFunc(nh.List))))
	a.mux.Handle("GET /api/notifications/unread-count",
		a.requireAuth(a.requirePermission(policy.ResourceNotification, gate.ActionList)(http.HandlerFunc(nh.UnreadCount))))
	a.mux.Handle("PATCH /api/notifications/{id}/read",
		a.requireAuth(a.requirePermission(policy.ResourceNotification, gate.ActionUpdate)(http.HandlerFunc(nh.MarkRead))))
	a.mux.Handle("POST /api/notifications/read-all",
		a.requireAuth(a.requirePermission(policy.ResourceNotification, gate.ActionUpdate)(http.HandlerFunc(nh.MarkAllRead))))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /api/audit-logs",
		a.requireAdmin(http.HandlerFunc(a.routerCfg.AuditLogs.List)))
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// requireAuth wraps a handler to require authentication.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return auth.RequireAuth(next)
}

// requireAdmin wraps a handler to require the superadmin permission.
func (a *App) requireAdmin(next http.Handler) http.Handler {
	return a.routerCfg.AuthGate.RequireAdmin()(next)
}

// requirePermission wraps a handler to require specific resource permission.
func (a *App) requirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return a.routerCfg.AuthGate.RequirePermission(resourceType, action)
}

// cors answers preflight requests and sets CORS headers for allowed origins.
func (a *App) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && a.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) originAllowed(origin string) bool {
	return slices.ContainsFunc(a.origins, func(o string) bool {
		o = strings.TrimSpace(o)
		return o == "*" || strings.EqualFold(o, origin)
	})
}
