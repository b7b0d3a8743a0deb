package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ngshijun/clinic-inventory-manager/internal/auth"
	"github.com/ngshijun/clinic-inventory-manager/internal/inventory"
	"github.com/ngshijun/clinic-inventory-manager/internal/liveness"
	"github.com/ngshijun/clinic-inventory-manager/internal/payroll"
	"github.com/ngshijun/clinic-inventory-manager/internal/platform/httpx"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
	"github.com/ngshijun/clinic-inventory-manager/internal/stockmove"
	"github.com/ngshijun/clinic-inventory-manager/internal/stockreq"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	Inventory      *inventory.Handler
	Movements      *stockmove.Handler
	Requests       *stockreq.Handler
	Payroll        *payroll.Handler
	Monitor        *liveness.Monitor
}

type connectionStatus struct {
	Healthy       bool      `json:"healthy"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(auth.Require)

		r.Route("/inventory", params.Inventory.MountRoutes)
		r.Route("/movements", params.Movements.MountRoutes)
		r.Route("/requests", params.Requests.MountRoutes)

		r.Route("/payroll", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			params.Payroll.MountRoutes(r)
		})

		if params.Monitor != nil {
			r.Get("/connection", func(w http.ResponseWriter, r *http.Request) {
				httpx.JSON(w, http.StatusOK, connectionStatus{
					Healthy:       params.Monitor.Healthy(),
					LastHeartbeat: params.Monitor.LastHeartbeat(),
				})
			})
			r.Post("/connection/probe", func(w http.ResponseWriter, r *http.Request) {
				params.Monitor.ForceProbe(r.Context())
				httpx.JSON(w, http.StatusOK, connectionStatus{
					Healthy:       params.Monitor.Healthy(),
					LastHeartbeat: params.Monitor.LastHeartbeat(),
				})
			})
		}
	})

	return r
}
