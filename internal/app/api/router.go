// Package api is the transport boundary of the coordination engine: a chi
// router over the order engine, call coordinator and presence tracker.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"tableflow/internal/domain"
	"tableflow/internal/service"
)

type Handlers struct {
	orders   *service.OrderService
	calls    *service.CallCoordinator
	presence *service.PresenceTracker
	bus      service.Bus
	validate *validator.Validate
}

func New(orders *service.OrderService, calls *service.CallCoordinator, presence *service.PresenceTracker, bus service.Bus, jwtSecret string) http.Handler {
	h := &Handlers{
		orders:   orders,
		calls:    calls,
		presence: presence,
		bus:      bus,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Customer terminals: no staff identity. Submissions carry a table, calls
	// come straight from the table's device.
	r.Post("/orders", h.submitCart)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/calls", h.raiseCall)

	staff := requireStaff(jwtSecret)

	r.Group(func(r chi.Router) {
		r.Use(staff)

		r.Get("/orders", h.liveBoard)
		r.Get("/orders/kitchen", h.kitchenBoard)
		r.Get("/orders/history", h.history)
		r.Post("/orders/{id}/paid", h.markPaid)

		r.With(requireRole(domain.RoleKitchen, domain.RoleAdmin)).Post("/orders/{id}/claim", h.claimPreparation)
		r.With(requireRole(domain.RoleKitchen, domain.RoleAdmin)).Delete("/orders/{id}/claim", h.unclaimPreparation)
		r.Put("/orders/{id}/status", h.advance)
		r.With(requireRole(domain.RoleKitchen, domain.RoleAdmin)).Put("/orders/{id}/priority", h.setPriority)
		r.With(requireRole(domain.RoleAdmin)).Post("/orders/{id}/close", h.closeOrder)

		r.With(requireRole(domain.RoleWaiter, domain.RoleAdmin)).Post("/calls/claim", h.claimCall)
		r.Get("/calls", h.activeCalls)

		r.Post("/presence/online", h.online)
		r.Post("/presence/offline", h.offline)
		r.Post("/presence/heartbeat", h.heartbeat)
		r.Get("/presence", h.onlineSet)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(domain.RoleAdmin))
			r.Post("/staff/{id}/disable", h.disableStaff)
			r.Post("/staff/{id}/call", h.callStaff)
			r.Post("/catalog/refresh", h.catalogRefresh)
		})
	})

	return r
}
