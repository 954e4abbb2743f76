package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/restxqr/kasa/internal/config"
	"github.com/restxqr/kasa/internal/handler"
	"github.com/restxqr/kasa/internal/ws"
)

// New creates a Chi router with the gateway routes wired up. The
// gateway serves the cashier UI on the register LAN; there is no auth
// layer here; staff login lives in the backend.
func New(cfg *config.Config, orders *handler.OrdersHandler, sessions *handler.SessionsHandler,
	payments *handler.PaymentsHandler, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route: pushes snapshot changes to cashier screens
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.RestaurantID, w, r)
	})

	orders.RegisterRoutes(r)
	sessions.RegisterRoutes(r)
	payments.RegisterRoutes(r)

	return r
}
