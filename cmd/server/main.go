package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/restxqr/kasa/internal/backend"
	"github.com/restxqr/kasa/internal/config"
	"github.com/restxqr/kasa/internal/handler"
	"github.com/restxqr/kasa/internal/printer"
	"github.com/restxqr/kasa/internal/router"
	"github.com/restxqr/kasa/internal/session"
	"github.com/restxqr/kasa/internal/snapshot"
	"github.com/restxqr/kasa/internal/ws"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	if cfg.RestaurantID == "" {
		log.Error("RESTAURANT_ID is required")
		os.Exit(1)
	}

	be := backend.New(cfg.BackendURL, cfg.RestaurantID, cfg.PrintTimeout, log)
	bridge := printer.NewBridgeClient(cfg.BridgeURL, cfg.PrintTimeout)
	dispatcher := printer.NewDispatcher(bridge, log)
	sessions := session.NewManager()

	hub := ws.NewHub()
	go hub.Run()

	store := snapshot.NewStore()
	poller := snapshot.NewPoller(store, be, cfg.PollInterval, log, func() {
		hub.Broadcast(cfg.RestaurantID, ws.Event{
			Type:    "orders.updated",
			Payload: json.RawMessage(`{}`),
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go poller.Run(ctx)

	orders := handler.NewOrdersHandler(store, poller, be, dispatcher, bridge, cfg.PrintTimeout, log)
	sessionsHandler := handler.NewSessionsHandler(store, sessions, log)
	payments := handler.NewPaymentsHandler(sessions, be, poller, dispatcher, hub,
		cfg.RestaurantID, cfg.CashierName, cfg.PrintTimeout, log)

	r := router.New(cfg, orders, sessionsHandler, payments, hub)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Info("cashier gateway listening", "port", cfg.Port, "restaurant", cfg.RestaurantID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
