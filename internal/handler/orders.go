package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/restxqr/kasa/internal/backend"
	"github.com/restxqr/kasa/internal/grouping"
	"github.com/restxqr/kasa/internal/order"
	"github.com/restxqr/kasa/internal/printer"
	"github.com/restxqr/kasa/internal/snapshot"
)

// OrderBackend defines the remote order operations the handlers need.
// Satisfied by *backend.Client.
type OrderBackend interface {
	UpdateOrder(ctx context.Context, id string, upd order.Update) (*backend.UpdateResult, error)
	DeleteOrder(ctx context.Context, id string) error
	PrintOrder(ctx context.Context, id string) (*backend.PrintResponse, error)
	PrintReceipt(ctx context.Context, id, cashierName string) error
	MergeTables(ctx context.Context, sourceTable, targetTable int) error
}

// Refresher requests an out-of-cycle snapshot poll.
// Satisfied by *snapshot.Poller.
type Refresher interface {
	Refresh()
}

// PrinterProber checks printer reachability through the local bridge.
// Satisfied by *printer.BridgeClient.
type PrinterProber interface {
	Status(ctx context.Context, ip string) (bool, error)
}

// OrdersHandler serves the table overview and direct order actions.
type OrdersHandler struct {
	store        *snapshot.Store
	poller       Refresher
	backend      OrderBackend
	dispatcher   *printer.Dispatcher
	prober       PrinterProber
	printTimeout time.Duration
	log          *slog.Logger
}

// NewOrdersHandler creates an OrdersHandler.
func NewOrdersHandler(store *snapshot.Store, poller Refresher, be OrderBackend,
	dispatcher *printer.Dispatcher, prober PrinterProber, printTimeout time.Duration, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{
		store:        store,
		poller:       poller,
		backend:      be,
		dispatcher:   dispatcher,
		prober:       prober,
		printTimeout: printTimeout,
		log:          log,
	}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrdersHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tables", h.ListTables)
	r.Post("/tables/refresh", h.RefreshTables)
	r.Post("/orders/merge", h.MergeTables)
	r.Delete("/orders/{id}", h.DeleteOrder)
	r.Post("/orders/{id}/reprint", h.ReprintOrder)
	r.Get("/printers/{ip}/status", h.PrinterStatus)
}

// ListTables handles GET /tables: the current snapshot grouped by
// table.
func (h *OrdersHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	views := grouping.GroupByTable(h.store.Orders(), time.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":    views,
		"fetchedAt": h.store.FetchedAt(),
	})
}

// RefreshTables handles POST /tables/refresh: force an immediate
// re-poll so the screen converges without waiting an interval.
func (h *OrdersHandler) RefreshTables(w http.ResponseWriter, r *http.Request) {
	h.poller.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

type mergeRequest struct {
	SourceTable int `json:"sourceTable"`
	TargetTable int `json:"targetTable"`
}

// MergeTables handles POST /orders/merge.
func (h *OrdersHandler) MergeTables(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.backend.MergeTables(r.Context(), req.SourceTable, req.TargetTable); err != nil {
		if errors.Is(err, backend.ErrSameTable) {
			writeError(w, http.StatusBadRequest, "source and target table are the same")
			return
		}
		h.log.Error("table merge failed", "source", req.SourceTable, "target", req.TargetTable, "error", err)
		writeError(w, http.StatusBadGateway, "merge failed")
		return
	}

	h.poller.Refresh()
	writeJSON(w, http.StatusOK, map[string]string{"status": "merged"})
}

// DeleteOrder handles DELETE /orders/{id}: reject or cancel one
// backend record. Grouped views cannot be deleted as a unit; their
// members are deleted individually.
func (h *OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.backend.DeleteOrder(r.Context(), id); err != nil {
		h.log.Error("order delete failed", "order", id, "error", err)
		writeError(w, http.StatusBadGateway, "delete failed")
		return
	}

	h.poller.Refresh()
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ReprintOrder handles POST /orders/{id}/reprint: trigger a cloud
// print retry and run the bridge failover on the per-station results.
func (h *OrdersHandler) ReprintOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	resp, err := h.backend.PrintOrder(r.Context(), id)
	if err != nil {
		h.log.Error("print trigger failed", "order", id, "error", err)
		writeError(w, http.StatusBadGateway, "print failed")
		return
	}

	tableNumber, orderNote := "", ""
	for _, o := range h.store.Orders() {
		if o.ID == id {
			if o.HasTable {
				tableNumber = itoa(o.TableNumber)
			}
			orderNote = o.Notes
			break
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.printTimeout)
	defer cancel()
	report := h.dispatcher.Dispatch(ctx, id, tableNumber, orderNote, resp.Results)

	writeJSON(w, http.StatusOK, map[string]any{
		"cloudSuccess": resp.Success,
		"steps":        resp.Steps,
		"report":       report,
	})
}

// PrinterStatus handles GET /printers/{ip}/status.
func (h *OrdersHandler) PrinterStatus(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")

	connected, err := h.prober.Status(r.Context(), ip)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"connected": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": connected})
}
