package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/restxqr/kasa/internal/payment"
	"github.com/restxqr/kasa/internal/printer"
	"github.com/restxqr/kasa/internal/session"
	"github.com/restxqr/kasa/internal/ws"
)

// Broadcaster pushes events to connected cashier screens.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(restaurantID string, event ws.Event)
}

// PaymentsHandler commits payments: it maps one cashier intent onto
// the session's working copy, issues the per-order updates in member
// creation order, and hands print results to the failover dispatcher
// in the background.
type PaymentsHandler struct {
	sessions     *session.Manager
	backend      OrderBackend
	poller       Refresher
	dispatcher   *printer.Dispatcher
	hub          Broadcaster
	restaurantID string
	cashierName  string
	printTimeout time.Duration
	log          *slog.Logger
}

// NewPaymentsHandler creates a PaymentsHandler.
func NewPaymentsHandler(sessions *session.Manager, be OrderBackend, poller Refresher,
	dispatcher *printer.Dispatcher, hub Broadcaster, restaurantID, cashierName string,
	printTimeout time.Duration, log *slog.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		sessions:     sessions,
		backend:      be,
		poller:       poller,
		dispatcher:   dispatcher,
		hub:          hub,
		restaurantID: restaurantID,
		cashierName:  cashierName,
		printTimeout: printTimeout,
		log:          log,
	}
}

// RegisterRoutes registers the payment endpoint on the given router.
func (h *PaymentsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sid}/pay", h.Pay)
}

type commandResult struct {
	OrderID string `json:"orderId"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type payResponse struct {
	Target       decimal.Decimal `json:"target"`
	Change       decimal.Decimal `json:"change"`
	Results      []commandResult `json:"results"`
	FullySettled bool            `json:"fullySettled"`
	AllApplied   bool            `json:"allApplied"`
}

// Pay handles POST /sessions/{sid}/pay. Sibling updates that already
// succeeded are never rolled back when a later one fails: each order
// is an independent resource and money already marked paid is not
// un-marked. The operator re-checks via the next poll and retries
// only the failed remainder.
func (h *PaymentsHandler) Pay(w http.ResponseWriter, r *http.Request) {
	sid, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	s, err := h.sessions.Get(sid)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var intent payment.Intent
	if err := decodeBody(r, &intent); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	working := s.Working()
	cmds, err := payment.Apply(working, intent)
	if err != nil {
		h.rejectIntent(w, err)
		return
	}
	target, err := intent.Target(working)
	if err != nil {
		h.rejectIntent(w, err)
		return
	}

	resp := payResponse{
		Target:     target,
		Change:     intent.Change(target),
		AllApplied: true,
	}

	// Updates go out oldest member first and are awaited one by one;
	// the delta distribution depends on this order. There is no
	// cross-command atomicity: a failure mid-batch leaves each
	// already-updated order individually consistent.
	type stationBatch struct {
		orderID string
		results []printer.StationResult
	}
	var batches []stationBatch
	for _, cmd := range cmds {
		res, err := h.backend.UpdateOrder(r.Context(), cmd.OrderID, cmd.Update)
		if err != nil {
			h.log.Error("order update failed during payment",
				"order", cmd.OrderID, "error", err)
			resp.Results = append(resp.Results, commandResult{OrderID: cmd.OrderID, Error: err.Error()})
			resp.AllApplied = false
			continue
		}
		resp.Results = append(resp.Results, commandResult{OrderID: cmd.OrderID, OK: true})
		if len(res.PrintResults) > 0 {
			batches = append(batches, stationBatch{orderID: cmd.OrderID, results: res.PrintResults})
		}
	}

	resp.FullySettled = resp.AllApplied &&
		working.Outstanding().Sub(target).LessThanOrEqual(payment.SettlementTolerance)

	// Print dispatch is a side effect of settlement, not a
	// precondition: it runs in the background and never blocks or
	// fails the payment path.
	tableNumber := ""
	if working.HasTable {
		tableNumber = itoa(working.TableNumber)
	}
	for _, batch := range batches {
		go func(orderID string, results []printer.StationResult) {
			ctx, cancel := context.WithTimeout(context.Background(), h.printTimeout)
			defer cancel()
			report := h.dispatcher.Dispatch(ctx, orderID, tableNumber, working.Notes, results)
			h.broadcast("print.report", report)
		}(batch.orderID, batch.results)
	}

	if resp.FullySettled {
		receiptOrder := working.Members[0].ID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), h.printTimeout)
			defer cancel()
			if err := h.backend.PrintReceipt(ctx, receiptOrder, h.cashierName); err != nil {
				h.log.Error("receipt print failed", "order", receiptOrder, "error", err)
			}
		}()
	}

	h.sessions.Close(s.ID)
	h.poller.Refresh()
	h.broadcast("orders.updated", map[string]string{"tableId": s.TableID})

	writeJSON(w, http.StatusOK, resp)
}

// rejectIntent maps distributor guard errors onto HTTP responses.
func (h *PaymentsHandler) rejectIntent(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrNonPositiveAmount),
		errors.Is(err, payment.ErrOverpayment),
		errors.Is(err, payment.ErrNoItemsSelected),
		errors.Is(err, payment.ErrBadItemIndex),
		errors.Is(err, payment.ErrInvalidMode):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *PaymentsHandler) broadcast(eventType string, payload any) {
	if h.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal broadcast payload", "type", eventType, "error", err)
		return
	}
	h.hub.Broadcast(h.restaurantID, ws.Event{Type: eventType, Payload: raw})
}
