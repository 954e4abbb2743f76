package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/restxqr/kasa/internal/grouping"
	"github.com/restxqr/kasa/internal/session"
	"github.com/restxqr/kasa/internal/snapshot"
)

// SessionsHandler serves the edit-session lifecycle: open a working
// copy of a table view, stage mutations against it, undo, discard.
type SessionsHandler struct {
	store    *snapshot.Store
	sessions *session.Manager
	log      *slog.Logger
}

// NewSessionsHandler creates a SessionsHandler.
func NewSessionsHandler(store *snapshot.Store, sessions *session.Manager, log *slog.Logger) *SessionsHandler {
	return &SessionsHandler{store: store, sessions: sessions, log: log}
}

// RegisterRoutes registers session endpoints on the given Chi router.
func (h *SessionsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.Open)
	r.Get("/sessions/{sid}", h.Get)
	r.Delete("/sessions/{sid}", h.Discard)
	r.Post("/sessions/{sid}/quantity", h.SetQuantity)
	r.Post("/sessions/{sid}/remove-item", h.RemoveItem)
	r.Post("/sessions/{sid}/discount", h.Discount)
	r.Post("/sessions/{sid}/reset-discount", h.ResetDiscount)
	r.Post("/sessions/{sid}/treat", h.Treat)
	r.Post("/sessions/{sid}/undo", h.Undo)
}

type openSessionRequest struct {
	TableID string `json:"tableId"`
}

// Open handles POST /sessions: start an edit session over the current
// view of one table.
func (h *SessionsHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeBody(r, &req); err != nil || req.TableID == "" {
		writeError(w, http.StatusBadRequest, "tableId is required")
		return
	}

	views := grouping.GroupByTable(h.store.Orders(), time.Now())
	var target *grouping.Table
	for _, v := range views {
		if v.ID == req.TableID {
			target = v
			break
		}
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "table not found in current snapshot")
		return
	}

	s := h.sessions.Open(target)
	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId": s.ID,
		"working":   s.Working(),
	})
}

// Get handles GET /sessions/{sid}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": s.ID,
		"tableId":   s.TableID,
		"working":   s.Working(),
	})
}

// Discard handles DELETE /sessions/{sid}: drop the working copy and
// undo stack without writing anything back.
func (h *SessionsHandler) Discard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.sessions.Close(s.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

type quantityRequest struct {
	ItemIndex int `json:"itemIndex"`
	Quantity  int `json:"quantity"`
}

// SetQuantity handles POST /sessions/{sid}/quantity.
func (h *SessionsHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req quantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutate(w, s, s.SetQuantity(req.ItemIndex, req.Quantity))
}

type itemIndexRequest struct {
	ItemIndex int `json:"itemIndex"`
}

// RemoveItem handles POST /sessions/{sid}/remove-item.
func (h *SessionsHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req itemIndexRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutate(w, s, s.RemoveItem(req.ItemIndex))
}

type discountRequest struct {
	Mode   string          `json:"mode"`
	Value  decimal.Decimal `json:"value"`
	Reason string          `json:"reason"`
}

// Discount handles POST /sessions/{sid}/discount.
func (h *SessionsHandler) Discount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req discountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutate(w, s, s.Discount(req.Mode, req.Value, req.Reason))
}

// ResetDiscount handles POST /sessions/{sid}/reset-discount.
func (h *SessionsHandler) ResetDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.ResetDiscount()
	writeJSON(w, http.StatusOK, map[string]any{"working": s.Working()})
}

// Treat handles POST /sessions/{sid}/treat: comp a single line.
func (h *SessionsHandler) Treat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req itemIndexRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutate(w, s, s.Treat(req.ItemIndex))
}

// Undo handles POST /sessions/{sid}/undo.
func (h *SessionsHandler) Undo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.mutate(w, s, s.Undo())
}

// lookup resolves the session from the URL, writing the error
// response itself when it fails.
func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sid, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	s, err := h.sessions.Get(sid)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

// mutate maps a session mutation result onto an HTTP response. All
// invariant guards reject synchronously before any network call.
func (h *SessionsHandler) mutate(w http.ResponseWriter, s *session.Session, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"working": s.Working()})
	case errors.Is(err, session.ErrLastItem):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNothingToUndo):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
