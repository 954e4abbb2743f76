// Package session holds the cashier's in-flight edits. A session owns
// a working copy of one table view; every mutation first pushes a
// whole-state snapshot onto a bounded undo stack. Nothing a session
// does touches the backing store. Commit happens through a payment,
// and closing a session discards everything.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/restxqr/kasa/internal/grouping"
	"github.com/restxqr/kasa/internal/payment"
)

// UndoDepth bounds the snapshot stack. Whole-state undo over small
// orders at this depth costs little and is strictly correct for the
// heterogeneous mutation set.
const UndoDepth = 5

var (
	ErrNotFound      = errors.New("session not found")
	ErrBadItemIndex  = errors.New("item index out of range")
	ErrBadQuantity   = errors.New("quantity must be at least 1")
	ErrLastItem      = errors.New("cannot remove the last item; cancel the order instead")
	ErrNothingToUndo = errors.New("nothing to undo")
)

// Session is one cashier edit session over a working copy.
type Session struct {
	ID        uuid.UUID
	TableID   string
	CreatedAt time.Time

	mu      sync.Mutex
	working *grouping.Table
	undo    []*grouping.Table
}

// Working returns a deep copy of the current working state, safe for
// the caller to serialize without holding the session lock.
func (s *Session) Working() *grouping.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.Clone()
}

// push snapshots the current state before a mutation, dropping the
// oldest snapshot once the stack is full.
func (s *Session) push() {
	if len(s.undo) == UndoDepth {
		copy(s.undo, s.undo[1:])
		s.undo = s.undo[:UndoDepth-1]
	}
	s.undo = append(s.undo, s.working.Clone())
}

// SetQuantity changes one line's quantity on the working copy.
func (s *Session) SetQuantity(itemIndex, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if itemIndex < 0 || itemIndex >= len(s.working.Items) {
		return ErrBadItemIndex
	}
	if quantity < 1 {
		return ErrBadQuantity
	}

	s.push()
	s.working.Items[itemIndex].Quantity = quantity
	payment.Recalculate(s.working)
	return nil
}

// RemoveItem drops one line from the working copy. Removing the last
// remaining line is rejected so a zero-item order can never reach the
// payment step; the order must be cancelled instead.
func (s *Session) RemoveItem(itemIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if itemIndex < 0 || itemIndex >= len(s.working.Items) {
		return ErrBadItemIndex
	}
	if len(s.working.Items) == 1 {
		return ErrLastItem
	}

	s.push()
	s.working.Items = append(s.working.Items[:itemIndex], s.working.Items[itemIndex+1:]...)
	payment.Recalculate(s.working)
	return nil
}

// Discount stages a whole-table discount on the working copy.
func (s *Session) Discount(mode string, value decimal.Decimal, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.push()
	if err := payment.ApplyDiscount(s.working, mode, value); err != nil {
		s.undo = s.undo[:len(s.undo)-1]
		return err
	}
	s.working.DiscountReason = reason
	return nil
}

// ResetDiscount clears any staged discount.
func (s *Session) ResetDiscount() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.push()
	payment.ResetDiscount(s.working)
	s.working.DiscountReason = ""
}

// Treat comps one line on the working copy.
func (s *Session) Treat(itemIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.push()
	if err := payment.ApplyItemTreat(s.working, itemIndex); err != nil {
		s.undo = s.undo[:len(s.undo)-1]
		return err
	}
	return nil
}

// Undo replaces the working copy wholesale with the most recent
// snapshot.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return ErrNothingToUndo
	}
	s.working = s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	return nil
}

// Manager tracks the open sessions of one gateway process.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// Open starts a session over a deep copy of the given view.
func (m *Manager) Open(view *grouping.Table) *Session {
	s := &Session{
		ID:        uuid.New(),
		TableID:   view.ID,
		CreatedAt: time.Now(),
		working:   view.Clone(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns an open session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close discards a session, its working copy, and its undo stack.
// Closing an unknown session is a no-op.
func (m *Manager) Close(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
