// Package grouping synthesizes per-table views over the raw order
// snapshot. A physical table may be backed by several independent
// order records (separate waiter submissions); the cashier screen
// works against one consolidated view per table.
package grouping

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/restxqr/kasa/internal/enum"
	"github.com/restxqr/kasa/internal/order"
)

// GraceWindow keeps a just-settled or just-cancelled table on the
// screen briefly so it does not vanish mid-glance. Orders outside the
// window are dropped from the view, not deleted.
const GraceWindow = 60 * time.Second

// paymentNotePrefix marks payment metadata the cashier embeds in order
// notes. It is stripped from display notes and surfaced separately.
const paymentNotePrefix = "Ödeme yöntemi"

// statusPriority orders member statuses by urgency. The most urgent
// member status becomes the table status.
var statusPriority = map[string]int{
	enum.OrderStatusPending:   4,
	enum.OrderStatusPreparing: 3,
	enum.OrderStatusReady:     2,
	enum.OrderStatusCompleted: 1,
	enum.OrderStatusCancelled: 0,
}

// Table is the consolidated view of one table (or one table-less
// order). Members holds the constituent records oldest-created first;
// that ordering is load-bearing: payment distribution and table-merge
// effects are applied to members in this order.
type Table struct {
	ID             string          `json:"id"`
	TableNumber    int             `json:"tableNumber,omitempty"`
	HasTable       bool            `json:"hasTable"`
	Status         string          `json:"status"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	DiscountReason string          `json:"discountReason,omitempty"`
	Items          []order.Line    `json:"items"`
	Approved       bool            `json:"approved"`
	Notes          string          `json:"notes,omitempty"`
	PaymentInfo    string          `json:"paymentInfo,omitempty"`
	Members        []*order.Raw    `json:"members"`
}

// Grouped reports whether the view aggregates more than one record.
func (t *Table) Grouped() bool {
	return len(t.Members) > 1
}

// Outstanding returns the amount still owed across all members.
func (t *Table) Outstanding() decimal.Decimal {
	return t.TotalAmount.Sub(t.PaidAmount)
}

// Clone returns a deep copy, used for edit-session working copies.
func (t *Table) Clone() *Table {
	c := *t
	c.Items = make([]order.Line, len(t.Items))
	for i, l := range t.Items {
		c.Items[i] = l.Clone()
	}
	c.Members = make([]*order.Raw, len(t.Members))
	for i, m := range t.Members {
		c.Members[i] = m.Clone()
	}
	return &c
}

// Visible reports whether an order belongs on the active cashier
// screen at the given instant. Active statuses always qualify;
// completed and cancelled orders only within the grace window.
func Visible(o *order.Raw, now time.Time) bool {
	switch o.Status {
	case enum.OrderStatusPending, enum.OrderStatusPreparing, enum.OrderStatusReady:
		return true
	case enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return now.Sub(o.UpdatedAt) <= GraceWindow
	}
	return false
}

// GroupByTable partitions visible orders by table number and
// synthesizes one Table view per bucket. Orders without a table each
// form their own singleton view and are never merged with each other.
// Every visible input order appears in exactly one output view.
func GroupByTable(orders []*order.Raw, now time.Time) []*Table {
	byTable := make(map[int][]*order.Raw)
	var tableless []*order.Raw

	for _, o := range orders {
		if !Visible(o, now) {
			continue
		}
		if o.HasTable {
			byTable[o.TableNumber] = append(byTable[o.TableNumber], o)
		} else {
			tableless = append(tableless, o)
		}
	}

	views := make([]*Table, 0, len(byTable)+len(tableless))
	for _, members := range byTable {
		views = append(views, newView(members))
	}
	for _, o := range tableless {
		views = append(views, newView([]*order.Raw{o}))
	}

	// Tables in number order, then table-less orders oldest first.
	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.HasTable != b.HasTable {
			return a.HasTable
		}
		if a.HasTable {
			return a.TableNumber < b.TableNumber
		}
		return a.Members[0].CreatedAt.Before(b.Members[0].CreatedAt)
	})
	return views
}

// newView builds a Table from one bucket of members.
func newView(members []*order.Raw) *Table {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})

	first := members[0]
	t := &Table{
		TableNumber: first.TableNumber,
		HasTable:    first.HasTable,
		Status:      first.Status,
		Approved:    true,
		Members:     members,
	}

	if t.Grouped() {
		t.ID = fmt.Sprintf("table-%d-grouped", first.TableNumber)
	} else {
		t.ID = first.ID
	}

	for _, m := range members {
		t.Items = append(t.Items, m.Items...)
		t.TotalAmount = t.TotalAmount.Add(m.TotalAmount)
		t.PaidAmount = t.PaidAmount.Add(m.PaidAmount)
		t.DiscountAmount = t.DiscountAmount.Add(m.DiscountAmount)
		if statusPriority[m.Status] > statusPriority[t.Status] {
			t.Status = m.Status
		}
		if !m.Approved {
			t.Approved = false
		}
	}

	t.Notes, t.PaymentInfo = mergeNotes(members)
	return t
}

// mergeNotes deduplicates member notes for display, stripping payment
// metadata fragments out of the visible text. The first payment
// fragment found is returned separately.
func mergeNotes(members []*order.Raw) (notes, paymentInfo string) {
	seen := make(map[string]bool)
	var parts []string
	for _, m := range members {
		n := strings.TrimSpace(m.Notes)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		if strings.Contains(n, paymentNotePrefix) {
			if paymentInfo == "" {
				paymentInfo = n
			}
			continue
		}
		parts = append(parts, n)
	}
	return strings.Join(parts, " | "), paymentInfo
}
