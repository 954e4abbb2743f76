package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is a single item row on an order. Notes participate in item
// identity when duplicate additions are merged, so they are kept even
// when empty strings elsewhere would be dropped.
type Line struct {
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Notes      string          `json:"notes,omitempty"`
	Variations []string        `json:"variations,omitempty"`
}

// Total returns unit price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Clone returns a deep copy of the line.
func (l Line) Clone() Line {
	c := l
	if l.Variations != nil {
		c.Variations = make([]string, len(l.Variations))
		copy(c.Variations, l.Variations)
	}
	return c
}

// Raw is one backend-persisted order record, normalized at the store
// boundary. TableNumber is meaningful only when HasTable is true;
// orders without a table (deliveries, walk-ins) are never merged.
type Raw struct {
	ID             string          `json:"id"`
	TableNumber    int             `json:"tableNumber,omitempty"`
	HasTable       bool            `json:"hasTable"`
	Status         string          `json:"status"`
	OrderType      string          `json:"orderType,omitempty"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Items          []Line          `json:"items"`
	Approved       bool            `json:"approved"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Outstanding returns the amount still owed on the order.
func (r *Raw) Outstanding() decimal.Decimal {
	return r.TotalAmount.Sub(r.PaidAmount)
}

// ItemsTotal recomputes the sum of line totals.
func (r *Raw) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range r.Items {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Clone returns a deep copy of the order.
func (r *Raw) Clone() *Raw {
	c := *r
	if r.Items != nil {
		c.Items = make([]Line, len(r.Items))
		for i, l := range r.Items {
			c.Items[i] = l.Clone()
		}
	}
	return &c
}

// Update is the replacement payload for an idempotent PUT against one
// backend order. Nil pointer fields are left untouched server-side;
// the distributor always fills every field it is responsible for so a
// retried command lands in the same final state. Items follows the
// same rule: a nil pointer leaves the recorded lines alone, a pointer
// to an empty slice clears them on the wire.
type Update struct {
	Status         string           `json:"status,omitempty"`
	Items          *[]Line          `json:"items,omitempty"`
	TotalAmount    *decimal.Decimal `json:"totalAmount,omitempty"`
	PaidAmount     *decimal.Decimal `json:"paidAmount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty"`
	DiscountReason string           `json:"discountReason,omitempty"`
	CashierNote    string           `json:"cashierNote,omitempty"`
	Approved       *bool            `json:"approved,omitempty"`
	TableNumber    *int             `json:"tableNumber,omitempty"`
}
