package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/restxqr/kasa/internal/enum"
	"github.com/restxqr/kasa/internal/order"
	"github.com/restxqr/kasa/internal/printer"
)

// The backend's order payloads are loosely shaped: amounts arrive as
// numbers or strings, item names as plain strings or localized
// objects, table numbers as numbers, numeric strings or null, and
// prices under either "unitPrice" or "price". Everything is
// normalized here, once; the rest of the engine only ever sees
// order.Raw.

type flexDecimal decimal.Decimal

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = flexDecimal(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*f = flexDecimal(d)
	return nil
}

func (f flexDecimal) dec() decimal.Decimal { return decimal.Decimal(f) }

// flexName accepts "Adana Kebap" or {"tr": "...", "en": "..."}.
type flexName string

func (f *flexName) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexName(s)
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("invalid name: %s", string(b))
	}
	for _, lang := range []string{"tr", "en"} {
		if m[lang] != "" {
			*f = flexName(m[lang])
			return nil
		}
	}
	for _, v := range m {
		if v != "" {
			*f = flexName(v)
			return nil
		}
	}
	*f = ""
	return nil
}

// flexTable accepts 7, "7" or null.
type flexTable struct {
	n   int
	set bool
}

func (f *flexTable) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid table number %q", s)
	}
	f.n = n
	f.set = true
	return nil
}

// flexVariation accepts "Acılı" or {"name": "Acılı"}.
type flexVariation string

func (f *flexVariation) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexVariation(s)
		return nil
	}
	var obj struct {
		Name flexName `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("invalid variation: %s", string(b))
	}
	*f = flexVariation(obj.Name)
	return nil
}

type wireLine struct {
	Name       flexName        `json:"name"`
	UnitPrice  *flexDecimal    `json:"unitPrice"`
	Price      *flexDecimal    `json:"price"`
	Quantity   int             `json:"quantity"`
	Notes      string          `json:"notes"`
	Variations []flexVariation `json:"variations"`
}

type wireOrder struct {
	ID             string                  `json:"id"`
	TableNumber    flexTable               `json:"tableNumber"`
	Status         string                  `json:"status"`
	OrderType      string                  `json:"orderType"`
	TotalAmount    flexDecimal             `json:"totalAmount"`
	PaidAmount     flexDecimal             `json:"paidAmount"`
	DiscountAmount flexDecimal             `json:"discountAmount"`
	Items          []wireLine              `json:"items"`
	Approved       bool                    `json:"approved"`
	Notes          string                  `json:"notes"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
	PrintResults   []printer.StationResult `json:"printResults"`
}

var validStatuses = map[string]bool{
	enum.OrderStatusPending:   true,
	enum.OrderStatusPreparing: true,
	enum.OrderStatusReady:     true,
	enum.OrderStatusCompleted: true,
	enum.OrderStatusCancelled: true,
}

// normalize validates one wire order into the internal schema.
func (w *wireOrder) normalize() (*order.Raw, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("order without id")
	}
	if !validStatuses[w.Status] {
		return nil, fmt.Errorf("order %s: unknown status %q", w.ID, w.Status)
	}
	if w.TotalAmount.dec().IsNegative() || w.PaidAmount.dec().IsNegative() || w.DiscountAmount.dec().IsNegative() {
		return nil, fmt.Errorf("order %s: negative amount", w.ID)
	}

	o := &order.Raw{
		ID:             w.ID,
		TableNumber:    w.TableNumber.n,
		HasTable:       w.TableNumber.set,
		Status:         w.Status,
		OrderType:      w.OrderType,
		TotalAmount:    w.TotalAmount.dec(),
		PaidAmount:     w.PaidAmount.dec(),
		DiscountAmount: w.DiscountAmount.dec(),
		Approved:       w.Approved,
		Notes:          w.Notes,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}

	for i, wl := range w.Items {
		if wl.Quantity < 1 {
			return nil, fmt.Errorf("order %s: item[%d]: quantity %d", w.ID, i, wl.Quantity)
		}
		price := decimal.Zero
		switch {
		case wl.UnitPrice != nil:
			price = wl.UnitPrice.dec()
		case wl.Price != nil:
			price = wl.Price.dec()
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("order %s: item[%d]: negative price", w.ID, i)
		}

		line := order.Line{
			Name:      string(wl.Name),
			UnitPrice: price,
			Quantity:  wl.Quantity,
			Notes:     wl.Notes,
		}
		for _, v := range wl.Variations {
			line.Variations = append(line.Variations, string(v))
		}
		o.Items = append(o.Items, line)
	}

	return o, nil
}

// envelope is the backend's usual {success, data} wrapper. Some
// endpoints return bare payloads instead; decodePayload handles both.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodePayload(body []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Data != nil {
		return json.Unmarshal(env.Data, v)
	}
	return json.Unmarshal(body, v)
}
