// Package payment translates one logical cashier payment against a
// table view into per-order update commands that keep the money
// invariant: the sum of member paid amounts equals the old group paid
// amount plus the payment target, within SettlementTolerance.
package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/restxqr/kasa/internal/enum"
	"github.com/restxqr/kasa/internal/grouping"
	"github.com/restxqr/kasa/internal/order"
)

// SettlementTolerance is the rounding slack used for every "is this
// fully paid" check. Currency arithmetic in the backing store is not
// arbitrary-precision; a hard zero check would never converge on
// rounding noise. Deliberate policy, not a bug.
var SettlementTolerance = decimal.NewFromFloat(0.05)

// Errors returned by the distributor.
var (
	ErrInvalidMode       = errors.New("invalid payment mode")
	ErrNonPositiveAmount = errors.New("payment amount must be positive")
	ErrOverpayment       = errors.New("payment exceeds outstanding amount")
	ErrNoItemsSelected   = errors.New("no items selected")
	ErrBadItemIndex      = errors.New("item index out of range")
	ErrNoMembers         = errors.New("table view has no member orders")
)

// Intent is one cashier payment action. Amount is used in
// partial-by-amount mode, ItemIndices in item-selection mode, and
// Cash/Card in hybrid mode. Method labels the tender for the receipt
// note in full and partial-amount modes.
type Intent struct {
	Mode         string          `json:"mode"`
	Method       string          `json:"method,omitempty"`
	Amount       decimal.Decimal `json:"amount,omitempty"`
	ItemIndices  []int           `json:"itemIndices,omitempty"`
	Cash         decimal.Decimal `json:"cash,omitempty"`
	Card         decimal.Decimal `json:"card,omitempty"`
	ReceivedCash decimal.Decimal `json:"receivedCash,omitempty"`
	Note         string          `json:"note,omitempty"`
}

// Command is one update against a single backend order. Commands for
// one payment are issued and awaited in member creation order.
type Command struct {
	OrderID string       `json:"orderId"`
	Update  order.Update `json:"update"`
}

// Target derives the amount this intent settles against the view.
func (in Intent) Target(view *grouping.Table) (decimal.Decimal, error) {
	switch in.Mode {
	case enum.PaymentModeFull:
		return view.Outstanding(), nil
	case enum.PaymentModePartialAmount:
		return in.Amount, nil
	case enum.PaymentModeHybrid:
		return in.Cash.Add(in.Card), nil
	case enum.PaymentModePartialItems:
		sum := decimal.Zero
		for _, idx := range in.ItemIndices {
			if idx < 0 || idx >= len(view.Items) {
				return decimal.Zero, ErrBadItemIndex
			}
			sum = sum.Add(view.Items[idx].Total())
		}
		return sum, nil
	}
	return decimal.Zero, ErrInvalidMode
}

// Change returns the cash change owed for the given target, zero when
// no cash-pad amount was entered or it does not cover the target.
func (in Intent) Change(target decimal.Decimal) decimal.Decimal {
	if in.ReceivedCash.GreaterThan(target) {
		return in.ReceivedCash.Sub(target)
	}
	return decimal.Zero
}

// Apply maps the intent onto the view's member orders and returns one
// replacement command per touched member. It never issues network
// calls itself; invariant guards reject bad intents synchronously
// before the caller touches the backend.
func Apply(view *grouping.Table, in Intent) ([]Command, error) {
	if len(view.Members) == 0 {
		return nil, ErrNoMembers
	}

	switch in.Mode {
	case enum.PaymentModePartialItems:
		return settleItems(view, in)
	case enum.PaymentModeFull, enum.PaymentModePartialAmount, enum.PaymentModeHybrid:
		return distributeAmount(view, in)
	}
	return nil, ErrInvalidMode
}

// distributeAmount splits a single payment delta across members in
// creation order: each member in turn takes min(remaining, owed),
// until the remainder falls inside the tolerance. A working copy whose
// lines diverge from the member records (quantity edits, removals,
// treats) cannot be split per member, since those edits exist only on
// the view, so it commits through distributeConsolidated instead.
func distributeAmount(view *grouping.Table, in Intent) ([]Command, error) {
	target, err := in.Target(view)
	if err != nil {
		return nil, err
	}
	if !target.GreaterThan(decimal.Zero) {
		return nil, ErrNonPositiveAmount
	}

	if editedBasket(view) {
		if target.GreaterThan(view.Outstanding().Add(SettlementTolerance)) {
			return nil, ErrOverpayment
		}
		return distributeConsolidated(view, in, target), nil
	}

	totals := effectiveTotals(view)
	outstanding := decimal.Zero
	for i, m := range view.Members {
		outstanding = outstanding.Add(totals[i].Sub(m.PaidAmount))
	}
	if target.GreaterThan(outstanding.Add(SettlementTolerance)) {
		return nil, ErrOverpayment
	}

	note := in.receiptNote(target)
	stagedDiscount := stagedDiscount(view)

	var cmds []Command
	remaining := target
	for i, m := range view.Members {
		if !remaining.GreaterThan(SettlementTolerance) {
			break
		}
		due := totals[i].Sub(m.PaidAmount)
		if !due.GreaterThan(decimal.Zero) {
			continue
		}

		take := decimal.Min(remaining, due)
		newPaid := m.PaidAmount.Add(take)
		remaining = remaining.Sub(take)

		status := enum.OrderStatusReady
		if totals[i].Sub(newPaid).LessThanOrEqual(SettlementTolerance) {
			status = enum.OrderStatusCompleted
		}

		total := totals[i]
		discount := m.DiscountAmount
		reason := ""
		if i == 0 && stagedDiscount.GreaterThan(decimal.Zero) {
			discount = discount.Add(stagedDiscount)
			reason = view.DiscountReason
		}
		var items *[]order.Line
		if m.Items != nil {
			lines := m.Items
			items = &lines
		}

		cmds = append(cmds, Command{
			OrderID: m.ID,
			Update: order.Update{
				Status:         status,
				Items:          items,
				TotalAmount:    &total,
				PaidAmount:     &newPaid,
				DiscountAmount: &discount,
				DiscountReason: reason,
				CashierNote:    note,
			},
		})
	}
	return cmds, nil
}

// editedBasket reports whether the working copy's lines diverge from
// the member records' lines. A staged discount alone leaves the lines
// untouched and does not count.
func editedBasket(view *grouping.Table) bool {
	n := 0
	for _, m := range view.Members {
		n += len(m.Items)
	}
	if n != len(view.Items) {
		return true
	}
	i := 0
	for _, m := range view.Members {
		for _, l := range m.Items {
			w := view.Items[i]
			i++
			if w.Name != l.Name || w.Quantity != l.Quantity ||
				!w.UnitPrice.Equal(l.UnitPrice) || w.Notes != l.Notes {
				return true
			}
		}
	}
	return false
}

// distributeConsolidated commits an edited basket. Line edits exist
// only on the working copy, so the whole group folds onto the first
// member record: the edited lines, the group total and discount, and
// every member's prior paid amount land there, and sibling records
// close out empty, the same convention item settlement uses.
func distributeConsolidated(view *grouping.Table, in Intent, target decimal.Decimal) []Command {
	newPaid := view.PaidAmount.Add(target)
	status := enum.OrderStatusReady
	if view.TotalAmount.Sub(newPaid).LessThanOrEqual(SettlementTolerance) {
		status = enum.OrderStatusCompleted
	}
	note := in.receiptNote(target)

	lines := make([]order.Line, len(view.Items))
	for i, l := range view.Items {
		lines[i] = l.Clone()
	}
	total := view.TotalAmount
	discount := view.DiscountAmount
	cmds := []Command{{
		OrderID: view.Members[0].ID,
		Update: order.Update{
			Status:         status,
			Items:          &lines,
			TotalAmount:    &total,
			PaidAmount:     &newPaid,
			DiscountAmount: &discount,
			DiscountReason: view.DiscountReason,
			CashierNote:    note,
		},
	}}
	for _, m := range view.Members[1:] {
		empty := []order.Line{}
		zeroPaid := decimal.Zero
		zeroTotal := decimal.Zero
		cmds = append(cmds, Command{
			OrderID: m.ID,
			Update: order.Update{
				Status:      enum.OrderStatusCompleted,
				Items:       &empty,
				TotalAmount: &zeroTotal,
				PaidAmount:  &zeroPaid,
				CashierNote: note,
			},
		})
	}
	return cmds
}

// settleItems closes out the selected lines instead of marking the
// whole table partially paid: the settled lines are removed, the
// first member carries the remaining basket with its total re-derived
// from remaining prices, and its paid amount resets to zero. Settled
// items are assumed fully separable from the remaining tab; any prior
// partial payment, on any member, is accounted against the removed
// lines rather than carried over to the remaining basket. Splitting
// the basket precisely across N backing records is not attempted.
func settleItems(view *grouping.Table, in Intent) ([]Command, error) {
	if len(in.ItemIndices) == 0 {
		return nil, ErrNoItemsSelected
	}

	selected := make(map[int]bool, len(in.ItemIndices))
	for _, idx := range in.ItemIndices {
		if idx < 0 || idx >= len(view.Items) {
			return nil, ErrBadItemIndex
		}
		selected[idx] = true
	}

	target := decimal.Zero
	var remaining []order.Line
	for i, l := range view.Items {
		if selected[i] {
			target = target.Add(l.Total())
			continue
		}
		remaining = append(remaining, l.Clone())
	}
	if !target.GreaterThan(decimal.Zero) {
		return nil, ErrNonPositiveAmount
	}

	newTotal := decimal.Zero
	for _, l := range remaining {
		newTotal = newTotal.Add(l.Total())
	}

	status := enum.OrderStatusReady
	if len(remaining) == 0 {
		status = enum.OrderStatusCompleted
		remaining = []order.Line{}
	}

	note := in.receiptNote(target)
	zero := decimal.Zero

	first := view.Members[0]
	discount := first.DiscountAmount
	reason := ""
	if staged := stagedDiscount(view); staged.GreaterThan(decimal.Zero) {
		discount = discount.Add(staged)
		reason = view.DiscountReason
	}
	paidReset := decimal.Zero
	cmds := []Command{{
		OrderID: first.ID,
		Update: order.Update{
			Status:         status,
			Items:          &remaining,
			TotalAmount:    &newTotal,
			PaidAmount:     &paidReset,
			DiscountAmount: &discount,
			DiscountReason: reason,
			CashierNote:    note,
		},
	}}

	// Sibling records fold into the first member: the grouped basket
	// now lives entirely on that record, so the rest close out empty.
	for _, m := range view.Members[1:] {
		empty := []order.Line{}
		zeroPaid := zero
		zeroTotal := zero
		cmds = append(cmds, Command{
			OrderID: m.ID,
			Update: order.Update{
				Status:      enum.OrderStatusCompleted,
				Items:       &empty,
				TotalAmount: &zeroTotal,
				PaidAmount:  &zeroPaid,
				CashierNote: note,
			},
		})
	}
	return cmds, nil
}

// effectiveTotals returns per-member total amounts with any staged
// discount delta (a discount changes the group total without touching
// member records) attached to the first member. For a pristine view
// the result equals the member totals. Line-level edits never reach
// this path; they commit through distributeConsolidated.
func effectiveTotals(view *grouping.Table) []decimal.Decimal {
	totals := make([]decimal.Decimal, len(view.Members))
	memberSum := decimal.Zero
	for i, m := range view.Members {
		totals[i] = m.TotalAmount
		memberSum = memberSum.Add(m.TotalAmount)
	}
	delta := view.TotalAmount.Sub(memberSum)
	if !delta.IsZero() {
		adjusted := totals[0].Add(delta)
		if adjusted.LessThan(view.Members[0].PaidAmount) {
			adjusted = view.Members[0].PaidAmount
		}
		totals[0] = adjusted
	}
	return totals
}

// stagedDiscount is the part of the view's discount not yet on any
// member record.
func stagedDiscount(view *grouping.Table) decimal.Decimal {
	memberDiscount := decimal.Zero
	for _, m := range view.Members {
		memberDiscount = memberDiscount.Add(m.DiscountAmount)
	}
	return view.DiscountAmount.Sub(memberDiscount)
}

// receiptNote renders the payment metadata the backend stores in the
// order notes. The grouping engine strips this prefix from display
// notes, so the label must stay in sync with it.
func (in Intent) receiptNote(target decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("Ödeme yöntemi: ")
	switch {
	case in.Mode == enum.PaymentModeHybrid:
		fmt.Fprintf(&b, "Nakit %s + Kart %s", in.Cash.StringFixed(2), in.Card.StringFixed(2))
	case in.Method == enum.PaymentMethodCard:
		b.WriteString("Kart")
	default:
		b.WriteString("Nakit")
	}
	if change := in.Change(target); change.GreaterThan(decimal.Zero) {
		fmt.Fprintf(&b, " | Alınan: %s, Para üstü: %s",
			in.ReceivedCash.StringFixed(2), change.StringFixed(2))
	}
	if in.Note != "" {
		b.WriteString(" | " + in.Note)
	}
	return b.String()
}
