package payment

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/restxqr/kasa/internal/enum"
	"github.com/restxqr/kasa/internal/grouping"
)

// TreatMarker tags a comped line in its notes.
const TreatMarker = "İkram"

// QuickDiscountPercents are the one-tap presets on the cashier
// screen. Semantically identical to a manual percent entry.
var QuickDiscountPercents = []int64{5, 10, 16, 20, 25, 30}

var (
	ErrInvalidDiscountMode  = errors.New("invalid discount mode")
	ErrInvalidDiscountValue = errors.New("discount value out of range")
)

// ApplyDiscount stages a whole-table discount on the working copy.
// Percent mode multiplies the pre-discount item total; amount mode
// sets an absolute figure. Re-applying replaces any earlier staged
// discount. Nothing touches the backing store until a payment commits
// the working copy.
func ApplyDiscount(view *grouping.Table, mode string, value decimal.Decimal) error {
	items := itemsTotal(view)

	var staged decimal.Decimal
	switch mode {
	case enum.DiscountModePercent:
		if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidDiscountValue
		}
		staged = items.Mul(value).Div(decimal.NewFromInt(100))
	case enum.DiscountModeAmount:
		if value.IsNegative() || value.GreaterThan(items) {
			return ErrInvalidDiscountValue
		}
		staged = value
	default:
		return ErrInvalidDiscountMode
	}

	setStagedDiscount(view, staged)
	return nil
}

// QuickDiscount applies one of the preset percentages.
func QuickDiscount(view *grouping.Table, percent int64) error {
	return ApplyDiscount(view, enum.DiscountModePercent, decimal.NewFromInt(percent))
}

// ResetDiscount clears any staged discount from the working copy.
func ResetDiscount(view *grouping.Table) {
	setStagedDiscount(view, decimal.Zero)
}

// ApplyItemTreat comps a single line: its effective price drops to
// zero and the line is tagged so the kitchen receipt shows it. This
// is per-line, distinct from a whole-table discount.
func ApplyItemTreat(view *grouping.Table, itemIndex int) error {
	if itemIndex < 0 || itemIndex >= len(view.Items) {
		return ErrBadItemIndex
	}

	line := &view.Items[itemIndex]
	line.UnitPrice = decimal.Zero
	if !strings.Contains(line.Notes, TreatMarker) {
		if line.Notes == "" {
			line.Notes = TreatMarker
		} else {
			line.Notes += " | " + TreatMarker
		}
	}

	// Keep the staged discount as the absolute figure it became when
	// applied, clamped to the shrunken item total.
	setStagedDiscount(view, stagedDiscount(view))
	return nil
}

// Recalculate re-derives the working total from the current lines,
// preserving the staged discount. Sessions call this after quantity
// and removal edits.
func Recalculate(view *grouping.Table) {
	setStagedDiscount(view, stagedDiscount(view))
}

func itemsTotal(view *grouping.Table) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range view.Items {
		sum = sum.Add(l.Total())
	}
	return sum
}

// setStagedDiscount pins the view's discount and total to a staged
// figure over the member baseline.
func setStagedDiscount(view *grouping.Table, staged decimal.Decimal) {
	items := itemsTotal(view)
	if staged.GreaterThan(items) {
		staged = items
	}
	if staged.IsNegative() {
		staged = decimal.Zero
	}

	memberDiscount := decimal.Zero
	for _, m := range view.Members {
		memberDiscount = memberDiscount.Add(m.DiscountAmount)
	}

	view.DiscountAmount = memberDiscount.Add(staged)
	view.TotalAmount = items.Sub(staged)
}
