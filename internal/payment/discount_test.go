package payment

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/restxqr/kasa/internal/enum"
	"github.com/restxqr/kasa/internal/grouping"
	"github.com/restxqr/kasa/internal/order"
)

func discountView() *grouping.Table {
	m := member("x", "150", "0", 0)
	m.Items = []order.Line{
		{Name: "Adana", UnitPrice: dec("100"), Quantity: 1},
		{Name: "Ayran", UnitPrice: dec("25"), Quantity: 2},
	}
	return view(m)
}

func TestPercentDiscount(t *testing.T) {
	v := discountView()

	if err := ApplyDiscount(v, enum.DiscountModePercent, dec("10")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.DiscountAmount.Equal(dec("15")) {
		t.Errorf("discount = %s, want 15", v.DiscountAmount)
	}
	if !v.TotalAmount.Equal(dec("135")) {
		t.Errorf("total = %s, want 135", v.TotalAmount)
	}
}

func TestAmountDiscount(t *testing.T) {
	v := discountView()

	if err := ApplyDiscount(v, enum.DiscountModeAmount, dec("40")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.DiscountAmount.Equal(dec("40")) {
		t.Errorf("discount = %s, want 40", v.DiscountAmount)
	}
	if !v.TotalAmount.Equal(dec("110")) {
		t.Errorf("total = %s, want 110", v.TotalAmount)
	}
}

func TestReapplyReplacesStagedDiscount(t *testing.T) {
	v := discountView()

	if err := ApplyDiscount(v, enum.DiscountModePercent, dec("20")); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplyDiscount(v, enum.DiscountModeAmount, dec("10")); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	// Discounts replace, they do not stack.
	if !v.DiscountAmount.Equal(dec("10")) {
		t.Errorf("discount = %s, want 10", v.DiscountAmount)
	}
	if !v.TotalAmount.Equal(dec("140")) {
		t.Errorf("total = %s, want 140", v.TotalAmount)
	}
}

func TestDiscountValidation(t *testing.T) {
	cases := []struct {
		name  string
		mode  string
		value string
		want  error
	}{
		{"percent over 100", enum.DiscountModePercent, "101", ErrInvalidDiscountValue},
		{"negative percent", enum.DiscountModePercent, "-1", ErrInvalidDiscountValue},
		{"amount over items", enum.DiscountModeAmount, "151", ErrInvalidDiscountValue},
		{"negative amount", enum.DiscountModeAmount, "-5", ErrInvalidDiscountValue},
		{"unknown mode", "LOYALTY", "10", ErrInvalidDiscountMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := discountView()
			if err := ApplyDiscount(v, tc.mode, dec(tc.value)); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			// A rejected discount leaves the view untouched.
			if !v.TotalAmount.Equal(dec("150")) || !v.DiscountAmount.Equal(decimal.Zero) {
				t.Errorf("view mutated after rejection: total=%s discount=%s",
					v.TotalAmount, v.DiscountAmount)
			}
		})
	}
}

func TestQuickDiscountMatchesManualPercent(t *testing.T) {
	for _, pct := range QuickDiscountPercents {
		quick := discountView()
		if err := QuickDiscount(quick, pct); err != nil {
			t.Fatalf("preset %d: %v", pct, err)
		}
		manual := discountView()
		if err := ApplyDiscount(manual, enum.DiscountModePercent, decimal.NewFromInt(pct)); err != nil {
			t.Fatalf("manual %d: %v", pct, err)
		}
		if !quick.TotalAmount.Equal(manual.TotalAmount) {
			t.Errorf("preset %d: total %s, manual %s", pct, quick.TotalAmount, manual.TotalAmount)
		}
	}
}

func TestResetDiscount(t *testing.T) {
	v := discountView()
	if err := ApplyDiscount(v, enum.DiscountModePercent, dec("25")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	ResetDiscount(v)

	if !v.DiscountAmount.Equal(decimal.Zero) {
		t.Errorf("discount = %s, want 0", v.DiscountAmount)
	}
	if !v.TotalAmount.Equal(dec("150")) {
		t.Errorf("total = %s, want 150", v.TotalAmount)
	}
}

func TestItemTreat(t *testing.T) {
	v := discountView()

	if err := ApplyItemTreat(v, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := v.Items[1]
	if !line.UnitPrice.Equal(decimal.Zero) {
		t.Errorf("unit price = %s, want 0", line.UnitPrice)
	}
	if !strings.Contains(line.Notes, TreatMarker) {
		t.Errorf("notes = %q, want treat marker", line.Notes)
	}
	if !v.TotalAmount.Equal(dec("100")) {
		t.Errorf("total = %s, want 100 after comping the 2x25 line", v.TotalAmount)
	}
}

func TestItemTreatIsIdempotentOnNotes(t *testing.T) {
	v := discountView()

	if err := ApplyItemTreat(v, 0); err != nil {
		t.Fatalf("first treat: %v", err)
	}
	if err := ApplyItemTreat(v, 0); err != nil {
		t.Fatalf("second treat: %v", err)
	}
	if got := strings.Count(v.Items[0].Notes, TreatMarker); got != 1 {
		t.Errorf("marker appears %d times, want 1", got)
	}
}

func TestItemTreatBadIndex(t *testing.T) {
	v := discountView()
	if err := ApplyItemTreat(v, 9); !errors.Is(err, ErrBadItemIndex) {
		t.Fatalf("err = %v, want ErrBadItemIndex", err)
	}
}

func TestTreatClampsStagedDiscount(t *testing.T) {
	v := discountView()
	if err := ApplyDiscount(v, enum.DiscountModeAmount, dec("120")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// Comping the 100-lira line shrinks the basket to 50; the staged
	// 120 discount clamps to the new item total.
	if err := ApplyItemTreat(v, 0); err != nil {
		t.Fatalf("treat: %v", err)
	}
	if !v.TotalAmount.Equal(decimal.Zero) {
		t.Errorf("total = %s, want 0", v.TotalAmount)
	}
	if !v.DiscountAmount.Equal(dec("50")) {
		t.Errorf("discount = %s, want clamped to 50", v.DiscountAmount)
	}
}

func TestRecalculateAfterQuantityEdit(t *testing.T) {
	v := discountView()
	if err := ApplyDiscount(v, enum.DiscountModeAmount, dec("30")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	v.Items[1].Quantity = 4
	Recalculate(v)

	// Items now 100 + 4x25 = 200, minus the preserved 30.
	if !v.TotalAmount.Equal(dec("170")) {
		t.Errorf("total = %s, want 170", v.TotalAmount)
	}
	if !v.DiscountAmount.Equal(dec("30")) {
		t.Errorf("discount = %s, want 30", v.DiscountAmount)
	}
}
