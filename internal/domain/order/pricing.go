package order

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidPercent is returned when a discount percent is outside [0, 100].
var ErrInvalidPercent = errors.New("discount percent must be between 0 and 100")

var hundred = decimal.NewFromInt(100)

// Subtotal returns the sum of quantity * unit price over the order's lines,
// ignoring any discounts already allocated. It is always computed fresh from
// the current lines so that line mutations can never leave it stale.
func Subtotal(o *Order) decimal.Decimal {
	sum := decimal.Zero
	for i := range o.Lines {
		sum = sum.Add(o.Lines[i].Gross())
	}
	return sum
}

// RecomputeDiscount recalculates the order discount for the given percent and
// allocates it across lines proportionally to each line's share of the
// subtotal. It mutates the order and its lines in place; the caller persists
// them atomically via Repository.SavePricing.
//
// Allocation truncates every line's share to two decimal places and hands the
// remainder to the last line, capped at each line's gross so no line total
// can go negative. Whatever a cap displaces moves to earlier lines with room
// left. The line discounts always sum to the order discount exactly.
//
// A zero subtotal (no lines, or only zero-priced lines) yields a zero
// discount and leaves line discounts untouched; no division happens.
func RecomputeDiscount(o *Order, percent int) error {
	if percent < 0 || percent > 100 {
		return errors.Wrapf(ErrInvalidPercent, "got %d", percent)
	}

	subtotal := Subtotal(o)
	o.DiscountPercent = percent

	if subtotal.IsZero() {
		o.Discount = decimal.Zero
		o.Total = decimal.Zero
		return nil
	}

	// Rounding a sub-cent subtotal can push the discount above the order
	// itself, so cap it at the subtotal.
	amount := subtotal.Mul(decimal.NewFromInt(int64(percent))).Div(hundred).Round(2)
	amount = decimal.Min(amount, subtotal)

	remaining := amount
	for i := range o.Lines {
		gross := o.Lines[i].Gross()
		share := remaining
		if i < len(o.Lines)-1 {
			share = amount.Mul(gross).Div(subtotal).RoundDown(2)
		}
		if share.GreaterThan(gross) {
			share = gross
		}
		o.Lines[i].Discount = share
		remaining = remaining.Sub(share)
	}

	// Capping the last line can leave part of the discount unplaced.
	// Spread it over lines that still have room, back to front.
	for i := len(o.Lines) - 1; i >= 0 && remaining.IsPositive(); i-- {
		room := o.Lines[i].Gross().Sub(o.Lines[i].Discount)
		if !room.IsPositive() {
			continue
		}
		add := decimal.Min(room, remaining)
		o.Lines[i].Discount = o.Lines[i].Discount.Add(add)
		remaining = remaining.Sub(add)
	}

	o.Discount = amount
	o.Total = subtotal.Sub(amount)
	return nil
}
