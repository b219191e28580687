// Package discount implements the automatic checkout discount policy.
//
// The original storefront expressed this as a wrapper around the checkout
// action; here it is an explicit policy object with a declared outcome, so
// ordering and error propagation are visible at the call site: the checkout
// handler applies the policy to the current order state first, then proceeds
// with confirmation and payment.
package discount

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/forez0/bikeshop/internal/domain/auth"
	"github.com/forez0/bikeshop/internal/domain/order"
	"github.com/forez0/bikeshop/internal/notice"
)

// Status is the overall result of a policy invocation.
type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SkipReason explains why the policy made no change.
type SkipReason string

const (
	ReasonUnauthenticated   SkipReason = "unauthenticated"
	ReasonNoOrder           SkipReason = "no_order"
	ReasonZeroTotal         SkipReason = "zero_total"
	ReasonAlreadyDiscounted SkipReason = "already_discounted"
)

// Outcome reports what the policy did. Amount is set only for
// StatusApplied; Reason only for StatusSkipped; Err only for StatusFailed.
type Outcome struct {
	Status Status
	Reason SkipReason
	Amount decimal.Decimal
	Err    error
}

func applied(amount decimal.Decimal) Outcome {
	return Outcome{Status: StatusApplied, Amount: amount}
}

func skipped(reason SkipReason) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

func failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// Policy applies a fixed automatic discount percent to a user's open order,
// at most once per order.
type Policy struct {
	percent int
	orders  order.Repository
}

// NewPolicy creates a Policy for the given percent. The percent is validated
// on application, not construction, so a misconfigured value surfaces as a
// Failed outcome rather than a startup panic.
func NewPolicy(percent int, orders order.Repository) *Policy {
	return &Policy{percent: percent, orders: orders}
}

// Percent returns the configured discount percent.
func (p *Policy) Percent() int {
	return p.percent
}

// Apply decides whether the automatic discount applies to the user's open
// order and, if so, recomputes and persists the order pricing. It never
// aborts the surrounding checkout action: every failure is caught, logged,
// surfaced as a generic user notice, and reported in the outcome.
func (p *Policy) Apply(ctx context.Context, user *auth.User) Outcome {
	lg := zctx.From(ctx)

	if user == nil {
		lg.Debug("discount skipped: unauthenticated")
		return skipped(ReasonUnauthenticated)
	}

	o, err := p.orders.FindOpenByUser(ctx, user.ID)
	if errors.Is(err, order.ErrNoOpenOrder) {
		lg.Debug("discount skipped: no open order", zap.String("user_id", user.ID))
		return skipped(ReasonNoOrder)
	}
	if err != nil {
		return p.fail(ctx, errors.Wrap(err, "find open order"))
	}

	if !o.Total.IsPositive() {
		lg.Debug("discount skipped: zero total", zap.String("order_id", o.ID))
		return skipped(ReasonZeroTotal)
	}
	if o.DiscountPercent != 0 {
		lg.Debug("discount skipped: already discounted",
			zap.String("order_id", o.ID),
			zap.Int("percent", o.DiscountPercent),
		)
		return skipped(ReasonAlreadyDiscounted)
	}

	if err := order.RecomputeDiscount(o, p.percent); err != nil {
		return p.fail(ctx, errors.Wrap(err, "recompute discount"))
	}
	if err := p.orders.SavePricing(ctx, o); err != nil {
		return p.fail(ctx, errors.Wrap(err, "save pricing"))
	}

	notice.From(ctx).Info(fmt.Sprintf("A %d%% discount was applied automatically (-%s)", p.percent, o.Discount.StringFixed(2)))
	lg.Info("discount applied",
		zap.String("order_id", o.ID),
		zap.String("user_id", user.ID),
		zap.Int("percent", p.percent),
		zap.String("amount", o.Discount.StringFixed(2)),
	)
	return applied(o.Discount)
}

// fail logs the cause and surfaces only a generic notice to the user.
func (p *Policy) fail(ctx context.Context, err error) Outcome {
	zctx.From(ctx).Error("discount application failed", zap.Error(err))
	notice.From(ctx).Error("Could not apply the discount.")
	return failed(err)
}
