// Package fulfillment drives the post-payment order state machine:
// Pending -> Paid on successful payment, Paid -> Fulfilled exactly once when
// the success endpoint is first visited.
package fulfillment

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forez0/bikeshop/internal/domain/auth"
	"github.com/forez0/bikeshop/internal/domain/catalog"
	"github.com/forez0/bikeshop/internal/domain/order"
)

// ErrNotPaid is returned when success handling is requested for an order
// whose payment has not completed.
var ErrNotPaid = errors.New("order is not paid")

// Sender delivers the order confirmation to the customer.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// AdminNotifier tells the administrative channel about a completed order.
type AdminNotifier interface {
	OrderCompleted(ctx context.Context, o *order.Order) error
}

// Coordinator orchestrates payment finalization and the one-shot
// fulfillment side effects.
type Coordinator struct {
	orders order.Repository
	bikes  catalog.Repository
	sender Sender
	admin  AdminNotifier
}

// NewCoordinator creates a Coordinator with the required collaborators.
func NewCoordinator(orders order.Repository, bikes catalog.Repository, sender Sender, admin AdminNotifier) *Coordinator {
	return &Coordinator{
		orders: orders,
		bikes:  bikes,
		sender: sender,
		admin:  admin,
	}
}

// MarkPaid transitions the order from Pending to Paid after a successful
// payment: the order becomes completed, moves to processing, and receives a
// tracking code. The order is mutated in place on success.
func (c *Coordinator) MarkPaid(ctx context.Context, o *order.Order) error {
	tracking := newTrackingCode()
	if err := c.orders.MarkCompleted(ctx, o.ID, tracking, order.StatusProcessing); err != nil {
		return errors.Wrap(err, "mark completed")
	}

	o.Completed = true
	o.Status = order.StatusProcessing
	o.TrackingCode = tracking

	zctx.From(ctx).Info("order paid",
		zap.String("order_id", o.ID),
		zap.String("tracking_code", tracking),
	)
	return nil
}

// HandleSuccess runs the Paid -> Fulfilled transition at most once for the
// order: confirmation notification, marking every ordered bike out of stock,
// and the admin notice. The success_handled flag is claimed up front with a
// compare-and-set, so concurrent or repeated invocations after the first are
// no-ops. Claiming first trades "guaranteed email" for "at most one email":
// a notification failure is reported but never re-arms the transition.
func (c *Coordinator) HandleSuccess(ctx context.Context, user *auth.User, o *order.Order) error {
	lg := zctx.From(ctx)

	if !o.Completed {
		return errors.Wrapf(ErrNotPaid, "order %s", o.ID)
	}
	if o.SuccessHandled {
		lg.Debug("fulfillment already handled", zap.String("order_id", o.ID))
		return nil
	}

	claimed, err := c.orders.ClaimFulfillment(ctx, o.ID)
	if err != nil {
		return errors.Wrap(err, "claim fulfillment")
	}
	if !claimed {
		lg.Debug("fulfillment claimed elsewhere", zap.String("order_id", o.ID))
		o.SuccessHandled = true
		return nil
	}
	o.SuccessHandled = true

	var firstErr error

	if err := c.sendConfirmation(ctx, user, o); err != nil {
		lg.Error("confirmation notification failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		firstErr = errors.Wrap(err, "send confirmation")
	}

	if err := c.bikes.MarkOutOfStock(ctx, bikeIDs(o)); err != nil {
		lg.Error("inventory update failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		if firstErr == nil {
			firstErr = errors.Wrap(err, "mark out of stock")
		}
	}

	if err := c.admin.OrderCompleted(ctx, o); err != nil {
		// The admin channel is advisory; log and move on.
		lg.Warn("admin notification failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	if firstErr == nil {
		lg.Info("order fulfilled", zap.String("order_id", o.ID))
	}
	return firstErr
}

func (c *Coordinator) sendConfirmation(ctx context.Context, user *auth.User, o *order.Order) error {
	subject := fmt.Sprintf("Order confirmation #%s", o.ID)
	body := fmt.Sprintf(
		"Thank you for your order!\nOrder number: %s\nTotal: %s\nDate: %s\n\nWe will contact you to confirm the details.",
		o.ID, o.Total.StringFixed(2), o.CreatedAt.Format("02.01.2006 15:04"),
	)
	return c.sender.Send(ctx, user.Email, subject, body)
}

func bikeIDs(o *order.Order) []string {
	ids := make([]string, len(o.Lines))
	for i := range o.Lines {
		ids[i] = o.Lines[i].BikeID
	}
	return ids
}

func newTrackingCode() string {
	id := strings.ToUpper(uuid.New().String())
	return "BS-" + strings.ReplaceAll(id, "-", "")[:12]
}
