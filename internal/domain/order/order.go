// Package order holds the order model, the pricing engine, and the
// find-or-create checkout service.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoOpenOrder is returned when a user has no open (not yet completed) order.
var ErrNoOpenOrder = errors.New("no open order")

// ErrNotFound is returned when a requested order does not exist or belongs
// to another user.
var ErrNotFound = errors.New("order not found")

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCanceled   Status = "canceled"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusProcessing, StatusShipped, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

// Order represents one customer's cart and, once completed, their purchase.
//
// Completed and SuccessHandled are independent flags: payment success sets
// Completed, and the one-shot fulfillment sequence sets SuccessHandled.
// An order is conceptually immutable once Completed, except for the single
// SuccessHandled transition.
type Order struct {
	ID              string
	UserID          string
	CreatedAt       time.Time
	Status          Status
	TrackingCode    string
	Total           decimal.Decimal
	Discount        decimal.Decimal
	DiscountPercent int
	SuccessHandled  bool
	Completed       bool
	Lines           []Line
}

// Line is one catalog item within an order. UnitPrice is captured when the
// line is added and never re-read from the catalog.
type Line struct {
	ID        string
	OrderID   string
	BikeID    string
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Gross returns quantity * unit price, before any discount.
func (l *Line) Gross() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total returns the line total after its allocated discount.
func (l *Line) Total() decimal.Decimal {
	return l.Gross().Sub(l.Discount)
}

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	// FindOpenByUser returns the user's open order with its lines.
	// Returns ErrNoOpenOrder when every order is completed.
	FindOpenByUser(ctx context.Context, userID string) (*Order, error)
	// GetByID returns an order with its lines, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// Create persists a new order together with its lines atomically.
	Create(ctx context.Context, o *Order) error
	// AddLine inserts a line. Adding the same bike to the same order twice
	// is a no-op (the line is unique per order and bike).
	AddLine(ctx context.Context, l *Line) error
	// SavePricing writes the order's total, discount and discount percent
	// together with every line's discount in one transaction.
	SavePricing(ctx context.Context, o *Order) error
	// MarkCompleted finalizes payment: sets completed, status and tracking code.
	MarkCompleted(ctx context.Context, orderID, trackingCode string, status Status) error
	// ClaimFulfillment atomically flips success_handled from false to true.
	// It reports whether this call performed the flip.
	ClaimFulfillment(ctx context.Context, orderID string) (bool, error)
}
