package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/forez0/bikeshop/internal/domain/catalog"
)

// Service implements the cart side of checkout: finding or creating the
// user's open order, adding catalog items to it, and keeping its pricing
// current. All mutation is serialized per user.
type Service struct {
	bikes  catalog.Repository
	orders Repository
	locks  userLocks
}

// NewService creates an order Service with the required dependencies.
func NewService(bikes catalog.Repository, orders Repository) *Service {
	return &Service{
		bikes:  bikes,
		orders: orders,
	}
}

// Current returns the user's open order, or ErrNoOpenOrder.
func (s *Service) Current(ctx context.Context, userID string) (*Order, error) {
	return s.orders.FindOpenByUser(ctx, userID)
}

// Get returns the user's order by ID. Orders of other users are reported
// as ErrNotFound, never leaked.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// History returns the user's orders, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// AddBike adds the bike to the user's open order, creating the order when
// none exists. The bike's current price is captured on the new line; adding
// a bike that is already in the order changes nothing. Pricing is recomputed
// and persisted before returning, preserving any discount percent already
// applied to the order.
func (s *Service) AddBike(ctx context.Context, userID, bikeID string) (*Order, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	bike, err := s.bikes.GetByID(ctx, bikeID)
	if err != nil {
		return nil, errors.Wrap(err, "get bike")
	}

	o, err := s.orders.FindOpenByUser(ctx, userID)
	switch {
	case errors.Is(err, ErrNoOpenOrder):
		o = &Order{
			ID:     uuid.New().String(),
			UserID: userID,
			Status: StatusNew,
			Total:  decimal.Zero,
			Lines: []Line{{
				ID:        uuid.New().String(),
				BikeID:    bike.ID,
				Quantity:  1,
				UnitPrice: bike.Price,
			}},
		}
		o.Lines[0].OrderID = o.ID
		if err := RecomputeDiscount(o, 0); err != nil {
			return nil, err
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return nil, errors.Wrap(err, "create order")
		}
		zctx.From(ctx).Info("order created",
			zap.String("order_id", o.ID),
			zap.String("user_id", userID),
		)
		return o, nil
	case err != nil:
		return nil, errors.Wrap(err, "find open order")
	}

	if !s.hasLine(o, bikeID) {
		line := Line{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			BikeID:    bike.ID,
			Quantity:  1,
			UnitPrice: bike.Price,
		}
		if err := s.orders.AddLine(ctx, &line); err != nil {
			return nil, errors.Wrap(err, "add line")
		}
		o.Lines = append(o.Lines, line)
	}

	// Keep totals current across line mutations, preserving an already
	// applied discount percent.
	if err := RecomputeDiscount(o, o.DiscountPercent); err != nil {
		return nil, err
	}
	if err := s.orders.SavePricing(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save pricing")
	}

	return o, nil
}

func (s *Service) hasLine(o *Order, bikeID string) bool {
	for i := range o.Lines {
		if o.Lines[i].BikeID == bikeID {
			return true
		}
	}
	return false
}
