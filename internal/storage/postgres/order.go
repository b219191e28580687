package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/forez0/bikeshop/internal/domain/order"
)

const (
	orderColumns = `id, user_id, created_at, status, tracking_code,
		total, discount, discount_percent, success_handled, completed`

	findOpenOrderSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 AND NOT completed`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	createOrderSQL = `INSERT INTO orders (id, user_id, status, tracking_code,
			total, discount, discount_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	lineColumns = `id, order_id, bike_id, quantity, unit_price, discount`

	listLinesSQL = `SELECT ` + lineColumns + ` FROM order_lines
		WHERE order_id = ANY($1) ORDER BY id`

	insertLineSQL = `INSERT INTO order_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, bike_id) DO NOTHING`

	savePricingSQL = `UPDATE orders
		SET total = $2, discount = $3, discount_percent = $4
		WHERE id = $1`

	saveLineDiscountSQL = `UPDATE order_lines SET discount = $2 WHERE id = $1`

	markCompletedSQL = `UPDATE orders
		SET completed = TRUE, status = $2, tracking_code = $3
		WHERE id = $1`

	claimFulfillmentSQL = `UPDATE orders SET success_handled = TRUE
		WHERE id = $1 AND NOT success_handled`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// FindOpenByUser returns the user's open order with its lines. The partial
// unique index on orders guarantees at most one row matches.
func (r *OrderRepository) FindOpenByUser(ctx context.Context, userID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, findOpenOrderSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("finding open order for user %q: %w", userID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNoOpenOrder
		}
		return nil, fmt.Errorf("finding open order for user %q: %w", userID, err)
	}

	lines, err := r.loadLines(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	attachLines([]*order.Order{&o}, lines)
	return &o, nil
}

// GetByID returns an order with its lines, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	lines, err := r.loadLines(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	attachLines([]*order.Order{&o}, lines)
	return &o, nil
}

// ListByUser returns the user's orders with their lines, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	ptrs := make([]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		ptrs[i] = &orders[i]
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	attachLines(ptrs, lines)
	return orders, nil
}

// Create persists a new order together with its lines in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.Status, o.TrackingCode,
		o.Total, o.Discount, o.DiscountPercent,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		_, err = tx.Exec(ctx, insertLineSQL,
			l.ID, l.OrderID, l.BikeID, l.Quantity, l.UnitPrice, l.Discount,
		)
		if err != nil {
			return fmt.Errorf("creating order line %q: %w", l.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// AddLine inserts a line, silently keeping the existing one when the bike is
// already in the order.
func (r *OrderRepository) AddLine(ctx context.Context, l *order.Line) error {
	_, err := r.pool.Exec(ctx, insertLineSQL,
		l.ID, l.OrderID, l.BikeID, l.Quantity, l.UnitPrice, l.Discount,
	)
	if err != nil {
		return fmt.Errorf("adding line to order %q: %w", l.OrderID, err)
	}
	return nil
}

// SavePricing writes the order totals and every line discount in one
// transaction, so a partially applied discount can never be observed.
func (r *OrderRepository) SavePricing(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, savePricingSQL, o.ID, o.Total, o.Discount, o.DiscountPercent)
	if err != nil {
		return fmt.Errorf("saving pricing for order %q: %w", o.ID, err)
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		if _, err := tx.Exec(ctx, saveLineDiscountSQL, l.ID, l.Discount); err != nil {
			return fmt.Errorf("saving discount for line %q: %w", l.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing pricing for order %q: %w", o.ID, err)
	}
	return nil
}

// MarkCompleted finalizes payment for the order.
func (r *OrderRepository) MarkCompleted(ctx context.Context, orderID, trackingCode string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, markCompletedSQL, orderID, status, trackingCode)
	if err != nil {
		return fmt.Errorf("completing order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ClaimFulfillment atomically flips success_handled from false to true and
// reports whether this call performed the flip.
func (r *OrderRepository) ClaimFulfillment(ctx context.Context, orderID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, claimFulfillmentSQL, orderID)
	if err != nil {
		return false, fmt.Errorf("claiming fulfillment for order %q: %w", orderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// loadLines fetches the lines for the given order IDs in a single query.
func (r *OrderRepository) loadLines(ctx context.Context, orderIDs []string) ([]order.Line, error) {
	rows, err := r.pool.Query(ctx, listLinesSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("listing order lines: %w", err)
	}

	lines, err := pgx.CollectRows(rows, scanLine)
	if err != nil {
		return nil, fmt.Errorf("listing order lines: %w", err)
	}
	return lines, nil
}

// attachLines groups loaded lines onto their orders by order ID. It writes
// through the given pointers, so the orders the caller holds see the lines.
func attachLines(orders []*order.Order, lines []order.Line) {
	index := make(map[string]*order.Order, len(orders))
	for _, o := range orders {
		index[o.ID] = o
	}

	for i := range lines {
		if o := index[lines[i].OrderID]; o != nil {
			o.Lines = append(o.Lines, lines[i])
		}
	}
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o               order.Order
		total, discount decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CreatedAt, &o.Status, &o.TrackingCode,
		&total, &discount, &o.DiscountPercent, &o.SuccessHandled, &o.Completed,
	)
	o.Total = total
	o.Discount = discount
	return o, err
}

func scanLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l                   order.Line
		unitPrice, discount decimal.Decimal
	)
	err := row.Scan(&l.ID, &l.OrderID, &l.BikeID, &l.Quantity, &unitPrice, &discount)
	l.UnitPrice = unitPrice
	l.Discount = discount
	return l, err
}
