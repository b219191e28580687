package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/forez0/bikeshop/internal/domain/catalog"
)

const (
	bikeColumns = `id, name, type, price, description, in_stock,
		spec_suspension, spec_weight_kg, spec_has_basket`

	listBikesSQL = `SELECT ` + bikeColumns + ` FROM bikes WHERE in_stock ORDER BY name`

	listBikesByTypeSQL = `SELECT ` + bikeColumns + ` FROM bikes
		WHERE in_stock AND type = $1 ORDER BY name`

	getBikeByIDSQL = `SELECT ` + bikeColumns + ` FROM bikes WHERE id = $1`

	getBikesByIDsSQL = `SELECT ` + bikeColumns + ` FROM bikes WHERE id = ANY($1)`

	createBikeSQL = `INSERT INTO bikes (` + bikeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	markBikesOutOfStockSQL = `UPDATE bikes SET in_stock = FALSE WHERE id = ANY($1)`
)

var _ catalog.Repository = (*BikeRepository)(nil)

// BikeRepository implements catalog.Repository backed by PostgreSQL.
type BikeRepository struct {
	pool *pgxpool.Pool
}

// NewBikeRepository returns a BikeRepository that uses the given pool.
func NewBikeRepository(pool *pgxpool.Pool) *BikeRepository {
	return &BikeRepository{pool: pool}
}

// List returns in-stock bikes ordered by name, optionally filtered by type.
func (r *BikeRepository) List(ctx context.Context, bikeType catalog.BikeType) ([]catalog.Bike, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if bikeType == "" {
		rows, err = r.pool.Query(ctx, listBikesSQL)
	} else {
		rows, err = r.pool.Query(ctx, listBikesByTypeSQL, bikeType)
	}
	if err != nil {
		return nil, fmt.Errorf("listing bikes: %w", err)
	}
	return pgx.CollectRows(rows, scanBike)
}

// GetByID returns a single bike by its identifier.
func (r *BikeRepository) GetByID(ctx context.Context, id string) (*catalog.Bike, error) {
	rows, err := r.pool.Query(ctx, getBikeByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting bike %q: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBike)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting bike %q: %w", id, err)
	}
	return &b, nil
}

// GetByIDs returns bikes matching any of the given IDs.
func (r *BikeRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Bike, error) {
	rows, err := r.pool.Query(ctx, getBikesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting bikes by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanBike)
}

// Create persists a new catalog bike, flattening its spec into the
// type-specific nullable columns.
func (r *BikeRepository) Create(ctx context.Context, b *catalog.Bike) error {
	var (
		suspension *string
		weightKg   *decimal.Decimal
		hasBasket  *bool
	)
	switch s := b.Spec.(type) {
	case catalog.MountainSpec:
		suspension = &s.Suspension
	case catalog.RoadSpec:
		weightKg = &s.WeightKg
	case catalog.CitySpec:
		hasBasket = &s.HasBasket
	}

	_, err := r.pool.Exec(ctx, createBikeSQL,
		b.ID, b.Name, b.Type, b.Price, b.Description, b.InStock,
		suspension, weightKg, hasBasket,
	)
	if err != nil {
		return fmt.Errorf("creating bike %q: %w", b.ID, err)
	}
	return nil
}

// MarkOutOfStock flips in_stock to false for every given bike.
func (r *BikeRepository) MarkOutOfStock(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, markBikesOutOfStockSQL, ids)
	if err != nil {
		return fmt.Errorf("marking bikes out of stock: %w", err)
	}
	return nil
}

func scanBike(row pgx.CollectableRow) (catalog.Bike, error) {
	var (
		b          catalog.Bike
		price      decimal.Decimal
		suspension *string
		weightKg   *decimal.Decimal
		hasBasket  *bool
	)
	err := row.Scan(
		&b.ID, &b.Name, &b.Type, &price, &b.Description, &b.InStock,
		&suspension, &weightKg, &hasBasket,
	)
	if err != nil {
		return b, err
	}
	b.Price = price

	switch b.Type {
	case catalog.TypeMountain:
		if suspension != nil {
			b.Spec = catalog.MountainSpec{Suspension: *suspension}
		}
	case catalog.TypeRoad:
		if weightKg != nil {
			b.Spec = catalog.RoadSpec{WeightKg: *weightKg}
		}
	case catalog.TypeCity:
		if hasBasket != nil {
			b.Spec = catalog.CitySpec{HasBasket: *hasBasket}
		}
	}
	return b, nil
}
