package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested bike does not exist.
var ErrNotFound = errors.New("bike not found")

// BikeType enumerates the known bike categories. Unknown values are allowed;
// they simply carry no type-specific spec.
type BikeType string

const (
	TypeMountain BikeType = "mountain"
	TypeRoad     BikeType = "road"
	TypeCity     BikeType = "city"
)

// Bike represents a catalog item available for purchase.
type Bike struct {
	ID          string
	Name        string
	Type        BikeType
	Price       decimal.Decimal
	Description string
	InStock     bool
	Spec        Spec
}

// Specifics returns a human-readable description of the bike's
// type-specific characteristics.
func (b *Bike) Specifics() string {
	if b.Spec == nil {
		return "Standard bike"
	}
	return b.Spec.Specifics()
}

// Spec describes the type-specific characteristics of a bike.
type Spec interface {
	Specifics() string
}

// MountainSpec holds mountain bike characteristics.
type MountainSpec struct {
	Suspension string
}

func (s MountainSpec) Specifics() string {
	return "Mountain bike with " + s.Suspension + " suspension"
}

// RoadSpec holds road bike characteristics.
type RoadSpec struct {
	WeightKg decimal.Decimal
}

func (s RoadSpec) Specifics() string {
	return "Lightweight road bike (" + s.WeightKg.String() + " kg)"
}

// CitySpec holds city bike characteristics.
type CitySpec struct {
	HasBasket bool
}

func (s CitySpec) Specifics() string {
	if s.HasBasket {
		return "City bike with basket"
	}
	return "City bike"
}

// Repository defines persistence operations for the bike catalog.
type Repository interface {
	List(ctx context.Context, bikeType BikeType) ([]Bike, error)
	GetByID(ctx context.Context, id string) (*Bike, error)
	GetByIDs(ctx context.Context, ids []string) ([]Bike, error)
	Create(ctx context.Context, b *Bike) error
	// MarkOutOfStock flips in_stock to false for every given bike.
	// Setting the flag twice is harmless, so callers may retry.
	MarkOutOfStock(ctx context.Context, ids []string) error
}
