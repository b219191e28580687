package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SpecAttrs carries the optional type-specific attributes for a new bike.
// Zero values fall back to sensible defaults per type.
type SpecAttrs struct {
	Suspension string
	WeightKg   decimal.Decimal
	HasBasket  bool
}

// Factory builds bikes with the spec variant matching their type.
type Factory struct {
	lg *zap.Logger
}

// NewFactory creates a bike factory that logs to the given logger.
func NewFactory(lg *zap.Logger) *Factory {
	return &Factory{lg: lg.Named("catalog.factory")}
}

var defaultRoadWeight = decimal.RequireFromString("7.5")

// CreateBike assembles a Bike for the given type name. Unknown type names
// produce a generic bike without a spec; this is not an error.
func (f *Factory) CreateBike(typeName, name string, price decimal.Decimal, description string, attrs SpecAttrs) *Bike {
	b := &Bike{
		ID:          uuid.New().String(),
		Name:        name,
		Type:        BikeType(typeName),
		Price:       price,
		Description: description,
		InStock:     true,
	}

	switch BikeType(typeName) {
	case TypeMountain:
		suspension := attrs.Suspension
		if suspension == "" {
			suspension = "spring"
		}
		b.Spec = MountainSpec{Suspension: suspension}
		f.lg.Info("mountain bike created",
			zap.String("name", name),
			zap.String("suspension", suspension),
		)
	case TypeRoad:
		weight := attrs.WeightKg
		if weight.IsZero() {
			weight = defaultRoadWeight
		}
		b.Spec = RoadSpec{WeightKg: weight}
		f.lg.Info("road bike created",
			zap.String("name", name),
			zap.String("weight_kg", weight.String()),
		)
	case TypeCity:
		b.Spec = CitySpec{HasBasket: attrs.HasBasket}
		f.lg.Info("city bike created",
			zap.String("name", name),
			zap.Bool("has_basket", attrs.HasBasket),
		)
	default:
		f.lg.Info("bike created with unknown type, no spec applied",
			zap.String("name", name),
			zap.String("type", typeName),
		)
	}

	return b
}
