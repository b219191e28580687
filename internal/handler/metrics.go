package handler

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the domain-level counters exposed by the API.
type Metrics struct {
	ordersPlaced    metric.Int64Counter
	paymentsFailed  metric.Int64Counter
	ordersFulfilled metric.Int64Counter
}

// NewMetrics registers the API counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ordersPlaced, err := meter.Int64Counter("bikeshop.orders.placed",
		metric.WithDescription("Orders successfully paid for"))
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}

	paymentsFailed, err := meter.Int64Counter("bikeshop.payments.failed",
		metric.WithDescription("Payments declined or errored"))
	if err != nil {
		return nil, errors.Wrap(err, "payments failed counter")
	}

	ordersFulfilled, err := meter.Int64Counter("bikeshop.orders.fulfilled",
		metric.WithDescription("Orders whose fulfillment side effects ran"))
	if err != nil {
		return nil, errors.Wrap(err, "orders fulfilled counter")
	}

	return &Metrics{
		ordersPlaced:    ordersPlaced,
		paymentsFailed:  paymentsFailed,
		ordersFulfilled: ordersFulfilled,
	}, nil
}

// NewNopMetrics returns metrics that record nothing. Tests use it.
func NewNopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("bikeshop"))
	if err != nil {
		panic(err)
	}
	return m
}
