package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Context executes payments through its currently bound strategy. It is
// request-scoped: one Context per checkout request, so no locking is needed
// around SetStrategy.
type Context struct {
	strategy Strategy
}

// NewContext creates a payment Context bound to the given strategy.
func NewContext(strategy Strategy) *Context {
	return &Context{strategy: strategy}
}

// SetStrategy replaces the bound strategy. Only subsequent Execute calls
// are affected.
func (c *Context) SetStrategy(strategy Strategy) {
	c.strategy = strategy
}

// Execute runs the payment through the bound strategy, logs the outcome, and
// returns the strategy's result unchanged. A transport fault from the
// strategy is propagated as a failed payment together with the error; it is
// never swallowed.
func (c *Context) Execute(ctx context.Context, amount decimal.Decimal) (bool, error) {
	lg := zctx.From(ctx)

	ok, err := c.strategy.Pay(ctx, amount)
	if err != nil {
		lg.Error("payment errored",
			zap.String("method", string(c.strategy.Method())),
			zap.Error(err),
		)
		return false, errors.Wrapf(err, "pay via %s", c.strategy.Method())
	}
	if !ok {
		lg.Warn("payment failed",
			zap.String("method", string(c.strategy.Method())),
			zap.String("amount", amount.StringFixed(2)),
		)
		return false, nil
	}

	lg.Info("payment succeeded",
		zap.String("method", string(c.strategy.Method())),
		zap.String("amount", amount.StringFixed(2)),
	)
	return true, nil
}
