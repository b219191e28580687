// Package payment implements pluggable payment strategies.
//
// Every strategy is currently a stub that logs and succeeds; the interface
// already carries a boolean result plus an error so a future gateway
// integration can report declines and transport faults without changing
// callers.
package payment

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Method identifies a payment method selected by the customer.
type Method string

const (
	MethodCreditCard     Method = "credit"
	MethodPayPal         Method = "paypal"
	MethodCashOnDelivery Method = "cod"
)

// Strategy executes a payment for the given amount. The boolean reports
// whether the payment was accepted; a non-nil error is a transport fault,
// never a decline.
type Strategy interface {
	Method() Method
	Pay(ctx context.Context, amount decimal.Decimal) (bool, error)
}

// ForMethod resolves a payment-method token to a strategy. Unknown tokens
// fall back to credit card, so resolution is total and never fails.
func ForMethod(token string) Strategy {
	switch Method(token) {
	case MethodPayPal:
		return PayPal{}
	case MethodCashOnDelivery:
		return CashOnDelivery{}
	default:
		return CreditCard{}
	}
}

// CreditCard pays by credit card.
type CreditCard struct{}

func (CreditCard) Method() Method { return MethodCreditCard }

func (CreditCard) Pay(ctx context.Context, amount decimal.Decimal) (bool, error) {
	zctx.From(ctx).Info("processing credit card payment",
		zap.String("amount", amount.StringFixed(2)),
	)
	return true, nil
}

// PayPal pays through PayPal.
type PayPal struct{}

func (PayPal) Method() Method { return MethodPayPal }

func (PayPal) Pay(ctx context.Context, amount decimal.Decimal) (bool, error) {
	zctx.From(ctx).Info("processing PayPal payment",
		zap.String("amount", amount.StringFixed(2)),
	)
	return true, nil
}

// CashOnDelivery defers payment to the moment of delivery.
type CashOnDelivery struct{}

func (CashOnDelivery) Method() Method { return MethodCashOnDelivery }

func (CashOnDelivery) Pay(ctx context.Context, amount decimal.Decimal) (bool, error) {
	zctx.From(ctx).Info("order will be paid on delivery",
		zap.String("amount", amount.StringFixed(2)),
	)
	return true, nil
}
