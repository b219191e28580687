// Package notification provides the outbound channels used after checkout:
// customer email delivery and admin alerts about completed orders.
package notification

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogSender writes outgoing emails to the log instead of delivering them.
// It stands in for a real mail provider in development and tests.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, recipient, subject, body string) error {
	zctx.From(ctx).Info("email sent",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
