package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/forez0/bikeshop/internal/domain/order"
)

// orderCompletedEvent is the payload published for every completed order.
type orderCompletedEvent struct {
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	Total        string    `json:"total"`
	TrackingCode string    `json:"tracking_code"`
	CompletedAt  time.Time `json:"completed_at"`
}

// KafkaNotifier publishes completed-order events to a Kafka topic so that
// back-office consumers can pick them up.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a notifier writing to topic on the given brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (n *KafkaNotifier) OrderCompleted(ctx context.Context, o *order.Order) error {
	evt := orderCompletedEvent{
		OrderID:      o.ID,
		UserID:       o.UserID,
		Total:        o.Total.StringFixed(2),
		TrackingCode: o.TrackingCode,
		CompletedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ID),
		Value: data,
	}); err != nil {
		return errors.Wrap(err, "write message")
	}

	zctx.From(ctx).Info("order completion published",
		zap.String("order_id", o.ID),
		zap.String("topic", n.writer.Topic),
	)
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// NopNotifier drops admin notifications. Used when no brokers are configured.
type NopNotifier struct{}

func (NopNotifier) OrderCompleted(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Debug("admin notification skipped, no brokers configured",
		zap.String("order_id", o.ID))
	return nil
}
