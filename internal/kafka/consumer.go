package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// PaymentConfirmation is the payment collaborator's confirmed-paid signal.
// The core never talks to a payment gateway itself; it only reacts to this
// event.
type PaymentConfirmation struct {
	OrderID       string `json:"order_id"`
	AmountInCents int64  `json:"amount_in_cents"`
}

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start consumes payment confirmations until the context is cancelled.
func (c *Consumer) Start(ctx context.Context, handler func(confirmation PaymentConfirmation)) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading payment message: %v", err)
			continue
		}

		var confirmation PaymentConfirmation
		if err := json.Unmarshal(msg.Value, &confirmation); err != nil {
			log.Printf("Failed to unmarshal payment message: %v", err)
			continue
		}

		handler(confirmation)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
