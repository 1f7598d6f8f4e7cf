// Package kafka publishes commerce events and consumes the payment
// collaborator's confirmed-paid signal.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/baajur/bn-api/internal/models"
)

type Producer struct {
	OrderWriter  *kafka.Writer
	RefundWriter *kafka.Writer
}

func NewProducer(brokers []string, orderTopic, refundTopic string) *Producer {
	return &Producer{
		OrderWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   orderTopic,
		}),
		RefundWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   refundTopic,
		}),
	}
}

// PublishOrderCreated streams the priced order to Kafka.
func (p *Producer) PublishOrderCreated(order models.Order) error {
	msgBytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return p.OrderWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(order.ID),
			Value: msgBytes,
		},
	)
}

// PublishRefundCreated streams the refund record to Kafka.
func (p *Producer) PublishRefundCreated(refund models.Refund) error {
	msgBytes, err := json.Marshal(refund)
	if err != nil {
		return err
	}
	return p.RefundWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(refund.OrderID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	if err := p.OrderWriter.Close(); err != nil {
		return err
	}
	return p.RefundWriter.Close()
}
