package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message. A returned error is logged and the message is still
// committed, so a bad payload cannot wedge the partition.
type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader MessageReader
	log    *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return NewConsumerWithReader(reader, log)
}

func NewConsumerWithReader(reader MessageReader, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Discard()
	}
	return &Consumer{reader: reader, log: log}
}

// Start consumes until ctx is canceled or the reader is closed
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	c.log.Info("KAFKA", "consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info("KAFKA", "consumer stopped")
				return nil
			}
			if errors.Is(err, io.EOF) {
				// reader closed
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("error reading message: %v", err))
			return err
		}

		if err := handler(ctx, msg); err != nil {
			c.log.LogKafka("HANDLER_FAILED", msg.Topic, fmt.Sprintf("offset=%d: %v", msg.Offset, err))
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.LogKafka("COMMIT_FAILED", msg.Topic, err.Error())
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Invalidator drops cached registry entries
type Invalidator interface {
	InvalidateResource(ctx context.Context, tenantID, resourceID string) error
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// InvalidationHandler evicts cached zones named by timezone-changed events
func InvalidationHandler(inv Invalidator, log *logger.Logger) Handler {
	if log == nil {
		log = logger.Discard()
	}
	return func(ctx context.Context, msg kafka.Message) error {
		var event models.TimezoneChangedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("decode timezone event: %w", err)
		}
		if event.TenantID == "" {
			return errors.New("timezone event without tenant_id")
		}

		if event.ResourceID != "" {
			log.LogKafka("RECEIVED", msg.Topic, fmt.Sprintf("resource %s/%s timezone=%q", event.TenantID, event.ResourceID, event.Timezone))
			return inv.InvalidateResource(ctx, event.TenantID, event.ResourceID)
		}
		log.LogKafka("RECEIVED", msg.Topic, fmt.Sprintf("tenant %s timezone=%q", event.TenantID, event.Timezone))
		return inv.InvalidateTenant(ctx, event.TenantID)
	}
}
