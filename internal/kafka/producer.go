package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

// NewProducer builds a producer whose messages pick their own topic.
// Keys are booking ids hashed onto partitions, so one booking's events stay ordered.
func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish marshals value as JSON onto topic
func (p *Producer) Publish(ctx context.Context, topic, key string, value any) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		p.Logger.LogKafka("PUBLISH_FAILED", topic, fmt.Sprintf("key=%s: %v", key, err))
		return err
	}
	p.Logger.LogKafka("PUBLISHED", topic, "key="+key)
	return nil
}

// PublishBookingCreated streams the booking creation event to Kafka
func (p *Producer) PublishBookingCreated(ctx context.Context, b models.Booking) error {
	event := models.NewBookingEvent(models.BookingEventCreated, b)
	return p.Publish(ctx, p.Topics.BookingCreated, b.ID, event)
}

// PublishBookingUpdated streams a lifecycle change. Cancellations go to their own topic.
func (p *Producer) PublishBookingUpdated(ctx context.Context, b models.Booking) error {
	if b.Status == models.BookingStatusCanceled {
		event := models.NewBookingEvent(models.BookingEventCanceled, b)
		return p.Publish(ctx, p.Topics.BookingCanceled, b.ID, event)
	}
	event := models.NewBookingEvent(models.BookingEventUpdated, b)
	return p.Publish(ctx, p.Topics.BookingUpdated, b.ID, event)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
