package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-client/internal/models"
	"storefront-client/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventTypeOrderPlaced = "OrderPlaced"

type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent is emitted after checkout; consuming it drives the order
// from pending to completed.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	Buyer   models.Identity `json:"buyer"`
}

func NewOrderPlacedEvent(order *models.Order) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		BaseEvent: BaseEvent{
			EventID:   uuid.New().String(),
			EventType: EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		Buyer:   order.Buyer,
	}
}

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a Kafka producer for the orders topic.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, logger: util.GetLogger()}
}

// PublishOrderPlaced publishes an OrderPlaced event keyed by order ID.
func (p *Producer) PublishOrderPlaced(ctx context.Context, event *OrderPlacedEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte("order-" + event.OrderID),
		Value: eventBytes,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Info("Published event",
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.OrderID))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{reader: reader, logger: util.GetLogger()}
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches, handles, and commits messages until the context is
// cancelled. A failed handler leaves the message uncommitted.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting Kafka consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping")
			return ctx.Err()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				c.logger.Error("Error fetching message", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				c.logger.Error("Error handling message", zap.Error(err))
				continue
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Error committing message", zap.Error(err))
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Fulfiller moves a pending order to completed after checkout. The Kafka
// worker is the real implementation; DelayedFulfiller covers broker-less
// local setups.
type Fulfiller interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
}

// KafkaFulfiller publishes OrderPlaced events for the worker to consume.
type KafkaFulfiller struct {
	producer *Producer
}

func NewKafkaFulfiller(producer *Producer) *KafkaFulfiller {
	return &KafkaFulfiller{producer: producer}
}

func (f *KafkaFulfiller) OrderPlaced(ctx context.Context, order *models.Order) error {
	return f.producer.PublishOrderPlaced(ctx, NewOrderPlacedEvent(order))
}

// FulfillmentWorker consumes OrderPlaced events and completes orders after
// the configured delay.
type FulfillmentWorker struct {
	consumer *Consumer
	store    Store
	delay    time.Duration
	logger   *zap.Logger
}

func NewFulfillmentWorker(consumer *Consumer, store Store, delay time.Duration) *FulfillmentWorker {
	return &FulfillmentWorker{
		consumer: consumer,
		store:    store,
		delay:    delay,
		logger:   util.GetLogger(),
	}
}

func (w *FulfillmentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting fulfillment worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

func (w *FulfillmentWorker) Stop() error {
	w.logger.Info("Stopping fulfillment worker")
	return w.consumer.Close()
}

func (w *FulfillmentWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var base BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}
	if base.EventType != EventTypeOrderPlaced {
		w.logger.Warn("Unhandled event type", zap.String("event_type", base.EventType))
		return nil
	}

	var event OrderPlacedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.delay):
	}

	if err := w.store.CompleteOrder(ctx, event.OrderID); err != nil {
		return fmt.Errorf("failed to complete order %s: %w", event.OrderID, err)
	}

	util.OrdersFulfilledTotal.Inc()
	w.logger.Info("Order fulfilled", zap.String("order_id", event.OrderID))
	return nil
}

// DelayedFulfiller completes orders in-process via a timer when no Kafka
// brokers are configured.
type DelayedFulfiller struct {
	store  Store
	delay  time.Duration
	logger *zap.Logger
}

func NewDelayedFulfiller(store Store, delay time.Duration) *DelayedFulfiller {
	return &DelayedFulfiller{store: store, delay: delay, logger: util.GetLogger()}
}

func (f *DelayedFulfiller) OrderPlaced(ctx context.Context, order *models.Order) error {
	orderID := order.ID
	time.AfterFunc(f.delay, func() {
		if err := f.store.CompleteOrder(context.Background(), orderID); err != nil {
			f.logger.Error("Failed to complete order",
				zap.String("order_id", orderID), zap.Error(err))
			return
		}
		util.OrdersFulfilledTotal.Inc()
		f.logger.Info("Order fulfilled", zap.String("order_id", orderID))
	})
	return nil
}
