package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/cinema-seat-server/internal/queue"
)

// Publisher delivers booking events to downstream consumers.
type Publisher interface {
	BookingConfirmed(ctx context.Context, ev q.BookingConfirmedEvent) error
	BookingCancelled(ctx context.Context, ev q.BookingCancelledEvent) error
}

// NoopPublisher drops every event.  It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) BookingConfirmed(context.Context, q.BookingConfirmedEvent) error { return nil }
func (NoopPublisher) BookingCancelled(context.Context, q.BookingCancelledEvent) error { return nil }

// AMQPPublisher publishes each event as a persistent JSON message on the
// default exchange.  A connection is dialed per message.
type AMQPPublisher struct {
	URL string
	Log *log.Logger
}

// NewAMQPPublisher returns a publisher for url.
func NewAMQPPublisher(url string, logger *log.Logger) *AMQPPublisher {
	return &AMQPPublisher{URL: url, Log: logger}
}

func (p *AMQPPublisher) BookingConfirmed(ctx context.Context, ev q.BookingConfirmedEvent) error {
	return p.publish(ctx, q.BookingConfirmedQueue, ev)
}

func (p *AMQPPublisher) BookingCancelled(ctx context.Context, ev q.BookingCancelledEvent) error {
	return p.publish(ctx, q.BookingCancelledQueue, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
