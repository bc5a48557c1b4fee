package service

import (
	"context"
	"encoding/json"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/storefront-backend/internal/model"
)

// EventPublisher delivers auth events.  Failures must not fail the
// operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.AuthEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.AuthEvent) error { return nil }

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// newEventID returns a lexicographically sortable event identifier.
func newEventID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewAuthEvent stamps an event of type typ for userID.
func NewAuthEvent(typ, userID string, at time.Time) model.AuthEvent {
	return model.AuthEvent{ID: newEventID(at), Type: typ, UserID: userID, OccurredAt: at.UTC()}
}

// AMQPPublisher publishes auth events to RabbitMQ.  Each Publish dials,
// declares the queue (idempotent) and sends one persistent message.
type AMQPPublisher struct {
	URL    string
	Queue  string
	Logger echo.Logger
}

// NewAMQPPublisher returns a publisher for url writing to model.AuthEventsQueue.
func NewAMQPPublisher(url string, logger echo.Logger) *AMQPPublisher {
	return &AMQPPublisher{URL: url, Queue: model.AuthEventsQueue, Logger: logger}
}

// Publish sends ev.  Errors are logged and returned so the caller can
// choose to ignore them.
func (p *AMQPPublisher) Publish(ctx context.Context, ev model.AuthEvent) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(2 * time.Second)})
	if err != nil {
		p.Logger.Warnf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Warnf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		p.Logger.Warnf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		p.Logger.Warnf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
