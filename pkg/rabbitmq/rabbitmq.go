package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"clubsite/internal/models"

	"github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
)

// AccountEventsQueue is the durable queue account events are published to.
const AccountEventsQueue = "account_events"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logrus.Logger
	mu      sync.Mutex // serializes publishes on the shared channel
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL    string
	Logger *logrus.Logger
}

// NewClient connects to RabbitMQ, opens a channel and declares the
// account events queue.
func NewClient(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := declareQueue(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.WithField("queue", AccountEventsQueue).Info("RabbitMQ client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		log:     log,
	}, nil
}

func declareQueue(ch *amqp.Channel) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		AccountEventsQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return q, fmt.Errorf("failed to declare %s: %w", AccountEventsQueue, err)
	}
	return q, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishAccountEvent publishes event as persistent JSON to the account
// events queue.
func (c *Client) PublishAccountEvent(ctx context.Context, event models.AccountEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := EncodeAccountEvent(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.channel.Publish(
		"",                 // default exchange
		AccountEventsQueue, // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// ConsumeAccountEvents starts a goroutine delivering account events to
// handler. Messages are acked on success and requeued once on failure.
func (c *Client) ConsumeAccountEvents(handler func(event models.AccountEvent) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := declareQueue(c.channel)
	if err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		queue.Name, // queue
		"",         // consumer tag
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			c.handleDelivery(msg, handler)
		}
	}()

	return nil
}

func (c *Client) handleDelivery(msg amqp.Delivery, handler func(models.AccountEvent) error) {
	event, err := DecodeAccountEvent(msg.Body)
	if err != nil {
		c.log.WithError(err).WithField("delivery_tag", msg.DeliveryTag).Error("dropping malformed account event")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.log.WithError(nackErr).Error("failed to nack message")
		}
		return
	}

	if err := handler(event); err != nil {
		c.log.WithError(err).WithField("delivery_tag", msg.DeliveryTag).Error("failed to process account event")
		// Requeue once; a redelivered message that fails again is dropped.
		if nackErr := msg.Nack(false, !msg.Redelivered); nackErr != nil {
			c.log.WithError(nackErr).Error("failed to nack message")
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		c.log.WithError(ackErr).Error("failed to ack message")
	}
}

// EncodeAccountEvent marshals an event for the wire.
func EncodeAccountEvent(event models.AccountEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account event: %w", err)
	}
	return body, nil
}

// DecodeAccountEvent parses a wire message into an event.
func DecodeAccountEvent(body []byte) (models.AccountEvent, error) {
	var event models.AccountEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal account event: %w", err)
	}
	if event.Type == "" {
		return event, fmt.Errorf("account event has no type")
	}
	return event, nil
}

// AuditHandler returns a consumer handler that writes each event to log.
func AuditHandler(log *logrus.Logger) func(models.AccountEvent) error {
	return func(event models.AccountEvent) error {
		log.WithFields(logrus.Fields{
			"event":       event.Type,
			"user_id":     event.UserID,
			"email":       event.Email,
			"occurred_at": event.OccurredAt,
		}).Info("account event")
		return nil
	}
}
