package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ShareDrop/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeMail  = "mail.exchange"
	ExchangeRetry = "mail.retry.exchange"
	ExchangeDLQ   = "mail.dlq.exchange"

	QueueMail  = "mail.queue"
	QueueRetry = "mail.retry.queue"
	QueueDLQ   = "mail.dlq.queue"

	RoutingMail  = "mail"
	RoutingRetry = "mail.retry"
	RoutingDLQ   = "mail.dlq"
)

// Client wraps one AMQP connection and channel. Publishing is serialized
// because an amqp channel is not safe for concurrent writes.
type Client struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	publishMu sync.Mutex
}

// Dial connects to the broker and opens a channel.
func Dial(cfg *config.Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, Channel: ch}, nil
}

// NewPublisher dials the broker and declares the mail topology, ready for
// PublishMail calls.
func NewPublisher(cfg *config.Config) (*Client, error) {
	client, err := Dial(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Healthy reports whether both the connection and channel are still open.
func (c *Client) Healthy() bool {
	return c != nil && !c.Conn.IsClosed() && !c.Channel.IsClosed()
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// DeclareTopology declares the mail exchanges and queues. The retry queue
// dead-letters back into the mail exchange so delayed messages re-enter
// the normal flow once their per-message TTL expires.
func (c *Client) DeclareTopology() error {
	if err := c.Channel.ExchangeDeclare(
		ExchangeMail,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}
	if err := c.Channel.ExchangeDeclare(
		ExchangeRetry,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}
	if err := c.Channel.ExchangeDeclare(
		ExchangeDLQ,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}
	if _, err := c.Channel.QueueDeclare(
		QueueMail,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}
	if _, err := c.Channel.QueueDeclare(
		QueueRetry,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    ExchangeMail,
			"x-dead-letter-routing-key": RoutingMail,
		},
	); err != nil {
		return err
	}
	if _, err := c.Channel.QueueDeclare(
		QueueDLQ,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}
	if err := c.Channel.QueueBind(
		QueueMail,
		RoutingMail,
		ExchangeMail,
		false,
		nil,
	); err != nil {
		return err
	}
	if err := c.Channel.QueueBind(
		QueueRetry,
		RoutingRetry,
		ExchangeRetry,
		false,
		nil,
	); err != nil {
		return err
	}
	return c.Channel.QueueBind(
		QueueDLQ,
		RoutingDLQ,
		ExchangeDLQ,
		false,
		nil,
	)
}

// PublishMail enqueues a mail job for the worker.
func (c *Client) PublishMail(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeMail, RoutingMail, body, "")
}

// PublishRetry parks a failed job on the retry queue for the given delay.
func (c *Client) PublishRetry(ctx context.Context, body []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	expiration := fmt.Sprintf("%d", delay.Milliseconds())
	return c.publish(ctx, ExchangeRetry, RoutingRetry, body, expiration)
}

// PublishDLQ shelves a job that exhausted its retries.
func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeDLQ, RoutingDLQ, body, "")
}

func (c *Client) publish(ctx context.Context, exchange, key string, body []byte, expiration string) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	if expiration != "" {
		msg.Expiration = expiration
	}
	return c.Channel.PublishWithContext(
		ctx,
		exchange,
		key,
		false,
		false,
		msg,
	)
}
