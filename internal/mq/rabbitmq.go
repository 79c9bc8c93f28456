package mq

import (
	"MediaVault/config"
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeImport      = "media.import.exchange"
	ExchangeImportRetry = "media.import.retry.exchange"
	ExchangeImportDLQ   = "media.import.dlq.exchange"

	QueueImport      = "media.import.queue"
	QueueImportRetry = "media.import.retry.queue"
	QueueImportDLQ   = "media.import.dlq.queue"

	RoutingImport      = "import"
	RoutingImportRetry = "import.retry"
	RoutingImportDLQ   = "import.dlq"
)

// TaskPublisher enqueues import tasks.
type TaskPublisher interface {
	PublishTask(ctx context.Context, body []byte) error
}

type Client struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	publishMu sync.Mutex
}

var publisherMu sync.Mutex
var publisher *Client

func Dial() (*Client, error) {
	conn, err := amqp.Dial(config.AppConfig.RabbitMQURL)
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

// GetPublisher returns a shared publishing client, redialing when the connection dropped.
func GetPublisher() (*Client, error) {
	publisherMu.Lock()
	defer publisherMu.Unlock()
	if publisher != nil {
		if !publisher.Conn.IsClosed() && !publisher.Channel.IsClosed() {
			return publisher, nil
		}
		publisher.Close()
		publisher = nil
	}
	client, err := Dial()
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	publisher = client
	return publisher, nil
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

type queueBinding struct {
	exchange string
	queue    string
	routing  string
	args     amqp.Table
}

// topology is the import queue, its delay queue that dead-letters back into it, and the DLQ.
var topology = []queueBinding{
	{exchange: ExchangeImport, queue: QueueImport, routing: RoutingImport},
	{
		exchange: ExchangeImportRetry,
		queue:    QueueImportRetry,
		routing:  RoutingImportRetry,
		args: amqp.Table{
			"x-dead-letter-exchange":    ExchangeImport,
			"x-dead-letter-routing-key": RoutingImport,
		},
	},
	{exchange: ExchangeImportDLQ, queue: QueueImportDLQ, routing: RoutingImportDLQ},
}

func (c *Client) DeclareTopology() error {
	for _, q := range topology {
		if err := c.Channel.ExchangeDeclare(q.exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", q.exchange, err)
		}
		if _, err := c.Channel.QueueDeclare(q.queue, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.queue, err)
		}
		if err := c.Channel.QueueBind(q.queue, q.routing, q.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q.queue, err)
		}
	}
	return nil
}

func (c *Client) PublishTask(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeImport, RoutingImport, body, "")
}

// PublishRetry parks the message in the delay queue until delay expires.
func (c *Client) PublishRetry(ctx context.Context, body []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	expiration := fmt.Sprintf("%d", delay.Milliseconds())
	return c.publish(ctx, ExchangeImportRetry, RoutingImportRetry, body, expiration)
}

func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeImportDLQ, RoutingImportDLQ, body, "")
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
	return c.Channel.PublishWithContext(ctx, exchange, key, false, false, msg)
}
