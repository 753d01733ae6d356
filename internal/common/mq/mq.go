package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventsExchange is the single fan-out point: a durable topic exchange.
// Routing keys are "role.<role>.<kind>" for role-scoped events and
// "staff.<id>.<kind>" for events targeted at one account.
const EventsExchange = "events_topic"

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Dial(host string, port int, user, pass, vhost string) (*Client, error) {
	if vhost == "" {
		vhost = "/"
	}
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", user, pass, host, port, vhost)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Channel() *amqp.Channel { return c.ch }

func (c *Client) DeclareTopology() error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("nil channel")
	}
	return c.ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil)
}

func (c *Client) Publish(ctx context.Context, key string, pub amqp.Publishing) error {
	return c.ch.PublishWithContext(ctx, EventsExchange, key, false, false, pub)
}

// SessionQueue declares an exclusive auto-delete queue for one connected
// session and binds it to the given routing-key patterns. The queue dies
// with the connection, which is what gives the bus its delivery contract:
// at-least-once while connected, nothing buffered for sessions that join
// later. A reconnecting consumer must re-read authoritative state.
func (c *Client) SessionQueue(patterns []string) (string, error) {
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", err
	}
	for _, p := range patterns {
		if err := c.ch.QueueBind(q.Name, p, EventsExchange, false, nil); err != nil {
			return "", err
		}
	}
	return q.Name, nil
}

func (c *Client) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return c.ch.Consume(queue, consumer, false, false, false, false, nil)
}

// NotifyClose reports broker-side channel closure so a session can run its
// reconnect-and-refresh path.
func (c *Client) NotifyClose() <-chan *amqp.Error {
	return c.ch.NotifyClose(make(chan *amqp.Error, 1))
}
