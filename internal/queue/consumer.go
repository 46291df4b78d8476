package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is the part of a delivery the handlers care about.
type Message struct {
	ID         string
	RoutingKey string
	RequestID  string
	Body       []byte
}

func messageOf(d amqp.Delivery) Message {
	m := Message{ID: d.MessageId, RoutingKey: d.RoutingKey, Body: d.Body}
	if v, ok := d.Headers["X-Request-ID"].(string); ok {
		m.RequestID = v
	}
	return m
}

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	q    string
}

func NewConsumer(url, exchange, queue, key string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(what string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	qd, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(qd.Name, key, exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	return &Consumer{conn: conn, ch: ch, q: qd.Name}, nil
}

func (c *Consumer) Close() {
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

// Consume runs workers until ctx is done. A handler error requeues the
// delivery.
func (c *Consumer) Consume(ctx context.Context, workers int, handle func(context.Context, Message) error) error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("consumer is not initialized")
	}

	if err := c.ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.q, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	deliveries := make(chan Delivery)
	go func() {
		defer close(deliveries)
		for d := range msgs {
			select {
			case deliveries <- amqpDelivery{d}:
			case <-ctx.Done():
				return
			}
		}
	}()
	Work(ctx, workers, deliveries, handle)
	return nil
}

// Delivery abstracts the broker acknowledgement so the worker pool can be
// driven without a broker.
type Delivery interface {
	Message() Message
	Ack() error
	Nack(requeue bool) error
}

type amqpDelivery struct{ d amqp.Delivery }

func (a amqpDelivery) Message() Message        { return messageOf(a.d) }
func (a amqpDelivery) Ack() error              { return a.d.Ack(false) }
func (a amqpDelivery) Nack(requeue bool) error { return a.d.Nack(false, requeue) }

// Work fans deliveries out to a fixed pool and returns once the channel is
// closed or ctx is done and every worker has finished.
func Work(ctx context.Context, workers int, in <-chan Delivery, handle func(context.Context, Message) error) {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case d, ok := <-in:
					if !ok {
						return
					}
					if err := handle(ctx, d.Message()); err != nil {
						_ = d.Nack(true)
						continue
					}
					_ = d.Ack()
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
}
