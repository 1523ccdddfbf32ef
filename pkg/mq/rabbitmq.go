// Package mq owns the RabbitMQ topology for durable job delivery: a main
// jobs queue, TTL-based retry queues that dead-letter back into the jobs
// exchange, and a dead-letter queue for messages RabbitMQ gives up on.
package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

const (
	JobsExchange    = "resume.jobs.exchange"
	DLXExchange     = "resume.jobs.dlx"
	RetryExchange   = "resume.jobs.retry.exchange"
	JobsQueue       = "resume.jobs.queue"
	DeadLetterQueue = "resume.jobs.dead_letter.queue"
	RoutingKey      = "customize"
)

// RetryDelays are the available retry buckets. PublishToRetry picks the
// smallest bucket that covers the requested delay.
var RetryDelays = []time.Duration{5 * time.Second, 30 * time.Second, 2 * time.Minute, 5 * time.Minute}

func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return &Client{conn: conn, ch: ch}, nil
}

// SetupTopology declares all necessary exchanges and queues. Idempotent.
func (c *Client) SetupTopology() error {
	if err := c.ch.ExchangeDeclare(JobsExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(DLXExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(RetryExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := c.ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(DeadLetterQueue, "", DLXExchange, false, nil); err != nil {
		return err
	}

	if _, err := c.ch.QueueDeclare(JobsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DLXExchange, // rejected jobs go to the DLX
	}); err != nil {
		return err
	}
	if err := c.ch.QueueBind(JobsQueue, RoutingKey, JobsExchange, false, nil); err != nil {
		return err
	}

	// Retry queues with TTL; expired messages route back to the jobs exchange.
	for _, delay := range RetryDelays {
		queueName := fmt.Sprintf("resume.jobs.retry.queue.%ds", int(delay.Seconds()))
		routingKey := retryRoutingKey(delay)
		if _, err := c.ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    JobsExchange,
			"x-dead-letter-routing-key": RoutingKey,
			"x-message-ttl":             delay.Milliseconds(),
		}); err != nil {
			return err
		}
		if err := c.ch.QueueBind(queueName, routingKey, RetryExchange, false, nil); err != nil {
			return err
		}
	}

	return nil
}

func retryRoutingKey(delay time.Duration) string {
	return fmt.Sprintf("retry.%ds", int(delay.Seconds()))
}

// bucketFor picks the smallest configured retry bucket >= delay, capped at
// the largest bucket.
func bucketFor(delay time.Duration) time.Duration {
	for _, d := range RetryDelays {
		if delay <= d {
			return d
		}
	}
	return RetryDelays[len(RetryDelays)-1]
}

// PublishJob enqueues a job id for immediate delivery.
func (c *Client) PublishJob(ctx context.Context, jobID string) error {
	return c.ch.PublishWithContext(ctx,
		JobsExchange,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			Body:         []byte(jobID),
		})
}

// PublishToRetry parks a job id in the retry queue closest to the requested
// delay; after the TTL expires it flows back into the jobs queue.
func (c *Client) PublishToRetry(ctx context.Context, jobID string, delay time.Duration) error {
	bucket := bucketFor(delay)
	return c.ch.PublishWithContext(ctx,
		RetryExchange,
		retryRoutingKey(bucket),
		false,
		false,
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			Body:         []byte(jobID),
		})
}

// ConsumeJobs opens the delivery stream. prefetch bounds the number of
// unacked messages a worker process holds.
func (c *Client) ConsumeJobs(prefetch int) (<-chan amqp.Delivery, error) {
	if prefetch > 0 {
		if err := c.ch.Qos(prefetch, 0, false); err != nil {
			return nil, err
		}
	}
	return c.ch.Consume(
		JobsQueue,
		"",    // consumer
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
}

func (c *Client) Close() {
	c.ch.Close()
	c.conn.Close()
}
