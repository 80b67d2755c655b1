// Package queue moves vertex trees through RabbitMQ. Every work queue has a
// _retry queue that dead-letters back into it after RetryDelay and a _dlq
// queue for messages that failed MaxRetries times or can never succeed.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/rabbitmq/amqp091-go"
)

const (
	VertexQueue = "vertex_queue"

	MaxRetries = 10
	RetryDelay = 10 * time.Second

	retriesHeader = "x-retries"
)

func RetryQueue(name string) string      { return name + "_retry" }
func DeadLetterQueue(name string) string { return name + "_dlq" }

// Publisher is the publishing side of *amqp091.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Declarer is the queue-declaring side of *amqp091.Channel.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// Dial connects to the broker at url.
func Dial(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares every queue in names together with its retry and
// dead-letter queues. All queues are durable.
func SetupQueues(ch Declarer, names ...string) error {
	for _, name := range names {
		declare := []struct {
			name string
			args amqp091.Table
		}{
			{name: name},
			{name: DeadLetterQueue(name)},
			{name: RetryQueue(name), args: amqp091.Table{
				"x-message-ttl":             int32(RetryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			}},
		}
		for _, q := range declare {
			if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
				return fmt.Errorf("failed to declare queue %s: %w", q.name, err)
			}
		}
		logger.Debug("[Queue] Declared queues", "queue", name)
	}
	return nil
}

// PublishFIFO sends body to queueName through the default exchange as a
// persistent message.
func PublishFIFO(ctx context.Context, ch Publisher, queueName, correlationID string, body []byte) error {
	return publish(ctx, ch, queueName, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		Body:          body,
		DeliveryMode:  amqp091.Persistent,
		Timestamp:     time.Now(),
	})
}

func publish(ctx context.Context, ch Publisher, queueName string, msg amqp091.Publishing) error {
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}
