package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/depgraph/pkg/logger"
	"github.com/rabbitmq/amqp091-go"
)

const (
	OutcomeOK         = "ok"
	OutcomeRetry      = "retry"
	OutcomeDeadLetter = "dead_letter"
	OutcomeRequeued   = "requeued"
)

// Observer is told the outcome of every message; *metrics.Collectors
// implements it.
type Observer interface {
	QueueMessage(outcome string)
}

// Retries reads the x-retries header. Brokers and clients disagree on the
// integer width, so every signed width is accepted.
func Retries(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Process handles one delivery and settles it: ack on success, otherwise a
// republish to the retry or dead-letter queue followed by an ack. If the
// republish fails the delivery is requeued.
func Process(ctx context.Context, ch Publisher, h *Handler, msg amqp091.Delivery, queueName string) string {
	err := h.Handle(ctx, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			logger.Error("[Queue] Failed to ack message", "queue", queueName, "err", ackErr)
		}
		return OutcomeOK
	}
	logger.Error("[Queue] Error processing message", "queue", queueName, "correlation_id", msg.CorrelationId, "err", err)
	return handleFailure(ctx, ch, msg, queueName, err)
}

func handleFailure(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string, cause error) string {
	retries := Retries(msg.Headers)
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target, outcome := RetryQueue(queueName), OutcomeRetry
	if retries >= MaxRetries || errors.Is(cause, ErrPermanent) {
		target, outcome = DeadLetterQueue(queueName), OutcomeDeadLetter
		headers["x-error"] = cause.Error()
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	err := publish(ctx, ch, target, amqp091.Publishing{
		ContentType:   msg.ContentType,
		CorrelationId: msg.CorrelationId,
		Body:          msg.Body,
		Headers:       headers,
		DeliveryMode:  amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to republish message", "target", target, "err", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nackErr)
		}
		return OutcomeRequeued
	}
	if outcome == OutcomeDeadLetter {
		logger.Warn("[Queue] Sent message to DLQ", "dlq", target, "retries", retries)
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		logger.Error("[Queue] Failed to ack message", "queue", queueName, "err", ackErr)
	}
	return outcome
}

// Consume processes queueName one message at a time until ctx is done or
// the channel closes.
func Consume(ctx context.Context, ch *amqp091.Channel, queueName string, h *Handler, obs Observer) error {
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, queueName, queueName+"_consumer", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", queueName, err)
	}

	logger.Info("[Queue] Listening for messages", "queue", queueName)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping consumer", "queue", queueName)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("queue: delivery channel closed")
			}
			outcome := Process(ctx, ch, h, msg, queueName)
			if obs != nil {
				obs.QueueMessage(outcome)
			}
		}
	}
}
