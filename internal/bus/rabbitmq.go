package bus

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const dialAttempts = 10

// RabbitMQ wraps one AMQP connection with a channel in confirm mode, so a
// publish only succeeds once the broker has durably accepted the message.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

// NewRabbitMQ dials the broker, retrying because RabbitMQ takes time to start
// in Docker, and puts the channel into confirm mode.
func NewRabbitMQ(url string, log *zap.Logger) (*RabbitMQ, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn("failed to connect to RabbitMQ, retrying in 2s",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", dialAttempts),
			zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &RabbitMQ{conn: conn, channel: ch, log: log}, nil
}

// DeclareQueue ensures a durable queue exists for the topic.
func (r *RabbitMQ) DeclareQueue(topic string) error {
	_, err := r.channel.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	return nil
}

// Publish sends a persistent message and waits for the broker confirm. The
// caller must not mark the source outbox row processed unless this returns nil.
func (r *RabbitMQ) Publish(ctx context.Context, id string, topic string, payload []byte) error {
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx,
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:    id,
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for broker confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("message %s nacked by broker", id)
	}

	r.log.Debug("published message",
		zap.String("message_id", id),
		zap.String("topic", topic))
	return nil
}

// Consume delivers messages from the topic's queue to the handler until ctx
// is cancelled. A handler error nacks with requeue; success acks.
func (r *RabbitMQ) Consume(ctx context.Context, topic string, h Handler) error {
	if err := r.DeclareQueue(topic); err != nil {
		return err
	}

	msgs, err := r.channel.ConsumeWithContext(ctx,
		topic, // queue
		"",    // consumer
		false, // auto-ack: manual ack keeps redelivery on failure
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer on %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", topic)
			}

			if err := h(ctx, d.Body); err != nil {
				r.log.Error("failed to process message, requeueing",
					zap.String("message_id", d.MessageId),
					zap.String("topic", topic),
					zap.Error(err))
				if nackErr := d.Nack(false, true); nackErr != nil {
					r.log.Error("nack failed", zap.Error(nackErr))
				}
				continue
			}

			if err := d.Ack(false); err != nil {
				r.log.Error("ack failed",
					zap.String("message_id", d.MessageId),
					zap.Error(err))
			}
		}
	}
}

func (r *RabbitMQ) Close() {
	r.channel.Close()
	r.conn.Close()
}
