package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"user-hub/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBackend publishes events to a durable topic exchange so a separate
// mail worker can deliver them. Routing key is email.<type>.
type AMQPBackend struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPBackend(cfg config.AMQPConfig) (*AMQPBackend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "users.events"
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPBackend{conn: conn, ch: ch, exchange: exchange}, nil
}

func (b *AMQPBackend) Name() string {
	return "amqp"
}

func (b *AMQPBackend) Deliver(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return b.ch.PublishWithContext(
		ctx,
		b.exchange,
		"email."+string(evt.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   evt.ID.String(),
			Timestamp:   evt.OccurredAt,
			Body:        body,
		},
	)
}

func (b *AMQPBackend) Close() error {
	if b == nil {
		return nil
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
