package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// MessageTypeSagaEvent — событие жизненного цикла саги.
const MessageTypeSagaEvent MessageType = "saga.event"

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка в JSON.
	Payload xjson.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage кодирует payload и оборачивает его в Message.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	data, err := xjson.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с ключом routingKey.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	pub, err := publishing(msg)
	if err != nil {
		return err
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, pub); err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

func publishing(msg *Message) (amqp.Publishing, error) {
	body, err := xjson.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}, nil
}

// Notifier публикует события саг в ExchangeEvents.
// Реализует saga.Notifier.
type Notifier struct {
	publisher *Publisher
	exchange  Exchange
}

// NewNotifier создаёт Notifier поверх Publisher.
func NewNotifier(p *Publisher) *Notifier {
	return &Notifier{publisher: p, exchange: ExchangeEvents}
}

// Publish публикует событие с ключом маршрутизации ev.Type.
func (n *Notifier) Publish(ctx context.Context, ev domain.Event) error {
	msg, err := NewMessage(MessageTypeSagaEvent, ev)
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.Type, err)
	}
	return n.publisher.Publish(ctx, n.exchange, RoutingKey(ev.Type), msg)
}
