package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

// errDeliveriesClosed — брокер закрыл канал доставки.
var errDeliveriesClosed = errors.New("deliveries channel closed")

// EventHandler обрабатывает событие саги.
// nil — сообщение подтверждается, ошибка — nack.
type EventHandler func(ctx context.Context, ev domain.Event) error

// DeclareFunc объявляет очередь для подписки.
// Вызывается при старте и после каждого переподключения.
type DeclareFunc func(ctx context.Context, conn *Connection) (Queue, error)

// SubscriberConfig — конфигурация Subscriber.
type SubscriberConfig struct {
	// Queue — очередь для потребления. Игнорируется, если задан Declare.
	Queue Queue

	// Declare — объявление очереди на каждом подключении
	// (для exclusive очередей, которые не переживают reconnect).
	Declare DeclareFunc

	// Handle — обработчик событий. Обязателен.
	Handle EventHandler

	// Prefetch (default: 1).
	Prefetch int

	// Requeue — вернуть событие в очередь при ошибке обработчика.
	// Сообщения, которые не удалось разобрать, в очередь не возвращаются.
	Requeue bool
}

// Subscriber потребляет события саг из очереди RabbitMQ.
type Subscriber struct {
	conn   *Connection
	logger *slog.Logger
	cfg    SubscriberConfig
}

// NewSubscriber создаёт Subscriber.
func NewSubscriber(conn *Connection, logger *slog.Logger, cfg SubscriberConfig) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Declare == nil {
		queue := cfg.Queue
		cfg.Declare = func(context.Context, *Connection) (Queue, error) { return queue, nil }
	}

	return &Subscriber{conn: conn, logger: logger, cfg: cfg}
}

// Run потребляет события до отмены ctx.
// После разрыва соединения ждёт переподключения и продолжает.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		// Подписываемся на переподключение до начала сессии, чтобы его не пропустить
		reconnected := s.conn.Reconnected()

		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrConnectionClosed) {
			return err
		}
		s.logger.Warn("subscription interrupted, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnected:
		}
	}
}

// session объявляет очередь и обрабатывает доставки одного канала.
func (s *Subscriber) session(ctx context.Context) error {
	queue, err := s.cfg.Declare(ctx, s.conn)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	var deliveries <-chan amqp.Delivery
	err = s.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(s.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		d, err := ch.ConsumeWithContext(ctx,
			string(queue), // queue
			"",            // consumer tag (auto-generated)
			false,         // auto-ack
			false,         // exclusive
			false,         // no-local
			false,         // no-wait
			nil,           // args
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}
		deliveries = d
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("subscribed", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			s.deliver(ctx, queue, d)
		}
	}
}

// deliver разбирает сообщение и передаёт событие обработчику.
func (s *Subscriber) deliver(ctx context.Context, queue Queue, d amqp.Delivery) {
	var msg Message
	if err := xjson.Unmarshal(d.Body, &msg); err != nil {
		s.logger.Error("dropping malformed message", "queue", queue, "error", err)
		_ = d.Nack(false, false)
		return
	}

	ev, err := ParseEvent(&msg)
	if err != nil {
		s.logger.Error("dropping message", "queue", queue, "message_id", msg.ID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := s.cfg.Handle(ctx, ev); err != nil {
		s.logger.Error("event handler failed",
			"queue", queue,
			"event", ev.Type,
			"saga_id", ev.SagaID,
			"error", err,
		)
		_ = d.Nack(false, s.cfg.Requeue)
		return
	}

	_ = d.Ack(false)
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if len(msg.Payload) == 0 {
		return result, fmt.Errorf("message %s: empty payload", msg.ID)
	}
	if err := xjson.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}

// ParseEvent декодирует событие саги из сообщения.
func ParseEvent(msg *Message) (domain.Event, error) {
	if msg.Type != MessageTypeSagaEvent {
		return domain.Event{}, fmt.Errorf("message %s: unexpected type %q", msg.ID, msg.Type)
	}
	return ParsePayload[domain.Event](msg)
}
