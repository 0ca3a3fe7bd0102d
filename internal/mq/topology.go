package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	// ExchangeEvents — topic-обменник событий саг.
	// Ключ маршрутизации совпадает с типом события: saga.<name>.<kind>.
	ExchangeEvents Exchange = "sagaflow.events"

	// ExchangeDLQ — обменник для отклонённых сообщений.
	ExchangeDLQ Exchange = "sagaflow.dlq"
)

const (
	QueueAudit     Queue = "sagaflow.events.audit"
	QueueDLQEvents Queue = "sagaflow.dlq.events"
)

const (
	RoutingKeyAllEvents RoutingKey = "saga.#"
	RoutingKeyDLQEvents RoutingKey = "events"
)

// SetupTopology объявляет обменники и очереди Sagaflow.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// аудит: отклонённые события уходят в DLQ
		{QueueAudit, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
		}},
		{QueueDLQEvents, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueAudit, RoutingKeyAllEvents, ExchangeEvents},
		{QueueDLQEvents, RoutingKeyDLQEvents, ExchangeDLQ},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// WatchPattern возвращает ключ подписки на события саги name
// (пустое имя — все саги).
func WatchPattern(name string) RoutingKey {
	if name == "" {
		return RoutingKeyAllEvents
	}
	return RoutingKey("saga." + name + ".#")
}

// DeclareWatchQueue создаёт временную эксклюзивную очередь с именем от брокера
// и привязывает её к ExchangeEvents по pattern. Очередь удаляется вместе
// с соединением.
func DeclareWatchQueue(ctx context.Context, conn *Connection, pattern RoutingKey) (Queue, error) {
	var name Queue
	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}

		q, err := ch.QueueDeclare(
			"",    // name (генерирует брокер)
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare watch queue: %w", err)
		}

		if err := ch.QueueBind(q.Name, string(pattern), string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind watch queue %s: %w", q.Name, err)
		}

		name = Queue(q.Name)
		return nil
	})
	return name, err
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Sagaflow RabbitMQ Topology:

    sagaflow.events (topic)
    ├── sagaflow.events.audit [routing: saga.#]
    │       DLQ: sagaflow.dlq.events
    └── <exclusive watch queues> [routing: saga.<name>.#]
            Consumer: sagaflow watch

    sagaflow.dlq (direct)
    └── sagaflow.dlq.events [routing: events]
            Manual processing
  `
}
