// Package mq публикует и потребляет события саг через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — Publisher и Notifier (реализация saga.Notifier)
//   - consumer.go   — Subscriber, потребление событий саг
//   - watch.go      — временная подписка для `sagaflow watch`
//
// События публикуются в topic-обменник sagaflow.events с ключом
// saga.<name>.<kind>, например saga.signup.step.completed.
package mq
