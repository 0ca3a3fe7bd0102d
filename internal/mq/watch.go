package mq

import (
	"context"
	"log/slog"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// Watch подписывает временную очередь на события саги sagaName
// (пустое имя — все саги) и вызывает handle для каждого события.
// Очередь переобъявляется после переподключения. Блокирует до отмены ctx.
func Watch(ctx context.Context, conn *Connection, logger *slog.Logger, sagaName string, handle func(domain.Event) error) error {
	pattern := WatchPattern(sagaName)

	sub := NewSubscriber(conn, logger, SubscriberConfig{
		Declare: func(ctx context.Context, conn *Connection) (Queue, error) {
			return DeclareWatchQueue(ctx, conn, pattern)
		},
		Handle: func(_ context.Context, ev domain.Event) error {
			return handle(ev)
		},
		Prefetch: 16,
	})

	return sub.Run(ctx)
}
