// Sagaflow Orchestrator — сервис выполнения саг.
//
// Orchestrator:
//   - Регистрирует определения саг (workflows)
//   - Публикует события саг в RabbitMQ (если доступен)
//   - По расписанию продолжает зависшие саги (recovery)
//   - Отдаёт /healthz и /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shaiso/Sagaflow/internal/config"
	"github.com/shaiso/Sagaflow/internal/mq"
	"github.com/shaiso/Sagaflow/internal/recovery"
	"github.com/shaiso/Sagaflow/internal/repo"
	"github.com/shaiso/Sagaflow/internal/saga"
	"github.com/shaiso/Sagaflow/internal/telemetry"
	"github.com/shaiso/Sagaflow/internal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting sagaflow-orchestrator", "store", cfg.Store)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Error("failed to setup tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	store, err := repo.Open(ctx, cfg.StoreConfig())
	if err != nil {
		logger.Error("failed to open saga store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("saga store opened", "backend", cfg.Store)

	metrics := telemetry.NewDefaultMetrics()

	// RabbitMQ
	var notifier saga.Notifier
	mqConn, err := mq.NewConnection(cfg.MQURL(true), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, events are not published", "error", err)
	} else {
		defer mqConn.Close()

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		logger.Debug(mq.TopologyInfo())

		notifier = mq.NewNotifier(mq.NewPublisher(mqConn, logger))
	}

	// Определения саг
	signupDef, err := workflows.Signup(cfg.SignupServiceURL, workflows.SignupOptions{})
	if err != nil {
		logger.Error("invalid signup definition", "error", err)
		os.Exit(1)
	}
	signup, err := saga.New(signupDef, saga.Config{
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Error("failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	// Recovery
	rec := recovery.New(recovery.Config{
		Lister:     store,
		Resumers:   []saga.Resumer{signup},
		Logger:     logger,
		Metrics:    metrics,
		BatchSize:  cfg.RecoveryBatchSize,
		StaleAfter: cfg.RecoveryStaleAfter,
	})
	if err := rec.Start(ctx, cfg.RecoverySchedule); err != nil {
		logger.Error("failed to start recovery", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.OrchPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}

	rec.Stop()
	logger.Info("sagaflow-orchestrator stopped")
}
