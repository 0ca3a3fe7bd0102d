// Sagaflow CLI — инструмент командной строки для просмотра, продолжения
// и запуска саг.
//
// Использование:
//
//	sagaflow [--json] [--verbose] <command> [flags]
//
// Команды:
//
//	list    Незавершённые саги
//	show    Запись саги
//	resume  Продолжить сагу
//	signup  Запустить сагу регистрации
//	watch   Поток событий саг
//
// Хранилище и RabbitMQ настраиваются теми же переменными окружения,
// что и sagaflow-orchestrator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Sagaflow/internal/cli"
	"github.com/shaiso/Sagaflow/internal/config"
	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/mq"
	"github.com/shaiso/Sagaflow/internal/repo"
	"github.com/shaiso/Sagaflow/internal/saga"
	"github.com/shaiso/Sagaflow/internal/telemetry"
	"github.com/shaiso/Sagaflow/internal/workflows"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "sagaflow",
		Short:         "Sagaflow CLI — saga orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr at DEBUG level")

	var env *cli.Env
	var closers []func() error

	envFn := func(ctx context.Context) (*cli.Env, error) {
		if env != nil {
			return env, nil
		}

		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}

		level := "WARN"
		if verbose {
			level = "DEBUG"
		}
		logger := telemetry.SetupLogger(level, "text", os.Stderr)

		e, c, err := newEnv(ctx, cfg, logger)
		closers = c
		if err != nil {
			return nil, err
		}
		env = e
		return env, nil
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewListCmd(envFn, outputFn),
		cli.NewShowCmd(envFn, outputFn),
		cli.NewResumeCmd(envFn, outputFn),
		cli.NewSignupCmd(envFn, outputFn),
		cli.NewWatchCmd(envFn, outputFn),
	)

	// Ctrl+C завершает watch без ошибки
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i]()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newEnv открывает хранилище и собирает оркестраторы.
// RabbitMQ подключается, только если задан RABBITMQ_URL.
func newEnv(ctx context.Context, cfg config.Config, logger *slog.Logger) (*cli.Env, []func() error, error) {
	var closers []func() error

	store, err := repo.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, closers, fmt.Errorf("open saga store: %w", err)
	}
	closers = append(closers, store.Close)

	var notifier saga.Notifier
	var conn *mq.Connection
	if url := cfg.MQURL(false); url != "" {
		conn, err = mq.NewConnection(url, logger)
		if err != nil {
			return nil, closers, fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		closers = append(closers, conn.Close)
		notifier = mq.NewNotifier(mq.NewPublisher(conn, logger))
	}

	def, err := workflows.Signup(cfg.SignupServiceURL, workflows.SignupOptions{})
	if err != nil {
		return nil, closers, err
	}
	signup, err := saga.New(def, saga.Config{Store: store, Notifier: notifier, Logger: logger})
	if err != nil {
		return nil, closers, err
	}

	env := &cli.Env{
		Store:    store,
		Resumers: map[string]saga.Resumer{signup.Name(): signup},
		Signup:   signup,
		Subscribe: func(ctx context.Context, sagaName string, handle func(domain.Event) error) error {
			if conn == nil {
				c, err := mq.NewConnection(cfg.MQURL(true), logger)
				if err != nil {
					return fmt.Errorf("connect to RabbitMQ: %w", err)
				}
				defer c.Close()
				return mq.Watch(ctx, c, logger, sagaName, handle)
			}
			return mq.Watch(ctx, conn, logger, sagaName, handle)
		},
	}

	return env, closers, nil
}
