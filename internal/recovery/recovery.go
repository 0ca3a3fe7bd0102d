package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/saga"
	"github.com/shaiso/Sagaflow/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultBatchSize  = 100
	DefaultStaleAfter = time.Minute
)

// ErrAlreadyStarted — Start вызван повторно.
var ErrAlreadyStarted = errors.New("recoverer already started")

// Lister — источник незавершённых саг (repo.Backend).
type Lister interface {
	ListUnfinished(ctx context.Context, before time.Time, limit int) ([]domain.Record, error)
}

// Recoverer находит зависшие саги и продолжает их через Resumer
// соответствующего определения.
type Recoverer struct {
	lister     Lister
	resumers   map[string]saga.Resumer
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	batchSize  int
	staleAfter time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

// Config — конфигурация Recoverer.
type Config struct {
	Lister     Lister
	Resumers   []saga.Resumer
	Logger     *slog.Logger
	Metrics    *telemetry.Metrics
	BatchSize  int           // саг за один тик (default: 100)
	StaleAfter time.Duration // сага считается зависшей, если не обновлялась столько (default: 1m)
}

// TickResult — итог одного обхода.
type TickResult struct {
	Found   int
	Resumed int
	Skipped int
	Failed  int
}

// New создаёт Recoverer.
func New(cfg Config) *Recoverer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resumers := make(map[string]saga.Resumer, len(cfg.Resumers))
	for _, r := range cfg.Resumers {
		resumers[r.Name()] = r
	}

	return &Recoverer{
		lister:     cfg.Lister,
		resumers:   resumers,
		logger:     logger.With("component", "recovery"),
		metrics:    cfg.Metrics,
		batchSize:  batchSize,
		staleAfter: staleAfter,
	}
}

// Tick выполняет один обход.
//
// 1. Находит незавершённые саги, не обновлявшиеся дольше StaleAfter
// 2. Для каждой вызывает Resume у Resumer с тем же именем
//
// Ошибки одной саги не блокируют обработку остальных. Саги без
// зарегистрированного определения и саги, уже выполняемые в этом
// процессе, пропускаются.
func (r *Recoverer) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	r.metrics.RecoveryTick()

	records, err := r.lister.ListUnfinished(ctx, time.Now().Add(-r.staleAfter), r.batchSize)
	if err != nil {
		return res, fmt.Errorf("list unfinished sagas: %w", err)
	}
	res.Found = len(records)
	if res.Found == 0 {
		return res, nil
	}

	r.logger.Debug("found stale sagas", "count", res.Found)

	for i := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		switch r.recover(ctx, &records[i]) {
		case outcomeResumed:
			res.Resumed++
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Failed++
		}
	}

	r.logger.Info("recovery tick completed",
		"found", res.Found,
		"resumed", res.Resumed,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)

	return res, nil
}

type outcome int

const (
	outcomeResumed outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (r *Recoverer) recover(ctx context.Context, rec *domain.Record) outcome {
	logger := telemetry.WithSaga(r.logger, rec.Name, rec.ID)

	resumer, ok := r.resumers[rec.Name]
	if !ok {
		logger.Warn("no definition registered for saga, skipping", "status", rec.Status)
		return outcomeSkipped
	}

	got, err := resumer.Resume(ctx, rec.ID)
	switch {
	case errors.Is(err, saga.ErrSagaActive):
		logger.Debug("saga is already running, skipping")
		return outcomeSkipped

	case got != nil && got.IsFinished():
		// сага дошла до терминального статуса; err — причина отката, если он был
		if err != nil {
			logger.Info("recovered saga finished with failure", "status", got.Status, "error", err)
		}
		return outcomeResumed

	case err != nil:
		logger.Error("failed to recover saga", "error", err)
		return outcomeFailed
	}

	return outcomeResumed
}

// Start запускает Tick по расписанию schedule.
// Пересекающиеся тики пропускаются.
func (r *Recoverer) Start(ctx context.Context, schedule string) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return ErrAlreadyStarted
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(r.logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := c.AddFunc(schedule, func() {
		if _, err := r.Tick(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("recovery tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule recovery: %w", err)
	}

	c.Start()
	r.cron = c
	r.logger.Info("recovery started", "schedule", schedule, "stale_after", r.staleAfter)

	return nil
}

// Stop останавливает расписание и ждёт завершения текущего тика.
func (r *Recoverer) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	r.logger.Info("recovery stopped")
}
