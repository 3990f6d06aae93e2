package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/metrics"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
)

type Config struct {
	PollInterval        time.Duration
	CleanupInterval     time.Duration
	MarkFailedInterval  time.Duration
	ProcessBatchTimeout time.Duration
	BatchSize           int
	MaxRetries          int
}

// OutboxRelay publishes change-feed rows written alongside record mutations.
type OutboxRelay struct {
	records usecase.RecordUseCase
	es      infrastructure.EventsSender
	cfg     Config

	metrics *metrics.PipelineMetrics
	logger  logger.Interface

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	records usecase.RecordUseCase,
	es infrastructure.EventsSender,
	cfg Config,
	m *metrics.PipelineMetrics,
	l logger.Interface,
) *OutboxRelay {
	return &OutboxRelay{
		records: records,
		es:      es,
		cfg:     cfg,
		metrics: m,
		logger:  l,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("OutboxRelay - Start - worker already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	// publish pending rows
	r.worker(r.cfg.PollInterval, func() {
		batchCtx, batchCancel := context.WithTimeout(r.ctx, r.cfg.ProcessBatchTimeout)
		r.processEventsBatch(batchCtx)
		batchCancel()
	})

	// give up on rows that kept failing
	r.worker(r.cfg.MarkFailedInterval, func() {
		err := r.records.MarkMaxRetriesAsFailed(r.ctx, r.cfg.MaxRetries)
		if err != nil {
			r.logger.Error(err, "OutboxRelay - Start - worker - r.records.MarkMaxRetriesAsFailed")
		}
	})

	// drop old processed/failed rows
	r.worker(r.cfg.CleanupInterval, func() {
		err := r.records.CleanupOutbox(r.ctx)
		if err != nil {
			r.logger.Error(err, "OutboxRelay - Start - worker - r.records.CleanupOutbox")
		}
	})

	return nil
}

func (r *OutboxRelay) processEventsBatch(ctx context.Context) {
	events, err := r.records.GetPendingEvents(ctx, r.cfg.BatchSize, r.cfg.MaxRetries)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.records.GetPendingEvents")

		return
	}
	if len(events) == 0 {
		return
	}

	err = r.records.MarkAsProcessingBatch(ctx, events)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.records.MarkAsProcessingBatch")

		return
	}

	err = r.es.SendEvents(ctx, events)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.es.SendEvents")
		r.giveBack(ctx, events)

		return
	}

	err = r.records.MarkAsProcessedBatch(ctx, events)
	if err != nil {
		r.logger.Error(err, "OutboxRelay - processEventsBatch - r.records.MarkAsProcessedBatch")

		return
	}

	r.metrics.Published(len(events))
}

// giveBack returns unsent events to pending with one more retry counted, or
// marks them failed when that retry would be their last.
func (r *OutboxRelay) giveBack(ctx context.Context, events []*entity.OutboxEvent) {
	var retry, exhausted []*entity.OutboxEvent
	for _, e := range events {
		if e.RetryCount+1 >= r.cfg.MaxRetries {
			exhausted = append(exhausted, e)
		} else {
			retry = append(retry, e)
		}
	}

	if len(retry) > 0 {
		if err := r.records.IncrementRetryCountBatch(ctx, retry); err != nil {
			r.logger.Error(err, "OutboxRelay - giveBack - r.records.IncrementRetryCountBatch")
		}
	}

	if len(exhausted) > 0 {
		if err := r.records.MarkAsFailedBatch(ctx, exhausted); err != nil {
			r.logger.Error(err, "OutboxRelay - giveBack - r.records.MarkAsFailedBatch")
			return
		}
		r.logger.Warn("OutboxRelay - giveBack - %d change-feed rows marked failed", len(exhausted))
	}
}

func (r *OutboxRelay) worker(interval time.Duration, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

// Shutdown stops the workers. The sender is owned by the caller.
func (r *OutboxRelay) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("OutboxRelay - Shutdown: %w", ctx.Err())
	}
}
