package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultCheckpointInterval = 1 * time.Minute

// CheckpointWorker periodically emits self-model snapshot checkpoints when
// the snapshot has changed since the last one.
type CheckpointWorker struct {
	model  *ModelService
	logger *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewCheckpointWorker(model *ModelService, logger *zap.Logger) *CheckpointWorker {
	return &CheckpointWorker{
		model:    model,
		logger:   logger,
		interval: defaultCheckpointInterval,
		stopCh:   make(chan struct{}),
	}
}

func (w *CheckpointWorker) SetInterval(d time.Duration) {
	if d > 0 {
		w.interval = d
	}
}

func (w *CheckpointWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("checkpoint worker started", zap.Duration("interval", w.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if _, err := w.model.Checkpoint(ctx); err != nil {
					w.logger.Error("checkpoint failed", zap.Error(err))
				}
				cancel()
			case <-w.stopCh:
				w.logger.Info("checkpoint worker stopped")
				return
			}
		}
	}()
}

func (w *CheckpointWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}
