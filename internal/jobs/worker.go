package jobs

import (
	"context"
	"time"

	"github.com/cloo-solutions/amm/internal/logging"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker represents a background job worker
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the processor once immediately and then on every tick until
// the context is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	logger := logging.From(ctx).With("worker", w.name)
	logger.Info("worker started", "poll_interval", w.pollInterval)

	w.run(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped", "reason", "context cancelled")
			return
		case <-w.stopChan:
			logger.Info("worker stopped", "reason", "stop signal received")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		logging.From(ctx).Error("error processing jobs", "worker", w.name, "error", err)
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
