package jobs

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cloo-solutions/amm/internal/logging"
)

// ExpiredCounter reports how many interactions fall outside retention.
type ExpiredCounter interface {
	ExpiredInteractions(ctx context.Context) (int, error)
}

// RetentionScanner periodically reports interactions past the retention
// window. Records are never deleted.
type RetentionScanner struct {
	counter ExpiredCounter
	last    atomic.Int64
}

func NewRetentionScanner(counter ExpiredCounter) *RetentionScanner {
	return &RetentionScanner{counter: counter}
}

// ProcessJobs implements the JobProcessor interface
func (s *RetentionScanner) ProcessJobs(ctx context.Context) error {
	n, err := s.counter.ExpiredInteractions(ctx)
	if err != nil {
		return fmt.Errorf("failed to count expired interactions: %w", err)
	}
	s.last.Store(int64(n))

	if n > 0 {
		logging.From(ctx).Warn("interactions past retention window", "count", n)
	}
	return nil
}

// LastCount returns the result of the most recent scan.
func (s *RetentionScanner) LastCount() int {
	return int(s.last.Load())
}
