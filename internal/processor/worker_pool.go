package processor

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/sportsbook-betting-core/internal/domain/shared"
)

// WorkerPoolService runs settlement requests on a bounded goroutine pool.
// Each ProcessRequest call blocks until its worker finishes, so the Kafka
// consumer's offset commit still reflects the real outcome; the pool bounds
// the concurrency of requests arriving from multiple partitions.
type WorkerPoolService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

// NewWorkerPoolService wraps a processing service with an ants pool of the
// given size.
func NewWorkerPoolService(logger *slog.Logger, baseService ProcessingService, size int) (*WorkerPoolService, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ProcessRequest submits the request to the pool and waits for its result.
func (s *WorkerPoolService) ProcessRequest(ctx context.Context, request *shared.SettlementRequest) error {
	resultChan := make(chan error, 1)

	requestCopy := *request
	if err := s.pool.Submit(func() {
		resultChan <- s.baseService.ProcessRequest(ctx, &requestCopy)
	}); err != nil {
		s.logger.Error("Failed to submit settlement request to worker pool",
			"request_id", request.RequestID.String(),
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully releases the worker pool.
func (s *WorkerPoolService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of busy workers.
func (s *WorkerPoolService) Running() int {
	return s.pool.Running()
}

// Capacity returns the size of the pool.
func (s *WorkerPoolService) Capacity() int {
	return s.pool.Cap()
}
