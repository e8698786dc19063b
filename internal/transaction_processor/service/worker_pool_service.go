package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// WorkerPoolProcessingService fans deposit processing out over an ants pool
// while preserving the synchronous contract the Kafka consumer expects.
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
	// Protects the in-flight results map.
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan error),
	}, nil
}

// ProcessDeposit submits a deposit event to the worker pool and waits for
// the outcome, so the consumer's offset commit still reflects the result.
func (s *WorkerPoolProcessingService) ProcessDeposit(ctx context.Context, request *shared.MutationRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Submitting deposit to worker pool",
		"request_id", request.RequestID.String(),
		"user_id", request.UserID,
	)

	resultChan := make(chan error, 1)

	requestID := request.RequestID.String()
	s.mu.Lock()
	s.results[requestID] = resultChan
	s.mu.Unlock()

	// Copy the request to avoid data races with the caller.
	requestCopy := *request

	err := s.pool.Submit(func() {
		err := s.baseService.ProcessDeposit(ctx, &requestCopy)

		resultChan <- err

		s.mu.Lock()
		delete(s.results, requestID)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		s.mu.Lock()
		delete(s.results, requestID)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit deposit to worker pool",
			"request_id", request.RequestID.String(),
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
