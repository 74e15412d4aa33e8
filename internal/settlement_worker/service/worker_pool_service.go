package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/platform-finance-ledger/internal/domain/shipping"
	"github.com/platform-finance-ledger/internal/finance/shippingsvc"
)

// WorkerPoolIngestService fans invoice ingestion out over a bounded worker
// pool. The Kafka handler still blocks per message, so offsets are only
// committed after the guarded ingest transaction finishes.
type WorkerPoolIngestService struct {
	baseService IngestService
	pool        *ants.Pool
	logger      *slog.Logger
	// Use a mutex to protect access to the results map
	mu      sync.Mutex
	results map[string]chan ingestResult
}

type ingestResult struct {
	invoice *shipping.Invoice
	err     error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolIngestService(
	baseService IngestService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolIngestService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolIngestService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan ingestResult),
	}, nil
}

// IngestInvoice submits an invoice to the worker pool and waits for the result
func (s *WorkerPoolIngestService) IngestInvoice(ctx context.Context, input *shippingsvc.IngestInput) (*shipping.Invoice, error) {
	naturalKey := input.CarrierID + ":" + input.InvoiceNo

	s.logger.Info("Submitting carrier invoice to worker pool",
		"carrier_id", input.CarrierID,
		"invoice_no", input.InvoiceNo,
	)

	resultChan := make(chan ingestResult, 1)

	s.mu.Lock()
	s.results[naturalKey] = resultChan
	s.mu.Unlock()

	// Create a copy of the input to avoid data races
	inputCopy := *input

	err := s.pool.Submit(func() {
		inv, err := s.baseService.IngestInvoice(ctx, &inputCopy)

		resultChan <- ingestResult{invoice: inv, err: err}

		s.mu.Lock()
		delete(s.results, naturalKey)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		s.mu.Lock()
		delete(s.results, naturalKey)
		close(resultChan)
		s.mu.Unlock()

		s.logger.Error("Failed to submit invoice to worker pool",
			"carrier_id", input.CarrierID,
			"invoice_no", input.InvoiceNo,
			"error", err,
		)
		return nil, err
	}

	res := <-resultChan
	return res.invoice, res.err
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolIngestService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolIngestService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolIngestService) Capacity() int {
	return s.pool.Cap()
}
