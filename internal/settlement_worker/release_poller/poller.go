package release_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/platform-finance-ledger/internal/config"
	"github.com/platform-finance-ledger/internal/domain/earning"
)

// ReleaseService is the slice of the earning service the poller needs.
// Satisfied by earningsvc.Service.
type ReleaseService interface {
	ListReleasable(ctx context.Context, now time.Time, limit int) ([]*earning.SellerEarning, error)
	ReleaseSingleEarning(ctx context.Context, earningID uuid.UUID) (*earning.SellerEarning, error)
}

// Poller releases cleared seller earnings whose expected clear date has
// passed. Each release runs under its own idempotency key, so a crash
// mid-batch just means the next tick picks the survivors up again.
type Poller struct {
	earningService ReleaseService
	logger         *slog.Logger
	pollInterval   time.Duration
	batchSize      int
}

func NewPoller(
	cfg *config.ReleaseConfig,
	earningService ReleaseService,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		earningService: earningService,
		logger:         logger,
		pollInterval:   cfg.PollingInterval,
		batchSize:      cfg.BatchSize,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Release Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Release Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Release Poller tick: releasing due earnings")
			if err := p.releaseDueEarnings(ctx); err != nil {
				p.logger.Error("Error during batch release of due earnings", "error", err)
			}
		}
	}
}

func (p *Poller) releaseDueEarnings(ctx context.Context) error {
	earnings, err := p.earningService.ListReleasable(ctx, time.Now(), p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list releasable earnings: %w", err)
	}

	if len(earnings) == 0 {
		p.logger.Debug("No releasable earnings found.")
		return nil
	}

	p.logger.Info("Fetched releasable earnings", "count", len(earnings))

	for _, e := range earnings {
		released, err := p.earningService.ReleaseSingleEarning(ctx, e.ID)
		if err != nil {
			// One stuck earning must not block the rest of the batch.
			p.logger.Error("Failed to release earning",
				"earning_id", e.ID, "shipment_id", e.ShipmentID, "error", err,
			)
			continue
		}
		p.logger.Info("Released seller earning",
			"earning_id", released.ID,
			"shipment_id", released.ShipmentID,
			"seller_company_id", released.SellerCompanyID,
			"net_amount", released.NetAmount.String(),
		)
	}
	return nil
}
