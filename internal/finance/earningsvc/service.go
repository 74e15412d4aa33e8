// Package earningsvc releases seller earnings into withdrawable balance. The
// scheduled poller and the admin override both funnel through the same
// idempotency-guarded release posting.
package earningsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/platform-finance-ledger/internal/domain/audit"
	"github.com/platform-finance-ledger/internal/domain/earning"
	idemdomain "github.com/platform-finance-ledger/internal/domain/idempotency"
	"github.com/platform-finance-ledger/internal/domain/ledger"
	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/finance/auditsvc"
	"github.com/platform-finance-ledger/internal/finance/idempotency"
)

// Service defines earning release operations
type Service interface {
	// ReleaseSingleEarning posts the balanced release entry set and marks the
	// earning RELEASED, exactly once. A replayed release returns the stored
	// earning with no error so the poller can treat redelivery as done.
	ReleaseSingleEarning(ctx context.Context, earningID uuid.UUID) (*earning.SellerEarning, error)

	// AdminOverrideRelease makes an earning immediately eligible by forcing
	// its expected clear date to now. It never flips the status itself; the
	// release posting stays on the one guarded path.
	AdminOverrideRelease(ctx context.Context, adminID string, earningID uuid.UUID, reason string) (*earning.SellerEarning, error)

	GetEarning(ctx context.Context, earningID uuid.UUID) (*earning.SellerEarning, error)

	// ListReleasable returns the earnings due for release, oldest first.
	ListReleasable(ctx context.Context, now time.Time, limit int) ([]*earning.SellerEarning, error)
}

// ServiceImpl implements the Service interface
type ServiceImpl struct {
	idem        *idempotency.Manager
	earningRepo earning.Repository
	ledgerRepo  ledger.Repository
	recorder    *auditsvc.Recorder
	logger      *slog.Logger
}

// NewService creates a new earning release service
func NewService(
	logger *slog.Logger,
	idem *idempotency.Manager,
	earningRepo earning.Repository,
	ledgerRepo ledger.Repository,
	recorder *auditsvc.Recorder,
) Service {
	return &ServiceImpl{
		idem:        idem,
		earningRepo: earningRepo,
		ledgerRepo:  ledgerRepo,
		recorder:    recorder,
		logger:      logger,
	}
}

// ReleaseSingleEarning moves one cleared earning into the seller's available
// balance through a balanced five-entry posting.
func (s *ServiceImpl) ReleaseSingleEarning(ctx context.Context, earningID uuid.UUID) (*earning.SellerEarning, error) {
	pre, err := s.earningRepo.GetByID(ctx, earningID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("EARNING_RELEASE:earning:%s", earningID)

	released, err := idempotency.Run(ctx, s.idem, key, "EARNING_RELEASE", pre.SellerCompanyID, func(tx pgx.Tx) (*earning.SellerEarning, error) {
		earningRepo := s.earningRepo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)
		now := time.Now()

		e, err := earningRepo.GetForUpdate(ctx, earningID)
		if err != nil {
			return nil, err
		}
		if e.Status == earning.StatusReleased {
			return nil, earning.ErrAlreadyReleased{EarningID: e.ID}
		}
		if !e.Eligible(now) {
			return nil, earning.ErrNotEligible{EarningID: e.ID}
		}

		sellerAccount, err := ledgerRepo.EnsureAccount(ctx, e.SellerCompanyID, e.Currency)
		if err != nil {
			return nil, err
		}
		platformAccount, err := ledgerRepo.EnsureAccount(ctx, shared.PlatformTenant, e.Currency)
		if err != nil {
			return nil, err
		}

		group := &ledger.Group{
			ID:             uuid.New(),
			IdempotencyKey: key,
			TenantID:       shared.PlatformTenant,
			Type:           ledger.GroupEarningRelease,
			Description:    fmt.Sprintf("Earning Release for shipment %s", e.ShipmentID),
			CreatedAt:      now,
		}
		if err := ledgerRepo.CreateGroup(ctx, group); err != nil {
			return nil, err
		}

		// Escrow unwinds at gross; the interco pair carries net plus any
		// chargebacks already netted out of the payable.
		interco := e.NetAmount.Add(e.ChargebackAmount)
		entries := []*ledger.Entry{
			releaseEntry(shared.PlatformTenant, platformAccount.ID, group.ID, ledger.AccountEscrowLiability, ledger.Debit, e.GrossAmount, e.Currency, e.ShipmentID, now),
			releaseEntry(shared.PlatformTenant, platformAccount.ID, group.ID, ledger.AccountPlatformRevenueCommission, ledger.Credit, e.CommissionAmount, e.Currency, e.ShipmentID, now),
			releaseEntry(shared.PlatformTenant, platformAccount.ID, group.ID, ledger.AccountPlatformIntercoClearing, ledger.Credit, interco, e.Currency, e.ShipmentID, now),
			releaseEntry(e.SellerCompanyID, sellerAccount.ID, group.ID, ledger.AccountSellerIntercoClearing, ledger.Debit, interco, e.Currency, e.ShipmentID, now),
			releaseEntry(e.SellerCompanyID, sellerAccount.ID, group.ID, ledger.AccountSellerPayable, ledger.Credit, e.NetAmount, e.Currency, e.ShipmentID, now),
		}
		if err := ledgerRepo.AppendEntries(ctx, entries); err != nil {
			return nil, err
		}

		if err := ledgerRepo.AdjustAvailableBalance(ctx, sellerAccount.ID, e.NetAmount); err != nil {
			return nil, err
		}

		if err := earningRepo.MarkReleased(ctx, e.ID, now); err != nil {
			return nil, err
		}

		e.Status = earning.StatusReleased
		e.ReleasedAt = &now
		e.UpdatedAt = now

		s.logger.Info("Seller earning released",
			"earning_id", e.ID.String(),
			"seller_company_id", e.SellerCompanyID,
			"net_amount", e.NetAmount.String(),
		)
		return e, nil
	})
	if err != nil {
		// Redelivery of an already released earning is done work, not a fault.
		if errors.Is(err, idemdomain.ErrAlreadySucceeded) {
			return s.earningRepo.GetByID(ctx, earningID)
		}
		return nil, err
	}

	return released, nil
}

// AdminOverrideRelease forces an earning's expected clear date to now so the
// release engine picks it up, and audits the override.
func (s *ServiceImpl) AdminOverrideRelease(ctx context.Context, adminID string, earningID uuid.UUID, reason string) (*earning.SellerEarning, error) {
	key := fmt.Sprintf("ADMIN_EARNING_RELEASE:%s", earningID)

	return idempotency.Run(ctx, s.idem, key, "ADMIN_EARNING_RELEASE", shared.PlatformTenant, func(tx pgx.Tx) (*earning.SellerEarning, error) {
		earningRepo := s.earningRepo.WithTx(tx)

		e, err := earningRepo.GetForUpdate(ctx, earningID)
		if err != nil {
			return nil, err
		}
		if e.Status == earning.StatusReleased {
			return nil, earning.ErrAlreadyReleased{EarningID: e.ID}
		}

		now := time.Now()
		var priorClearDate *time.Time
		if e.ExpectedClearDate != nil {
			prior := *e.ExpectedClearDate
			priorClearDate = &prior
		}

		if e.ExpectedClearDate == nil || e.ExpectedClearDate.After(now) {
			if err := earningRepo.SetExpectedClearDate(ctx, e.ID, now); err != nil {
				return nil, err
			}
			e.ExpectedClearDate = &now
		}

		err = s.recorder.Record(ctx, tx, shared.PlatformTenant, audit.ActionEarningManualRelease, adminID, e.ID.String(), "SELLER_EARNING", map[string]interface{}{
			"reason":           reason,
			"prior_clear_date": priorClearDate,
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("Earning release override recorded", "earning_id", e.ID.String(), "admin_id", adminID)
		return e, nil
	})
}

// GetEarning returns one earning by id
func (s *ServiceImpl) GetEarning(ctx context.Context, earningID uuid.UUID) (*earning.SellerEarning, error) {
	return s.earningRepo.GetByID(ctx, earningID)
}

// ListReleasable returns the earnings due for release, oldest first
func (s *ServiceImpl) ListReleasable(ctx context.Context, now time.Time, limit int) ([]*earning.SellerEarning, error) {
	return s.earningRepo.ListReleasable(ctx, now, limit)
}

func releaseEntry(tenantID string, accountID, groupID uuid.UUID, accountType ledger.AccountType, direction ledger.Direction, amount decimal.Decimal, currency string, shipmentID uuid.UUID, now time.Time) *ledger.Entry {
	return &ledger.Entry{
		ID:              uuid.New(),
		TenantID:        tenantID,
		LedgerAccountID: accountID,
		GroupID:         groupID,
		AccountType:     accountType,
		Direction:       direction,
		Amount:          amount,
		Currency:        currency,
		RefType:         "SHIPMENT",
		ReferenceID:     shipmentID.String(),
		CreatedAt:       now,
	}
}
