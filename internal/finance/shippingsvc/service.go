// Package shippingsvc ingests carrier invoices and drives their
// reconciliation: manual matching, disputes, and the chargeback posting that
// settles a matched line against the seller's ledger.
package shippingsvc

import (
	"context"
	"encoding/json"
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
	"github.com/platform-finance-ledger/internal/domain/shipping"
	"github.com/platform-finance-ledger/internal/finance/auditsvc"
	"github.com/platform-finance-ledger/internal/finance/idempotency"
	"github.com/platform-finance-ledger/internal/finance/redact"
)

// IngestInput is one carrier invoice as delivered by the carrier webhook
type IngestInput struct {
	CarrierID   string          `json:"carrier_id"`
	InvoiceNo   string          `json:"invoice_no"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Lines       []IngestLine    `json:"lines"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
}

// IngestLine is one charge line in an ingestion payload
type IngestLine struct {
	TrackingNo   string          `json:"tracking_no"`
	ChargeAmount decimal.Decimal `json:"charge_amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	ServiceLevel string          `json:"service_level,omitempty"`
}

// Validate checks the payload before any database work
func (in *IngestInput) Validate() error {
	if in.CarrierID == "" {
		return errors.New("carrier id is required")
	}
	if in.InvoiceNo == "" {
		return errors.New("invoice number is required")
	}
	if len(in.Lines) == 0 {
		return errors.New("invoice requires at least one line")
	}
	return nil
}

// InvoiceDetail is an invoice joined with its redacted raw carrier payload
type InvoiceDetail struct {
	Invoice    *shipping.Invoice `json:"invoice"`
	RawPayload json.RawMessage   `json:"raw_payload,omitempty"`
}

// Service defines shipping ingestion and reconciliation operations
type Service interface {
	// IngestInvoice creates the invoice and its lines exactly once per
	// (carrier, invoice number). Webhook redelivery returns the existing
	// invoice instead of failing.
	IngestInvoice(ctx context.Context, input *IngestInput) (*shipping.Invoice, error)

	// ManualMatchLine matches a line to a shipment by admin override.
	// Exactly-once per (line, shipment); a replay returns
	// idempotency.ErrAlreadySucceeded.
	ManualMatchLine(ctx context.Context, adminID string, lineID, shipmentID uuid.UUID) (*shipping.InvoiceLine, error)

	// DisputeLine marks a line DISPUTED. Every call is a new audited event;
	// repeated disputes are not deduplicated.
	DisputeLine(ctx context.Context, adminID string, lineID uuid.UUID, reasonCode, note string) (*shipping.InvoiceLine, error)

	// PostChargeback posts the balanced chargeback entry set for a matched
	// line and moves it to RECONCILED. Exactly-once per line; a replay
	// returns the previously created ledger group.
	PostChargeback(ctx context.Context, lineID uuid.UUID) (*ledger.Group, error)

	GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceDetail, error)
	ListInvoices(ctx context.Context, status shipping.InvoiceStatus, cursor string, take int) (*shared.Page[*shipping.Invoice], error)
	ListLinesQueue(ctx context.Context, status shipping.MatchStatus, cursor string, take int) (*shared.Page[*shipping.InvoiceLine], error)
}

// ServiceImpl implements the Service interface
type ServiceImpl struct {
	idem         *idempotency.Manager
	shippingRepo shipping.Repository
	ledgerRepo   ledger.Repository
	earningRepo  earning.Repository
	archive      shipping.Archive
	recorder     *auditsvc.Recorder
	logger       *slog.Logger
}

// NewService creates a new shipping service
func NewService(
	logger *slog.Logger,
	idem *idempotency.Manager,
	shippingRepo shipping.Repository,
	ledgerRepo ledger.Repository,
	earningRepo earning.Repository,
	archive shipping.Archive,
	recorder *auditsvc.Recorder,
) Service {
	return &ServiceImpl{
		idem:         idem,
		shippingRepo: shippingRepo,
		ledgerRepo:   ledgerRepo,
		earningRepo:  earningRepo,
		archive:      archive,
		recorder:     recorder,
		logger:       logger,
	}
}

// IngestInvoice archives the raw payload, then creates the invoice and lines
// in one idempotency-guarded transaction.
func (s *ServiceImpl) IngestInvoice(ctx context.Context, input *IngestInput) (*shipping.Invoice, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Archive before the relational ingest so the original document survives
	// even a failed ingestion attempt.
	var rawRef string
	if len(input.RawPayload) > 0 && s.archive != nil {
		ref, err := s.archive.Store(ctx, input.CarrierID, input.InvoiceNo, input.RawPayload)
		if err != nil {
			return nil, err
		}
		rawRef = ref
	}

	key := fmt.Sprintf("SHIPPING_INGEST:%s:%s", input.CarrierID, input.InvoiceNo)

	inv, err := idempotency.Run(ctx, s.idem, key, "SHIPPING_INGEST", shared.PlatformTenant, func(tx pgx.Tx) (*shipping.Invoice, error) {
		repo := s.shippingRepo.WithTx(tx)
		now := time.Now()

		currency := input.Currency
		if currency == "" {
			currency = shared.DefaultCurrency
		}

		inv := &shipping.Invoice{
			ID:          uuid.New(),
			CarrierID:   input.CarrierID,
			InvoiceNo:   input.InvoiceNo,
			PeriodStart: input.PeriodStart,
			PeriodEnd:   input.PeriodEnd,
			Currency:    currency,
			TotalAmount: input.TotalAmount,
			Status:      shipping.InvoiceParsed,
			RawRef:      rawRef,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repo.CreateInvoice(ctx, inv); err != nil {
			return nil, err
		}

		lines := make([]*shipping.InvoiceLine, 0, len(input.Lines))
		for _, in := range input.Lines {
			lines = append(lines, &shipping.InvoiceLine{
				ID:           uuid.New(),
				InvoiceID:    inv.ID,
				TrackingNo:   in.TrackingNo,
				ChargeAmount: in.ChargeAmount,
				TaxAmount:    in.TaxAmount,
				ServiceLevel: in.ServiceLevel,
				MatchStatus:  shipping.LineUnmatched,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return nil, err
		}
		inv.Lines = lines

		s.logger.Info("Shipping invoice ingested",
			"carrier_id", inv.CarrierID,
			"invoice_no", inv.InvoiceNo,
			"line_count", len(lines),
		)
		return inv, nil
	})
	if err != nil {
		// Redelivery of an already ingested invoice returns the stored one.
		if errors.Is(err, idemdomain.ErrAlreadySucceeded) {
			return s.shippingRepo.GetInvoiceByNaturalKey(ctx, input.CarrierID, input.InvoiceNo)
		}
		return nil, err
	}

	return inv, nil
}

// ManualMatchLine matches a line to a shipment, deriving the seller tenant
// from the shipment's order.
func (s *ServiceImpl) ManualMatchLine(ctx context.Context, adminID string, lineID, shipmentID uuid.UUID) (*shipping.InvoiceLine, error) {
	key := fmt.Sprintf("ADMIN_MATCH_LINE:%s:%s", lineID, shipmentID)

	return idempotency.Run(ctx, s.idem, key, "ADMIN_MATCH_LINE", shared.PlatformTenant, func(tx pgx.Tx) (*shipping.InvoiceLine, error) {
		repo := s.shippingRepo.WithTx(tx)

		line, err := repo.GetLineForUpdate(ctx, lineID)
		if err != nil {
			return nil, err
		}
		if line.Locked() {
			return nil, shipping.ErrLineLocked{LineID: line.ID, Status: line.MatchStatus}
		}

		shipment, err := repo.GetShipmentByID(ctx, shipmentID)
		if err != nil {
			return nil, err
		}
		order, err := repo.GetOrderByID(ctx, shipment.NetworkOrderID)
		if err != nil {
			return nil, err
		}

		line.MatchStatus = shipping.LineMatched
		line.ShipmentID = &shipment.ID
		line.SellerTenantID = order.SellerCompanyID
		line.MatchReason = shipping.MatchReasonManualOverride
		if err := repo.UpdateLineMatch(ctx, line); err != nil {
			return nil, err
		}

		err = s.recorder.Record(ctx, tx, shared.PlatformTenant, audit.ActionShippingLineMatched, adminID, line.ID.String(), "SHIPPING_LINE", map[string]interface{}{
			"shipment_id":      shipment.ID.String(),
			"seller_tenant_id": line.SellerTenantID,
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("Shipping line matched by admin override", "line_id", line.ID.String(), "shipment_id", shipment.ID.String())
		return line, nil
	})
}

// DisputeLine marks a line DISPUTED, recording the reason and prior status
func (s *ServiceImpl) DisputeLine(ctx context.Context, adminID string, lineID uuid.UUID, reasonCode, note string) (*shipping.InvoiceLine, error) {
	// Time-scoped key: each dispute action is a distinct audited event.
	key := fmt.Sprintf("ADMIN_DISPUTE_LINE:%s:%d", lineID, time.Now().UnixMilli())

	return idempotency.Run(ctx, s.idem, key, "ADMIN_DISPUTE_LINE", shared.PlatformTenant, func(tx pgx.Tx) (*shipping.InvoiceLine, error) {
		repo := s.shippingRepo.WithTx(tx)

		line, err := repo.GetLineForUpdate(ctx, lineID)
		if err != nil {
			return nil, err
		}

		priorStatus := line.MatchStatus
		line.MatchStatus = shipping.LineDisputed
		if err := repo.UpdateLineMatch(ctx, line); err != nil {
			return nil, err
		}

		if err := s.rollupInvoiceStatus(ctx, repo, line.InvoiceID); err != nil {
			return nil, err
		}

		err = s.recorder.Record(ctx, tx, shared.PlatformTenant, audit.ActionShippingLineDisputed, adminID, line.ID.String(), "SHIPPING_LINE", map[string]interface{}{
			"reasonCode":   reasonCode,
			"note":         note,
			"prior_status": string(priorStatus),
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("Shipping line disputed", "line_id", line.ID.String(), "reason_code", reasonCode)
		return line, nil
	})
}

// PostChargeback posts the balanced chargeback entry set for a matched line.
// The seller payable debit is capped at the seller's available balance; the
// uncovered remainder becomes a chargeback receivable.
func (s *ServiceImpl) PostChargeback(ctx context.Context, lineID uuid.UUID) (*ledger.Group, error) {
	line, err := s.shippingRepo.GetLineByID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.SellerTenantID == "" || line.ShipmentID == nil {
		return nil, fmt.Errorf("shipping line %s is missing its matched shipment", lineID)
	}
	if line.MatchStatus != shipping.LineMatched && line.MatchStatus != shipping.LineReconciled {
		return nil, shipping.ErrLineLocked{LineID: line.ID, Status: line.MatchStatus}
	}

	inv, err := s.shippingRepo.GetInvoiceByID(ctx, line.InvoiceID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("SHIPPING_POSTING:line:%s", line.ID)
	amount := line.ChargeAmount
	currency := inv.Currency

	group, err := idempotency.Run(ctx, s.idem, key, "SHIPPING_POSTING", line.SellerTenantID, func(tx pgx.Tx) (*ledger.Group, error) {
		shippingRepo := s.shippingRepo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)
		earningRepo := s.earningRepo.WithTx(tx)
		now := time.Now()

		sellerAccount, err := ledgerRepo.EnsureAccount(ctx, line.SellerTenantID, currency)
		if err != nil {
			return nil, err
		}
		platformAccount, err := ledgerRepo.EnsureAccount(ctx, shared.PlatformTenant, currency)
		if err != nil {
			return nil, err
		}

		group := &ledger.Group{
			ID:             uuid.New(),
			IdempotencyKey: key,
			TenantID:       line.SellerTenantID,
			Type:           ledger.GroupShippingChargeback,
			Description:    fmt.Sprintf("Chargeback for shipment %s tracking %s", line.ShipmentID, line.TrackingNo),
			CreatedAt:      now,
		}
		if err := ledgerRepo.CreateGroup(ctx, group); err != nil {
			return nil, err
		}

		// Cap the payable debit at the available balance; the uncovered
		// remainder becomes a receivable against the seller.
		available := decimal.Max(sellerAccount.AvailableBalance, decimal.Zero)
		payableDebit := amount
		receivableDebit := decimal.Zero
		if available.LessThan(amount) {
			payableDebit = available
			receivableDebit = amount.Sub(available)
		}

		entries := []*ledger.Entry{
			newEntry(shared.PlatformTenant, platformAccount.ID, group.ID, ledger.AccountShippingExpense, ledger.Debit, amount, currency, line.ID, now),
			newEntry(shared.PlatformTenant, platformAccount.ID, group.ID, ledger.AccountPlatformIntercoClearing, ledger.Credit, amount, currency, line.ID, now),
			newEntry(line.SellerTenantID, sellerAccount.ID, group.ID, ledger.AccountSellerIntercoClearing, ledger.Credit, amount, currency, line.ID, now),
		}
		if payableDebit.IsPositive() {
			entries = append(entries, newEntry(line.SellerTenantID, sellerAccount.ID, group.ID, ledger.AccountSellerPayable, ledger.Debit, payableDebit, currency, line.ID, now))
		}
		if receivableDebit.IsPositive() {
			entries = append(entries, newEntry(line.SellerTenantID, sellerAccount.ID, group.ID, ledger.AccountSellerChargebackReceivable, ledger.Debit, receivableDebit, currency, line.ID, now))
		}
		if err := ledgerRepo.AppendEntries(ctx, entries); err != nil {
			return nil, err
		}

		if payableDebit.IsPositive() {
			if err := ledgerRepo.AdjustAvailableBalance(ctx, sellerAccount.ID, payableDebit.Neg()); err != nil {
				return nil, err
			}
		}

		line.MatchStatus = shipping.LineReconciled
		if err := shippingRepo.UpdateLineMatch(ctx, line); err != nil {
			return nil, err
		}
		if err := s.rollupInvoiceStatus(ctx, shippingRepo, line.InvoiceID); err != nil {
			return nil, err
		}

		// Refresh the earning's chargeback/net reporting cache. The ledger
		// entries remain the truth.
		e, err := earningRepo.GetByShipmentID(ctx, *line.ShipmentID)
		if err != nil {
			var notFound earning.ErrEarningNotFound
			if !errors.As(err, &notFound) {
				return nil, err
			}
		} else {
			chargeback := e.ChargebackAmount.Add(amount)
			net := e.GrossAmount.Sub(e.CommissionAmount).Sub(chargeback)
			if err := earningRepo.UpdateChargeback(ctx, e.ID, chargeback, net); err != nil {
				return nil, err
			}
		}

		s.logger.Info("Shipping chargeback posted",
			"line_id", line.ID.String(),
			"amount", amount.String(),
			"payable_debit", payableDebit.String(),
			"receivable_debit", receivableDebit.String(),
		)
		return group, nil
	})
	if err != nil {
		// A replay returns the group the first attempt created.
		if errors.Is(err, idemdomain.ErrAlreadySucceeded) {
			return s.ledgerRepo.GetGroupByIdempotencyKey(ctx, key)
		}
		return nil, err
	}

	return group, nil
}

// GetInvoice returns an invoice with its redacted raw carrier payload
func (s *ServiceImpl) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceDetail, error) {
	inv, err := s.shippingRepo.GetInvoiceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &InvoiceDetail{Invoice: inv}
	if inv.RawRef != "" && s.archive != nil {
		doc, err := s.archive.Get(ctx, inv.RawRef)
		if err != nil {
			// The relational row stands on its own when the archive is gone.
			s.logger.Warn("Failed to load archived carrier payload", "ref", inv.RawRef, "error", err)
		} else {
			detail.RawPayload = redact.JSON(doc.Payload)
		}
	}

	return detail, nil
}

// ListInvoices returns invoices newest first, cursor-paginated
func (s *ServiceImpl) ListInvoices(ctx context.Context, status shipping.InvoiceStatus, cursorStr string, take int) (*shared.Page[*shipping.Invoice], error) {
	cursor, err := shared.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	invoices, err := s.shippingRepo.ListInvoices(ctx, status, cursor, take+1)
	if err != nil {
		return nil, err
	}

	page := shared.NewPage(invoices, take, func(i *shipping.Invoice) shared.Cursor {
		return shared.Cursor{CreatedAt: i.CreatedAt, ID: i.ID}
	})
	return &page, nil
}

// ListLinesQueue returns the reconciliation work queue for one match status
func (s *ServiceImpl) ListLinesQueue(ctx context.Context, status shipping.MatchStatus, cursorStr string, take int) (*shared.Page[*shipping.InvoiceLine], error) {
	cursor, err := shared.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	lines, err := s.shippingRepo.ListLinesByStatus(ctx, status, cursor, take+1)
	if err != nil {
		return nil, err
	}

	page := shared.NewPage(lines, take, func(l *shipping.InvoiceLine) shared.Cursor {
		return shared.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})
	return &page, nil
}

// rollupInvoiceStatus recomputes the invoice's reconciliation rollup after a
// line reaches a terminal match status.
func (s *ServiceImpl) rollupInvoiceStatus(ctx context.Context, repo shipping.Repository, invoiceID uuid.UUID) error {
	outstanding, err := repo.CountLinesOutstanding(ctx, invoiceID)
	if err != nil {
		return err
	}

	status := shipping.InvoicePartiallyReconciled
	if outstanding == 0 {
		status = shipping.InvoiceReconciled
	}
	return repo.UpdateInvoiceStatus(ctx, invoiceID, status)
}

func newEntry(tenantID string, accountID, groupID uuid.UUID, accountType ledger.AccountType, direction ledger.Direction, amount decimal.Decimal, currency string, lineID uuid.UUID, now time.Time) *ledger.Entry {
	return &ledger.Entry{
		ID:              uuid.New(),
		TenantID:        tenantID,
		LedgerAccountID: accountID,
		GroupID:         groupID,
		AccountType:     accountType,
		Direction:       direction,
		Amount:          amount,
		Currency:        currency,
		RefType:         "SHIPPING_LINE",
		ReferenceID:     lineID.String(),
		CreatedAt:       now,
	}
}
