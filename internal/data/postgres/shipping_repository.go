package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/domain/shipping"
	"github.com/platform-finance-ledger/internal/platform/persistence"
)

// ShippingRepository implements the shipping.Repository interface for PostgreSQL
type ShippingRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewShippingRepository creates a new PostgreSQL shipping repository
func NewShippingRepository(logger *slog.Logger, db *persistence.PostgresDB) shipping.Repository {
	return &ShippingRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *ShippingRepository) WithTx(tx pgx.Tx) shipping.Repository {
	return &ShippingRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const invoiceColumns = `id, carrier_id, invoice_no, period_start, period_end, currency, total_amount, status, raw_ref, created_at, updated_at`

// CreateInvoice stores a new carrier invoice. The (carrier_id, invoice_no)
// unique constraint backs the ingestion idempotency key.
func (r *ShippingRepository) CreateInvoice(ctx context.Context, inv *shipping.Invoice) error {
	query := `
		INSERT INTO shipping_invoices (id, carrier_id, invoice_no, period_start, period_end, currency, total_amount, status, raw_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		inv.ID,
		inv.CarrierID,
		inv.InvoiceNo,
		inv.PeriodStart,
		inv.PeriodEnd,
		inv.Currency,
		inv.TotalAmount,
		inv.Status,
		inv.RawRef,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create shipping invoice",
			"carrier_id", inv.CarrierID,
			"invoice_no", inv.InvoiceNo,
			"error", err,
		)
		return fmt.Errorf("failed to create shipping invoice: %w", err)
	}

	return nil
}

const lineColumns = `id, invoice_id, tracking_no, charge_amount, tax_amount, service_level, match_status, shipment_id, seller_tenant_id, match_reason, created_at, updated_at`

// CreateLines stores the invoice's charge lines
func (r *ShippingRepository) CreateLines(ctx context.Context, lines []*shipping.InvoiceLine) error {
	query := `
		INSERT INTO shipping_invoice_lines (id, invoice_id, tracking_no, charge_amount, tax_amount, service_level, match_status, shipment_id, seller_tenant_id, match_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for _, line := range lines {
		_, err := r.querier.Exec(ctx, query,
			line.ID,
			line.InvoiceID,
			line.TrackingNo,
			line.ChargeAmount,
			line.TaxAmount,
			line.ServiceLevel,
			line.MatchStatus,
			line.ShipmentID,
			line.SellerTenantID,
			line.MatchReason,
			line.CreatedAt,
			line.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create shipping invoice line",
				"invoice_id", line.InvoiceID.String(),
				"tracking_no", line.TrackingNo,
				"error", err,
			)
			return fmt.Errorf("failed to create shipping invoice line: %w", err)
		}
	}

	return nil
}

// GetInvoiceByID retrieves an invoice with its lines
func (r *ShippingRepository) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*shipping.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM shipping_invoices
		WHERE id = $1
	`

	inv, err := r.scanInvoiceRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrInvoiceNotFound{InvoiceNo: id.String()}
		}
		r.logger.Error("Failed to get shipping invoice", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get shipping invoice: %w", err)
	}

	lines, err := r.getLinesByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines

	return inv, nil
}

// GetInvoiceByNaturalKey retrieves an invoice by carrier + invoice number,
// the key ingestion replays resolve against.
func (r *ShippingRepository) GetInvoiceByNaturalKey(ctx context.Context, carrierID, invoiceNo string) (*shipping.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM shipping_invoices
		WHERE carrier_id = $1 AND invoice_no = $2
	`

	inv, err := r.scanInvoiceRow(r.querier.QueryRow(ctx, query, carrierID, invoiceNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrInvoiceNotFound{CarrierID: carrierID, InvoiceNo: invoiceNo}
		}
		r.logger.Error("Failed to get shipping invoice by natural key",
			"carrier_id", carrierID,
			"invoice_no", invoiceNo,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get shipping invoice by natural key: %w", err)
	}

	lines, err := r.getLinesByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines

	return inv, nil
}

// UpdateInvoiceStatus moves the invoice's reconciliation rollup
func (r *ShippingRepository) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status shipping.InvoiceStatus) error {
	query := `
		UPDATE shipping_invoices
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update shipping invoice status", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update shipping invoice status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shipping.ErrInvoiceNotFound{InvoiceNo: id.String()}
	}

	return nil
}

// ListInvoices returns invoices newest first, cursor-paginated. An empty
// status matches all reconciliation states.
func (r *ShippingRepository) ListInvoices(ctx context.Context, status shipping.InvoiceStatus, cursor *shared.Cursor, limit int) ([]*shipping.Invoice, error) {
	conditions := "TRUE"
	args := []interface{}{}

	if status != "" {
		args = append(args, status)
		conditions = fmt.Sprintf("status = $%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conditions += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM shipping_invoices
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, invoiceColumns, conditions, len(args))

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list shipping invoices", "error", err)
		return nil, fmt.Errorf("failed to list shipping invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*shipping.Invoice
	for rows.Next() {
		inv, err := r.scanInvoiceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipping invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over shipping invoices: %w", err)
	}

	return invoices, nil
}

// GetLineByID retrieves a single invoice line
func (r *ShippingRepository) GetLineByID(ctx context.Context, id uuid.UUID) (*shipping.InvoiceLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM shipping_invoice_lines
		WHERE id = $1
	`

	return r.getLine(ctx, query, id)
}

// GetLineForUpdate loads a line under a row lock for state transitions
func (r *ShippingRepository) GetLineForUpdate(ctx context.Context, id uuid.UUID) (*shipping.InvoiceLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM shipping_invoice_lines
		WHERE id = $1
		FOR UPDATE
	`

	return r.getLine(ctx, query, id)
}

func (r *ShippingRepository) getLine(ctx context.Context, query string, id uuid.UUID) (*shipping.InvoiceLine, error) {
	line, err := scanLineRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrLineNotFound{LineID: id}
		}
		r.logger.Error("Failed to get shipping invoice line", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get shipping invoice line: %w", err)
	}
	return line, nil
}

// UpdateLineMatch persists a line's reconciliation state transition
func (r *ShippingRepository) UpdateLineMatch(ctx context.Context, line *shipping.InvoiceLine) error {
	query := `
		UPDATE shipping_invoice_lines
		SET match_status = $1, shipment_id = $2, seller_tenant_id = $3, match_reason = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query,
		line.MatchStatus,
		line.ShipmentID,
		line.SellerTenantID,
		line.MatchReason,
		line.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update shipping invoice line match", "id", line.ID.String(), "error", err)
		return fmt.Errorf("failed to update shipping invoice line match: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shipping.ErrLineNotFound{LineID: line.ID}
	}

	return nil
}

// ListLinesByStatus returns lines in one match status, newest first, cursor-paginated
func (r *ShippingRepository) ListLinesByStatus(ctx context.Context, status shipping.MatchStatus, cursor *shared.Cursor, limit int) ([]*shipping.InvoiceLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM shipping_invoice_lines
		WHERE match_status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	args := []interface{}{status, limit}

	if cursor != nil {
		query = `
		SELECT ` + lineColumns + `
		FROM shipping_invoice_lines
		WHERE match_status = $1 AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`
		args = []interface{}{status, cursor.CreatedAt, cursor.ID, limit}
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list shipping invoice lines", "status", string(status), "error", err)
		return nil, fmt.Errorf("failed to list shipping invoice lines: %w", err)
	}
	defer rows.Close()

	return scanLines(rows)
}

// CountLinesOutstanding counts the invoice's lines not yet in a terminal
// match status, for the invoice status rollup.
func (r *ShippingRepository) CountLinesOutstanding(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM shipping_invoice_lines
		WHERE invoice_id = $1 AND match_status NOT IN ($2, $3)
	`

	var count int64
	err := r.querier.QueryRow(ctx, query, invoiceID, shipping.LineReconciled, shipping.LineDisputed).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count outstanding shipping lines", "invoice_id", invoiceID.String(), "error", err)
		return 0, fmt.Errorf("failed to count outstanding shipping lines: %w", err)
	}

	return count, nil
}

func (r *ShippingRepository) getLinesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*shipping.InvoiceLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM shipping_invoice_lines
		WHERE invoice_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get shipping invoice lines", "invoice_id", invoiceID.String(), "error", err)
		return nil, fmt.Errorf("failed to get shipping invoice lines: %w", err)
	}
	defer rows.Close()

	return scanLines(rows)
}

// GetShipmentByID retrieves a shipment
func (r *ShippingRepository) GetShipmentByID(ctx context.Context, id uuid.UUID) (*shipping.Shipment, error) {
	query := `
		SELECT id, network_order_id, carrier_code, tracking_number, created_at
		FROM shipments
		WHERE id = $1
	`

	var s shipping.Shipment
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.NetworkOrderID,
		&s.CarrierCode,
		&s.TrackingNumber,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrShipmentNotFound{ShipmentID: id}
		}
		r.logger.Error("Failed to get shipment", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}

	return &s, nil
}

// GetOrderByID retrieves the network order a shipment belongs to
func (r *ShippingRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*shipping.NetworkOrder, error) {
	query := `
		SELECT id, buyer_company_id, seller_company_id, total_amount, currency, status, created_at
		FROM network_orders
		WHERE id = $1
	`

	var o shipping.NetworkOrder
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.BuyerCompanyID,
		&o.SellerCompanyID,
		&o.TotalAmount,
		&o.Currency,
		&o.Status,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("network order not found: %s", id.String())
		}
		r.logger.Error("Failed to get network order", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get network order: %w", err)
	}

	return &o, nil
}

func (r *ShippingRepository) scanInvoiceRow(row pgx.Row) (*shipping.Invoice, error) {
	var inv shipping.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.CarrierID,
		&inv.InvoiceNo,
		&inv.PeriodStart,
		&inv.PeriodEnd,
		&inv.Currency,
		&inv.TotalAmount,
		&inv.Status,
		&inv.RawRef,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func scanLineRow(row pgx.Row) (*shipping.InvoiceLine, error) {
	var line shipping.InvoiceLine
	err := row.Scan(
		&line.ID,
		&line.InvoiceID,
		&line.TrackingNo,
		&line.ChargeAmount,
		&line.TaxAmount,
		&line.ServiceLevel,
		&line.MatchStatus,
		&line.ShipmentID,
		&line.SellerTenantID,
		&line.MatchReason,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func scanLines(rows pgx.Rows) ([]*shipping.InvoiceLine, error) {
	var lines []*shipping.InvoiceLine
	for rows.Next() {
		line, err := scanLineRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipping invoice line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over shipping invoice lines: %w", err)
	}

	return lines, nil
}
