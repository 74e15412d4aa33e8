// Package shipping defines carrier invoices, their per-shipment charge lines,
// and the shipments/orders they reconcile against.
package shipping

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the reconciliation rollup of a carrier invoice
type InvoiceStatus string

const (
	InvoiceParsed              InvoiceStatus = "PARSED"
	InvoicePartiallyReconciled InvoiceStatus = "PARTIALLY_RECONCILED"
	InvoiceReconciled          InvoiceStatus = "RECONCILED"
)

// MatchStatus is the reconciliation state of a single charge line.
// RECONCILED and DISPUTED are locked against automated re-matching; only an
// explicit admin override moves a line out of them.
type MatchStatus string

const (
	LineUnmatched  MatchStatus = "UNMATCHED"
	LineMatched    MatchStatus = "MATCHED"
	LineReconciled MatchStatus = "RECONCILED"
	LineDisputed   MatchStatus = "DISPUTED"
)

// MatchReasonManualOverride marks a line matched by an explicit admin action
const MatchReasonManualOverride = "MANUAL_ADMIN_OVERRIDE"

// Invoice is one carrier billing document, unique per (carrier, invoice no).
type Invoice struct {
	ID          uuid.UUID       `json:"id"`
	CarrierID   string          `json:"carrier_id"`
	InvoiceNo   string          `json:"invoice_no"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      InvoiceStatus   `json:"status"`
	// RawRef points at the archived raw carrier payload in the document store.
	RawRef    string    `json:"raw_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []*InvoiceLine `json:"lines,omitempty"`
}

// InvoiceLine is one per-shipment charge on a carrier invoice.
type InvoiceLine struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	TrackingNo     string          `json:"tracking_no"`
	ChargeAmount   decimal.Decimal `json:"charge_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ServiceLevel   string          `json:"service_level,omitempty"`
	MatchStatus    MatchStatus     `json:"match_status"`
	ShipmentID     *uuid.UUID      `json:"shipment_id,omitempty"`
	SellerTenantID string          `json:"seller_tenant_id,omitempty"` // denormalized from the matched shipment's order
	MatchReason    string          `json:"match_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Locked reports whether automated logic may no longer re-match the line.
func (l *InvoiceLine) Locked() bool {
	return l.MatchStatus == LineReconciled || l.MatchStatus == LineDisputed
}

// Shipment is identified externally by carrier code + tracking number and
// belongs to one network order.
type Shipment struct {
	ID             uuid.UUID `json:"id"`
	NetworkOrderID uuid.UUID `json:"network_order_id"`
	CarrierCode    string    `json:"carrier_code"`
	TrackingNumber string    `json:"tracking_number"`
	CreatedAt      time.Time `json:"created_at"`
}

// NetworkOrder carries the buyer/seller companies and the order amounts a
// shipment settles against.
type NetworkOrder struct {
	ID             uuid.UUID       `json:"id"`
	BuyerCompanyID string          `json:"buyer_company_id"`
	SellerCompanyID string         `json:"seller_company_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}
