package shipping

import (
	"context"
	"encoding/json"
	"time"
)

// ArchivedPayload is one raw carrier invoice document exactly as received
type ArchivedPayload struct {
	Ref        string          `bson:"ref" json:"ref"`
	CarrierID  string          `bson:"carrier_id" json:"carrier_id"`
	InvoiceNo  string          `bson:"invoice_no" json:"invoice_no"`
	Payload    json.RawMessage `bson:"payload" json:"payload"`
	ReceivedAt time.Time       `bson:"received_at" json:"received_at"`
}

// Archive stores raw carrier payloads outside the relational schema. The
// invoice row's RawRef points back into it.
type Archive interface {
	Store(ctx context.Context, carrierID, invoiceNo string, payload json.RawMessage) (string, error)
	Get(ctx context.Context, ref string) (*ArchivedPayload, error)
	GetByNaturalKey(ctx context.Context, carrierID, invoiceNo string) (*ArchivedPayload, error)
}

// ErrPayloadNotFound indicates no archived payload exists for the reference
type ErrPayloadNotFound struct {
	Ref string
}

func (e ErrPayloadNotFound) Error() string {
	return "archived carrier payload not found: " + e.Ref
}
