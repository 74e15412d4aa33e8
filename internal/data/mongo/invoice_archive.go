// Package mongo stores the raw carrier invoice payloads exactly as they
// arrived, outside the relational schema. The shipping invoice row carries a
// reference into this archive so reconciliation disputes can be settled
// against the original document.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/platform-finance-ledger/internal/domain/shipping"
)

const (
	// ArchiveCollectionName is the name of the raw invoice collection in MongoDB
	ArchiveCollectionName = "carrier_invoice_payloads"
)

// InvoiceArchive persists raw carrier invoice payloads in MongoDB
type InvoiceArchive struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewInvoiceArchive creates a new MongoDB invoice archive
func NewInvoiceArchive(logger *slog.Logger, db *mongo.Database) shipping.Archive {
	return &InvoiceArchive{
		db:     db,
		logger: logger,
	}
}

// Store archives one raw carrier payload and returns its reference.
// Archiving happens before the relational ingest so a partially ingested
// invoice always has its original document on file.
func (a *InvoiceArchive) Store(ctx context.Context, carrierID, invoiceNo string, payload json.RawMessage) (string, error) {
	collection := a.db.Collection(ArchiveCollectionName)

	doc := &shipping.ArchivedPayload{
		Ref:        uuid.New().String(),
		CarrierID:  carrierID,
		InvoiceNo:  invoiceNo,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}

	_, err := collection.InsertOne(ctx, doc)
	if err != nil {
		a.logger.Error("Failed to archive carrier payload",
			"carrier_id", carrierID,
			"invoice_no", invoiceNo,
			"error", err)
		return "", fmt.Errorf("failed to archive carrier payload: %w", err)
	}

	return doc.Ref, nil
}

// Get retrieves an archived payload by its reference.
// Returns ErrPayloadNotFound if no document exists for the reference.
func (a *InvoiceArchive) Get(ctx context.Context, ref string) (*shipping.ArchivedPayload, error) {
	if ref == "" {
		return nil, errors.New("archive reference cannot be empty")
	}

	collection := a.db.Collection(ArchiveCollectionName)

	filter := bson.M{"ref": ref}
	var doc shipping.ArchivedPayload
	err := collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shipping.ErrPayloadNotFound{Ref: ref}
		}
		a.logger.Error("Failed to get archived carrier payload",
			"ref", ref,
			"error", err)
		return nil, fmt.Errorf("failed to get archived carrier payload: %w", err)
	}

	return &doc, nil
}

// GetByNaturalKey retrieves the archived payload for a carrier invoice.
// Returns nil if the invoice was never archived, so callers can degrade to
// the relational row alone.
func (a *InvoiceArchive) GetByNaturalKey(ctx context.Context, carrierID, invoiceNo string) (*shipping.ArchivedPayload, error) {
	collection := a.db.Collection(ArchiveCollectionName)

	filter := bson.M{"carrier_id": carrierID, "invoice_no": invoiceNo}
	var doc shipping.ArchivedPayload
	err := collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		a.logger.Error("Failed to get archived carrier payload by natural key",
			"carrier_id", carrierID,
			"invoice_no", invoiceNo,
			"error", err)
		return nil, fmt.Errorf("failed to get archived carrier payload by natural key: %w", err)
	}

	return &doc, nil
}
