package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/platform-finance-ledger/internal/domain/idempotency"
	"github.com/platform-finance-ledger/internal/domain/ledger"
	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/domain/shipping"
	"github.com/platform-finance-ledger/internal/finance/shippingsvc"
)

type MockShippingService struct {
	mock.Mock
}

func (m *MockShippingService) IngestInvoice(ctx context.Context, input *shippingsvc.IngestInput) (*shipping.Invoice, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipping.Invoice), args.Error(1)
}

func (m *MockShippingService) ManualMatchLine(ctx context.Context, adminID string, lineID, shipmentID uuid.UUID) (*shipping.InvoiceLine, error) {
	args := m.Called(ctx, adminID, lineID, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipping.InvoiceLine), args.Error(1)
}

func (m *MockShippingService) DisputeLine(ctx context.Context, adminID string, lineID uuid.UUID, reasonCode, note string) (*shipping.InvoiceLine, error) {
	args := m.Called(ctx, adminID, lineID, reasonCode, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipping.InvoiceLine), args.Error(1)
}

func (m *MockShippingService) PostChargeback(ctx context.Context, lineID uuid.UUID) (*ledger.Group, error) {
	args := m.Called(ctx, lineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Group), args.Error(1)
}

func (m *MockShippingService) GetInvoice(ctx context.Context, id uuid.UUID) (*shippingsvc.InvoiceDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shippingsvc.InvoiceDetail), args.Error(1)
}

func (m *MockShippingService) ListInvoices(ctx context.Context, status shipping.InvoiceStatus, cursor string, take int) (*shared.Page[*shipping.Invoice], error) {
	args := m.Called(ctx, status, cursor, take)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Page[*shipping.Invoice]), args.Error(1)
}

func (m *MockShippingService) ListLinesQueue(ctx context.Context, status shipping.MatchStatus, cursor string, take int) (*shared.Page[*shipping.InvoiceLine], error) {
	args := m.Called(ctx, status, cursor, take)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Page[*shipping.InvoiceLine]), args.Error(1)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShippingHandler_Ingest(t *testing.T) {
	logger := testLogger()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		inv := &shipping.Invoice{
			ID:        uuid.New(),
			CarrierID: "CARRIER-X",
			InvoiceNo: "INV-1",
			Status:    shipping.InvoiceParsed,
		}
		mockService.On("IngestInvoice", mock.Anything, mock.MatchedBy(func(in *shippingsvc.IngestInput) bool {
			return in.CarrierID == "CARRIER-X" && in.InvoiceNo == "INV-1" && len(in.Lines) == 1 && len(in.RawPayload) > 0
		})).Return(inv, nil)

		router := setupTestRouter()
		router.POST("/shipping/invoices", h.Ingest)

		body, _ := json.Marshal(IngestInvoiceRequest{
			CarrierID:   "CARRIER-X",
			InvoiceNo:   "INV-1",
			PeriodStart: time.Now().AddDate(0, -1, 0),
			PeriodEnd:   time.Now(),
			Currency:    "TRY",
			TotalAmount: decimal.RequireFromString("100.00"),
			Lines: []IngestLineRequest{
				{TrackingNo: "TRK-1", ChargeAmount: decimal.RequireFromString("100.00")},
			},
		})
		req, _ := http.NewRequest(http.MethodPost, "/shipping/invoices", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MissingLinesRejected", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/shipping/invoices", h.Ingest)

		req, _ := http.NewRequest(http.MethodPost, "/shipping/invoices",
			bytes.NewBufferString(`{"carrier_id":"CARRIER-X","invoice_no":"INV-1","lines":[]}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "IngestInvoice", mock.Anything, mock.Anything)
	})
}

func TestShippingHandler_MatchLine(t *testing.T) {
	logger := testLogger()
	lineID := uuid.New()
	shipmentID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		line := &shipping.InvoiceLine{ID: lineID, MatchStatus: shipping.LineMatched}
		mockService.On("ManualMatchLine", mock.Anything, "", lineID, shipmentID).Return(line, nil)

		router := setupTestRouter()
		router.POST("/shipping/lines/:id/match", h.MatchLine)

		body, _ := json.Marshal(MatchLineRequest{ShipmentID: shipmentID.String()})
		req, _ := http.NewRequest(http.MethodPost, "/shipping/lines/"+lineID.String()+"/match", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("LockedLineIsConflict", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		mockService.On("ManualMatchLine", mock.Anything, "", lineID, shipmentID).
			Return(nil, shipping.ErrLineLocked{LineID: lineID, Status: shipping.LineReconciled})

		router := setupTestRouter()
		router.POST("/shipping/lines/:id/match", h.MatchLine)

		body, _ := json.Marshal(MatchLineRequest{ShipmentID: shipmentID.String()})
		req, _ := http.NewRequest(http.MethodPost, "/shipping/lines/"+lineID.String()+"/match", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("InvalidLineID", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/shipping/lines/:id/match", h.MatchLine)

		req, _ := http.NewRequest(http.MethodPost, "/shipping/lines/not-a-uuid/match",
			bytes.NewBufferString(`{"shipment_id":"`+shipmentID.String()+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestShippingHandler_PostChargeback(t *testing.T) {
	logger := testLogger()
	lineID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		group := &ledger.Group{ID: uuid.New(), Type: ledger.GroupShippingChargeback}
		mockService.On("PostChargeback", mock.Anything, lineID).Return(group, nil)

		router := setupTestRouter()
		router.POST("/shipping/lines/:id/chargeback", h.PostChargeback)

		req, _ := http.NewRequest(http.MethodPost, "/shipping/lines/"+lineID.String()+"/chargeback", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("ReplayIsOK", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		mockService.On("PostChargeback", mock.Anything, lineID).Return(nil, idempotency.ErrAlreadySucceeded)

		router := setupTestRouter()
		router.POST("/shipping/lines/:id/chargeback", h.PostChargeback)

		req, _ := http.NewRequest(http.MethodPost, "/shipping/lines/"+lineID.String()+"/chargeback", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "already completed")
	})

	t.Run("InFlightDuplicateIsConflict", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		mockService.On("PostChargeback", mock.Anything, lineID).
			Return(nil, idempotency.AlreadyRunningError{Key: "SHIPPING_POSTING:line:" + lineID.String()})

		router := setupTestRouter()
		router.POST("/shipping/lines/:id/chargeback", h.PostChargeback)

		req, _ := http.NewRequest(http.MethodPost, "/shipping/lines/"+lineID.String()+"/chargeback", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("MissingLineIsNotFound", func(t *testing.T) {
		mockService := new(MockShippingService)
		h := NewShippingHandler(logger, mockService)

		mockService.On("PostChargeback", mock.Anything, lineID).
			Return(nil, shipping.ErrLineNotFound{LineID: lineID})

		router := setupTestRouter()
		router.POST("/shipping/lines/:id/chargeback", h.PostChargeback)

		req, _ := http.NewRequest(http.MethodPost, "/shipping/lines/"+lineID.String()+"/chargeback", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestShippingHandler_GetInvoice(t *testing.T) {
	logger := testLogger()
	invoiceID := uuid.New()

	mockService := new(MockShippingService)
	h := NewShippingHandler(logger, mockService)

	detail := &shippingsvc.InvoiceDetail{
		Invoice:    &shipping.Invoice{ID: invoiceID},
		RawPayload: json.RawMessage(`{"email":"se***om"}`),
	}
	mockService.On("GetInvoice", mock.Anything, invoiceID).Return(detail, nil)

	router := setupTestRouter()
	router.GET("/shipping/invoices/:id", h.GetInvoice)

	req, _ := http.NewRequest(http.MethodGet, "/shipping/invoices/"+invoiceID.String(), nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "se***om")
}
