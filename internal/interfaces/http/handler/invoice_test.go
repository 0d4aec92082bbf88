package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invoicingapp "github.com/permitflow/backend/internal/application/invoicing"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
	"github.com/permitflow/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type invoiceHandlerFixture struct {
	tenantID  uuid.UUID
	invoices  *MockInvoiceRepository
	retainers *MockRetainerRepository
	draws     *MockDrawRepository
	router    *gin.Engine
}

func newInvoiceHandlerFixture() *invoiceHandlerFixture {
	f := &invoiceHandlerFixture{
		tenantID:  uuid.New(),
		invoices:  new(MockInvoiceRepository),
		retainers: new(MockRetainerRepository),
		draws:     new(MockDrawRepository),
	}
	svc := invoicingapp.NewInvoiceService(f.invoices, f.retainers, f.draws, inlineTx{}, discardPublisher{},
		invoicingapp.WithClock(shared.FixedClock{At: testNow}))
	h := NewInvoiceHandler(svc)

	f.router = gin.New()
	api := f.router.Group("/api/v1")
	api.POST("/invoices", h.Create)
	api.GET("/invoices", h.List)
	api.GET("/invoices/:id", h.GetByID)
	api.POST("/invoices/:id/ready", h.MarkReady)
	api.POST("/invoices/:id/send", h.Send)
	api.POST("/invoices/:id/payment", h.RecordPayment)
	api.POST("/invoices/:id/legal-hold", h.PlaceLegalHold)
	api.PUT("/invoices/:id/line-items", h.UpdateLineItems)
	api.PUT("/invoices/:id/due-date", h.SetDueDate)
	api.POST("/invoices/reconcile-overdue", h.ReconcileOverdue)
	api.GET("/aging", h.Aging)
	return f
}

func (f *invoiceHandlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set(middleware.TenantHeaderKey, f.tenantID.String())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// testInvoice builds a $1000 net 30 invoice created daysAgo days before
// testNow, sent on creation when send is set
func testInvoice(t *testing.T, tenantID uuid.UUID, daysAgo int, send bool) *invoicing.Invoice {
	t.Helper()
	at := testNow.AddDate(0, 0, -daysAgo)
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		TenantID:      tenantID,
		InvoiceNumber: "INV-2026-0042",
		ClientID:      uuid.New(),
		ClientName:    "Acme Builders",
		ProjectName:   "12 Elm St ADU",
		LineItems:     []invoicing.LineItem{invoicing.NewFixedFeeLineItem("Permit expediting", decimal.NewFromInt(1000))},
		PaymentTerms:  invoicing.TermsNet30,
		InitialStatus: invoicing.StatusReadyToSend,
	}, at)
	require.NoError(t, err)
	if send {
		require.NoError(t, inv.Send(at))
	}
	inv.ClearDomainEvents()
	return inv
}

func dataMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	resp := decodeResponse(t, w)
	require.True(t, resp.Success, w.Body.String())
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	return data
}

func TestInvoiceHandler_Create(t *testing.T) {
	f := newInvoiceHandlerFixture()
	f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID, testNow).Return("INV-2026-0001", nil)
	f.invoices.On("Create", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil)

	w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices", map[string]any{
		"client_id":   uuid.NewString(),
		"client_name": "Acme Builders",
		"line_items": []map[string]any{
			{"description": "Site visit", "quantity": "2", "rate": "150"},
			{"description": "Filing fee", "amount": "75.5"},
		},
		"payment_terms": "net_15",
	}))

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataMap(t, w)
	inv := data["invoice"].(map[string]any)
	assert.Equal(t, "INV-2026-0001", inv["invoice_number"])
	assert.Equal(t, "375.50", inv["subtotal"])
	assert.Equal(t, "375.50", inv["total_due"])
	assert.Equal(t, "0.00", inv["retainer_applied"])
	assert.Equal(t, "draft", inv["status"])
	assert.Equal(t, "net_15", inv["payment_terms"])
	assert.Len(t, inv["line_items"], 2)
	assert.Nil(t, data["retainer_draw"])
}

func TestInvoiceHandler_Create_Validation(t *testing.T) {
	f := newInvoiceHandlerFixture()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing client", map[string]any{
			"client_name": "Acme",
			"line_items":  []map[string]any{{"description": "x", "amount": "1"}},
		}},
		{"no line items", map[string]any{
			"client_id":   uuid.NewString(),
			"client_name": "Acme",
			"line_items":  []map[string]any{},
		}},
		{"unknown terms", map[string]any{
			"client_id":     uuid.NewString(),
			"client_name":   "Acme",
			"line_items":    []map[string]any{{"description": "x", "amount": "1"}},
			"payment_terms": "net_90",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
		})
	}
	f.invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvoiceHandler_Create_AllBlankRows(t *testing.T) {
	f := newInvoiceHandlerFixture()
	f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID, testNow).Return("INV-2026-0001", nil)

	w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices", map[string]any{
		"client_id":   uuid.NewString(),
		"client_name": "Acme Builders",
		"line_items":  []map[string]any{{"description": "   "}},
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
	f.invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvoiceHandler_Create_DrawFailureKeepsInvoice(t *testing.T) {
	f := newInvoiceHandlerFixture()
	clientID := uuid.New()
	f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID, testNow).Return("INV-2026-0002", nil)
	f.invoices.On("Create", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, mock.Anything).Return(nil, shared.ErrNotFound)
	f.retainers.On("FindByClient", mock.Anything, f.tenantID, clientID).Return(nil, shared.ErrNotFound)

	w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices", map[string]any{
		"client_id":       clientID.String(),
		"client_name":     "Acme Builders",
		"line_items":      []map[string]any{{"description": "Plan review", "amount": "500"}},
		"retainer_amount": "200",
	}))

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataMap(t, w)
	inv := data["invoice"].(map[string]any)
	assert.Equal(t, "500.00", inv["total_due"])

	draw := data["retainer_draw"].(map[string]any)
	assert.NotEmpty(t, draw["error"])
	assert.Equal(t, dto.ErrCodeNotFound, draw["error_code"])
	assert.Equal(t, "0.00", draw["applied"])
	f.draws.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvoiceHandler_Create_DrawErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		debitErr error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "balance drawn down since load",
			debitErr: shared.NewDomainError(shared.CodeInsufficientBalance, "Draw 200.00 exceeds retainer balance 50.00"),
			wantCode: dto.ErrCodeInsufficientBalance,
			wantMsg:  "Draw 200.00 exceeds retainer balance 50.00",
		},
		{
			name:     "storage failure",
			debitErr: shared.NewPersistenceError("debit retainer", errors.New("pq: could not serialize access")),
			wantCode: dto.ErrCodePersistence,
			wantMsg:  "Storage failure during debit retainer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvoiceHandlerFixture()
			clientID := uuid.New()
			ret, err := retainer.NewRetainer(f.tenantID, clientID, decimal.NewFromInt(800), testNow)
			require.NoError(t, err)

			f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID, testNow).Return("INV-2026-0003", nil)
			f.invoices.On("Create", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil)
			f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, mock.Anything).Return(nil, shared.ErrNotFound)
			f.retainers.On("FindByClient", mock.Anything, f.tenantID, clientID).Return(ret, nil)
			f.retainers.On("Debit", mock.Anything, ret, mock.Anything).Return(tt.debitErr)

			w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices", map[string]any{
				"client_id":       clientID.String(),
				"client_name":     "Acme Builders",
				"line_items":      []map[string]any{{"description": "Plan review", "amount": "500"}},
				"retainer_amount": "200",
			}))

			assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			draw := dataMap(t, w)["retainer_draw"].(map[string]any)
			assert.Equal(t, tt.wantCode, draw["error_code"])
			assert.Equal(t, tt.wantMsg, draw["error"])
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestInvoiceHandler_GetByID_EffectiveStatus(t *testing.T) {
	f := newInvoiceHandlerFixture()
	inv := testInvoice(t, f.tenantID, 75, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+inv.ID.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, w)
	assert.Equal(t, "sent", data["status"])
	assert.Equal(t, "overdue", data["effective_status"])
	assert.Equal(t, "attention", data["aging_tier"])
	assert.EqualValues(t, 45, data["days_overdue"])
	f.invoices.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceHandler_GetByID_Errors(t *testing.T) {
	f := newInvoiceHandlerFixture()
	missing := uuid.New()
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, missing).Return(nil, shared.ErrNotFound)

	t.Run("malformed id", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
	})

	t.Run("not found", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+missing.String(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
	})
}

func TestInvoiceHandler_List(t *testing.T) {
	f := newInvoiceHandlerFixture()
	clientID := uuid.New()
	inv := testInvoice(t, f.tenantID, 5, true)

	expected := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     2,
			PageSize: 10,
			OrderBy:  "created_at",
			OrderDir: "desc",
		},
		ClientID: &clientID,
		Statuses: []invoicing.InvoiceStatus{invoicing.StatusSent, invoicing.StatusOverdue},
	}
	f.invoices.On("FindAllForTenant", mock.Anything, f.tenantID, expected).Return([]invoicing.Invoice{*inv}, nil)
	f.invoices.On("CountForTenant", mock.Anything, f.tenantID, expected).Return(int64(11), nil)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/api/v1/invoices?page=2&page_size=10&status=sent&status=overdue&client_id="+clientID.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	assert.Len(t, resp.Data, 1)
}

func TestInvoiceHandler_List_RejectsUnknownStatus(t *testing.T) {
	f := newInvoiceHandlerFixture()

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices?status=archived", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.invoices.AssertNotCalled(t, "FindAllForTenant", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoiceHandler_Send(t *testing.T) {
	f := newInvoiceHandlerFixture()
	inv := testInvoice(t, f.tenantID, 0, false)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.invoices.On("SaveWithLock", mock.Anything, inv).Return(nil)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/send", nil))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, w)
	assert.Equal(t, "sent", data["status"])
	assert.NotEmpty(t, data["sent_at"])
}

func TestInvoiceHandler_InvalidTransition(t *testing.T) {
	f := newInvoiceHandlerFixture()
	inv := testInvoice(t, f.tenantID, 0, false)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/payment", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidTransition, decodeResponse(t, w).Error.Code)
	f.invoices.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceHandler_RecordPayment(t *testing.T) {
	f := newInvoiceHandlerFixture()
	inv := testInvoice(t, f.tenantID, 40, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.invoices.On("SaveWithLock", mock.Anything, inv).Return(nil)

	w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/payment", map[string]any{
		"amount": "1000",
		"method": "check",
	}))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, w)
	assert.Equal(t, "paid", data["status"])
	assert.Equal(t, "1000.00", data["payment_amount"])
	assert.Equal(t, "check", data["payment_method"])
	assert.EqualValues(t, 0, data["days_overdue"])
}

func TestInvoiceHandler_ConcurrencyConflict(t *testing.T) {
	f := newInvoiceHandlerFixture()
	inv := testInvoice(t, f.tenantID, 10, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.invoices.On("SaveWithLock", mock.Anything, inv).Return(shared.ErrConcurrencyConflict)

	w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/legal-hold", map[string]any{
		"reason": "Lien dispute",
	}))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeConcurrencyConflict, decodeResponse(t, w).Error.Code)
}

func TestInvoiceHandler_UpdateLineItems_NotEditable(t *testing.T) {
	f := newInvoiceHandlerFixture()
	inv := testInvoice(t, f.tenantID, 10, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)

	w := f.do(jsonRequest(http.MethodPut, "/api/v1/invoices/"+inv.ID.String()+"/line-items", map[string]any{
		"line_items": []map[string]any{{"description": "Revised", "amount": "900"}},
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	f.invoices.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestInvoiceHandler_SetDueDate(t *testing.T) {
	f := newInvoiceHandlerFixture()
	inv := testInvoice(t, f.tenantID, 0, false)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.invoices.On("SaveWithLock", mock.Anything, inv).Return(nil)

	t.Run("bad date", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPut, "/api/v1/invoices/"+inv.ID.String()+"/due-date", map[string]any{
			"due_date": "04/15/2026",
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("calendar date", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPut, "/api/v1/invoices/"+inv.ID.String()+"/due-date", map[string]any{
			"due_date": "2026-04-15",
		}))
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NotNil(t, inv.DueDate)
		assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), inv.DueDate.UTC())
	})
}

func TestInvoiceHandler_Aging(t *testing.T) {
	f := newInvoiceHandlerFixture()
	critical := testInvoice(t, f.tenantID, 130, true)
	attention := testInvoice(t, f.tenantID, 70, true)
	recent := testInvoice(t, f.tenantID, 20, true)
	f.invoices.On("FindCollectible", mock.Anything, f.tenantID).
		Return([]invoicing.Invoice{*recent, *attention, *critical}, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/aging", nil))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, w)
	assert.EqualValues(t, 2, data["count"])
	assert.Equal(t, "2000.00", data["total_due"])
	assert.Len(t, data["critical"], 1)
	assert.Len(t, data["urgent"], 0)
	assert.Len(t, data["attention"], 1)
}

func TestInvoiceHandler_ReconcileOverdue(t *testing.T) {
	f := newInvoiceHandlerFixture()
	pastDue := testInvoice(t, f.tenantID, 45, true)
	current := testInvoice(t, f.tenantID, 5, true)
	f.invoices.On("FindCollectible", mock.Anything, f.tenantID).
		Return([]invoicing.Invoice{*pastDue, *current}, nil)
	f.invoices.On("SaveWithLock", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/reconcile-overdue", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, dataMap(t, w)["updated"])
	f.invoices.AssertNumberOfCalls(t, "SaveWithLock", 1)
}
