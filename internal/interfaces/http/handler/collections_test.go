package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	collectionsapp "github.com/permitflow/backend/internal/application/collections"
	"github.com/permitflow/backend/internal/domain/collections"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/cache"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
	"github.com/permitflow/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testLetter = "Dear {{client_name}}, invoice {{invoice_number}} for {{amount_due}} is {{days_overdue}} days past due. {{company_name}}"

type collectionsHandlerFixture struct {
	tenantID uuid.UUID
	invoices *MockInvoiceRepository
	activity *MockActivityRepository
	locker   *cache.InMemoryActionLocker
	router   *gin.Engine
}

func newCollectionsHandlerFixture(opts ...collectionsapp.Option) *collectionsHandlerFixture {
	f := &collectionsHandlerFixture{
		tenantID: uuid.New(),
		invoices: new(MockInvoiceRepository),
		activity: new(MockActivityRepository),
		locker:   cache.NewInMemoryActionLocker(),
	}
	opts = append([]collectionsapp.Option{
		collectionsapp.WithClock(shared.FixedClock{At: testNow}),
		collectionsapp.WithTemplateSource(collections.StaticTemplateSource(testLetter)),
		collectionsapp.WithCompanyName("Harbor Permits LLC"),
	}, opts...)
	svc := collectionsapp.NewCollectionsService(f.invoices, f.activity, inlineTx{}, f.locker, discardPublisher{}, opts...)
	h := NewCollectionsHandler(svc)

	f.router = gin.New()
	inv := f.router.Group("/api/v1/invoices/:id")
	inv.GET("/allowed-actions", h.AllowedActions)
	inv.GET("/timeline", h.Timeline)
	inv.GET("/follow-ups", h.FollowUps)
	inv.POST("/collections/reminder", h.Reminder)
	inv.POST("/collections/demand-letter", h.DemandLetter)
	inv.POST("/collections/demand-letter/preview", h.DemandLetterPreview)
	inv.POST("/collections/write-off", h.WriteOff)
	inv.POST("/collections/note", h.Note)
	return f
}

func (f *collectionsHandlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set(middleware.TenantHeaderKey, f.tenantID.String())
	req.Header.Set(middleware.ActorHeaderKey, "Dana Ortiz")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestCollectionsHandler_AllowedActions(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 100, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+inv.ID.String()+"/allowed-actions", nil))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, w)
	assert.Equal(t, "overdue", data["effective_status"])
	assert.Equal(t, "urgent", data["aging_tier"])
	assert.Contains(t, data["actions"], "demand_letter")
	assert.Contains(t, data["actions"], "reminder_email")
	assert.Equal(t, false, data["enforced"])
}

func TestCollectionsHandler_Reminder(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 45, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.invoices.On("SaveWithLock", mock.Anything, inv).Return(nil)
	f.activity.On("RecordAction", mock.Anything, mock.AnythingOfType("*collections.ActionRecord")).Return(nil)

	w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/reminder", map[string]any{
		"notes": "Second reminder",
	}))

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataMap(t, w)
	invoice := data["invoice"].(map[string]any)
	assert.Equal(t, "overdue", invoice["status"])

	followUp := data["follow_up"].(map[string]any)
	assert.Equal(t, "reminder_email", followUp["contact_method"])
	assert.Equal(t, "Second reminder", followUp["notes"])
	assert.Equal(t, "Dana Ortiz", followUp["actor"])

	entry := data["entry"].(map[string]any)
	assert.Equal(t, "Reminder Email", entry["label"])
	assert.Equal(t, false, entry["synthetic"])
}

func TestCollectionsHandler_Reminder_NotCollectible(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 0, false)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/reminder", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	f.activity.AssertNotCalled(t, "RecordAction", mock.Anything, mock.Anything)
}

func TestCollectionsHandler_ActionInProgress(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 45, true)

	lock, err := f.locker.Obtain(context.Background(), "invoice:"+f.tenantID.String()+":"+inv.ID.String(), time.Minute)
	require.NoError(t, err)
	defer func() { _ = lock.Release(context.Background()) }()

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/write-off", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeActionInProgress, decodeResponse(t, w).Error.Code)
	f.invoices.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
}

func TestCollectionsHandler_WriteOff(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 130, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.invoices.On("SaveWithLock", mock.Anything, inv).Return(nil)
	f.activity.On("RecordAction", mock.Anything, mock.AnythingOfType("*collections.ActionRecord")).Return(nil)

	w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/write-off", map[string]any{
		"notes": "Client dissolved",
	}))

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataMap(t, w)
	assert.Equal(t, "1000.00", data["written_off"])
	assert.Equal(t, "critical", data["aging_tier"])
	invoice := data["invoice"].(map[string]any)
	assert.Equal(t, "paid", invoice["status"])
	assert.Nil(t, invoice["payment_amount"])
}

func TestCollectionsHandler_WriteOff_LostRace(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 130, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.invoices.On("SaveWithLock", mock.Anything, inv).Return(shared.ErrConcurrencyConflict)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/write-off", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeConcurrencyConflict, decodeResponse(t, w).Error.Code)
	f.activity.AssertNotCalled(t, "RecordAction", mock.Anything, mock.Anything)
}

func TestCollectionsHandler_TierEnforcement(t *testing.T) {
	f := newCollectionsHandlerFixture(collectionsapp.WithTierEnforcement(true))
	inv := testInvoice(t, f.tenantID, 45, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/write-off", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeActionNotAllowed, decodeResponse(t, w).Error.Code)
}

func TestCollectionsHandler_DemandLetterPreview(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 100, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)

	t.Run("configured template", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/demand-letter/preview", nil))

		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := dataMap(t, w)
		content := data["content"].(string)
		assert.Contains(t, content, "Dear Acme Builders")
		assert.Contains(t, content, "INV-2026-0042")
		assert.Contains(t, content, "Harbor Permits LLC")
		assert.Empty(t, data["unmatched_placeholders"])
		assert.Equal(t, true, data["eligible"])
	})

	t.Run("override reports unmatched tokens", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/demand-letter/preview", map[string]any{
			"template": "Re: {{project_name}} {{permit_number}}",
		}))

		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := dataMap(t, w)
		assert.Equal(t, []any{"{{permit_number}}"}, data["unmatched_placeholders"])
	})

	f.activity.AssertNotCalled(t, "RecordAction", mock.Anything, mock.Anything)
	f.invoices.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestCollectionsHandler_DemandLetter(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 100, true)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.invoices.On("SaveWithLock", mock.Anything, inv).Return(nil)
	f.activity.On("RecordAction", mock.Anything, mock.AnythingOfType("*collections.ActionRecord")).Return(nil)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/demand-letter", nil))

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataMap(t, w)
	followUp := data["follow_up"].(map[string]any)
	assert.Equal(t, "demand_letter", followUp["contact_method"])
	assert.Contains(t, followUp["notes"], "Dear Acme Builders")
}

func TestCollectionsHandler_Note(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 0, false)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.activity.On("RecordAction", mock.Anything, mock.AnythingOfType("*collections.ActionRecord")).Return(nil)

	t.Run("empty note rejected", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/note", map[string]any{}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
	})

	t.Run("note on unsent invoice", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/collections/note", map[string]any{
			"notes": "Client asked to hold until permit approval",
		}))
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		entry := dataMap(t, w)["entry"].(map[string]any)
		assert.Equal(t, "note", entry["action"])
	})
}

func TestCollectionsHandler_Timeline(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 45, true)
	reminder, err := collections.NewActivityLogEntry(f.tenantID, inv.ID, collections.ActionReminderEmail,
		"First reminder", "Dana Ortiz", testNow.AddDate(0, 0, -2))
	require.NoError(t, err)

	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.activity.On("FindEntriesByInvoice", mock.Anything, f.tenantID, inv.ID).
		Return([]collections.ActivityLogEntry{*reminder}, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+inv.ID.String()+"/timeline", nil))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	items := resp.Data.([]any)
	require.Len(t, items, 3)

	first := items[0].(map[string]any)
	assert.Equal(t, "reminder_email", first["action"])
	assert.NotEmpty(t, first["id"])

	var derived []string
	for _, item := range items[1:] {
		entry := item.(map[string]any)
		assert.Equal(t, true, entry["synthetic"])
		assert.Nil(t, entry["id"])
		derived = append(derived, entry["action"].(string))
	}
	assert.ElementsMatch(t, []string{"created", "sent"}, derived)
}

func TestCollectionsHandler_FollowUps(t *testing.T) {
	f := newCollectionsHandlerFixture()
	inv := testInvoice(t, f.tenantID, 45, true)
	record, err := collections.NewActionRecord(f.tenantID, inv.ID, collections.ActionReminderEmail,
		"Left voicemail", "", "Dana Ortiz", testNow)
	require.NoError(t, err)

	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, inv.ID).Return(inv, nil)
	f.activity.On("FindFollowUpsByInvoice", mock.Anything, f.tenantID, inv.ID).
		Return([]collections.FollowUp{*record.FollowUp}, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+inv.ID.String()+"/follow-ups", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	items := decodeResponse(t, w).Data.([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Left voicemail", items[0].(map[string]any)["notes"])
}
