package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	collectionsapp "github.com/permitflow/backend/internal/application/collections"
	invoicingapp "github.com/permitflow/backend/internal/application/invoicing"
	"github.com/permitflow/backend/internal/domain/collections"
)

// CollectionsHandler handles collections actions and the invoice timeline
type CollectionsHandler struct {
	BaseHandler
	collectionsService *collectionsapp.CollectionsService
}

// NewCollectionsHandler creates a new CollectionsHandler
func NewCollectionsHandler(collectionsService *collectionsapp.CollectionsService) *CollectionsHandler {
	return &CollectionsHandler{collectionsService: collectionsService}
}

// CollectionsActionRequest carries the note and actor of an action
type CollectionsActionRequest struct {
	Notes string `json:"notes" binding:"max=5000"`
	Actor string `json:"actor" binding:"max=255"`
}

// DemandLetterRequest sends or previews a demand letter. An empty template
// uses the configured one.
type DemandLetterRequest struct {
	Template string `json:"template" binding:"max=20000"`
	Actor    string `json:"actor" binding:"max=255"`
}

// TimelineEntryResponse is one row of the merged timeline
type TimelineEntryResponse struct {
	ID        *string   `json:"id,omitempty"`
	Action    string    `json:"action"`
	Label     string    `json:"label"`
	Details   string    `json:"details,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Synthetic bool      `json:"synthetic"`
}

// FollowUpResponse is one recorded contact attempt
type FollowUpResponse struct {
	ID            string    `json:"id"`
	InvoiceID     string    `json:"invoice_id"`
	ContactMethod string    `json:"contact_method"`
	Notes         string    `json:"notes,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AllowedActionsResponse lists what can be done to an invoice right now
type AllowedActionsResponse struct {
	InvoiceID       string   `json:"invoice_id"`
	Status          string   `json:"status"`
	EffectiveStatus string   `json:"effective_status"`
	AgingTier       string   `json:"aging_tier,omitempty"`
	DaysOverdue     int      `json:"days_overdue"`
	Actions         []string `json:"actions"`
	Enforced        bool     `json:"enforced"`
}

// CollectionsActionResponse reports a recorded action
type CollectionsActionResponse struct {
	Invoice         InvoiceResponse       `json:"invoice"`
	FollowUp        *FollowUpResponse     `json:"follow_up,omitempty"`
	Entry           TimelineEntryResponse `json:"entry"`
	AgingTier       string                `json:"aging_tier,omitempty"`
	DaysOverdue     int                   `json:"days_overdue"`
	WrittenOff      *string               `json:"written_off,omitempty"`
	UnmatchedTokens []string              `json:"unmatched_placeholders,omitempty"`
}

// DemandLetterPreviewResponse is a merged letter that was not sent
type DemandLetterPreviewResponse struct {
	InvoiceID       string   `json:"invoice_id"`
	Content         string   `json:"content"`
	UnmatchedTokens []string `json:"unmatched_placeholders"`
	AgingTier       string   `json:"aging_tier,omitempty"`
	DaysOverdue     int      `json:"days_overdue"`
	Eligible        bool     `json:"eligible"`
}

// AllowedActions serves GET /invoices/:id/allowed-actions: available collections actions
func (h *CollectionsHandler) AllowedActions(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	view, err := h.collectionsService.AllowedActions(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AllowedActionsResponse{
		InvoiceID:       view.Invoice.ID.String(),
		Status:          view.Invoice.Status.String(),
		EffectiveStatus: view.EffectiveStatus.String(),
		AgingTier:       string(view.Tier),
		DaysOverdue:     view.DaysOverdue,
		Actions:         view.Actions.Strings(),
		Enforced:        view.Enforced,
	})
}

// Timeline serves GET /invoices/:id/timeline: invoice activity timeline
func (h *CollectionsHandler) Timeline(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	entries, err := h.collectionsService.Timeline(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]TimelineEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toTimelineEntryResponse(e))
	}
	h.Success(c, items)
}

// FollowUps serves GET /invoices/:id/follow-ups: recorded contact attempts
func (h *CollectionsHandler) FollowUps(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	followUps, err := h.collectionsService.FollowUps(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]FollowUpResponse, 0, len(followUps))
	for i := range followUps {
		items = append(items, *toFollowUpResponse(&followUps[i]))
	}
	h.Success(c, items)
}

// Reminder serves POST /invoices/:id/collections/reminder: record a reminder email
func (h *CollectionsHandler) Reminder(c *gin.Context) {
	h.action(c, h.collectionsService.SendReminder)
}

// WriteOff serves POST /invoices/:id/collections/write-off: write off an invoice
func (h *CollectionsHandler) WriteOff(c *gin.Context) {
	h.action(c, h.collectionsService.WriteOff)
}

// Note serves POST /invoices/:id/collections/note: add a note
func (h *CollectionsHandler) Note(c *gin.Context) {
	h.action(c, h.collectionsService.AddNote)
}

// DemandLetter serves POST /invoices/:id/collections/demand-letter: send a demand letter
func (h *CollectionsHandler) DemandLetter(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	var req DemandLetterRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	result, err := h.collectionsService.SendDemandLetter(c.Request.Context(), tenantID, invoiceID, collectionsapp.DemandLetterRequest{
		Template: req.Template,
		Actor:    getActor(c, req.Actor),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, h.toActionResponse(result))
}

// DemandLetterPreview serves POST /invoices/:id/collections/demand-letter/preview: preview a demand letter
func (h *CollectionsHandler) DemandLetterPreview(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	var req DemandLetterRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	preview, err := h.collectionsService.PreviewDemandLetter(c.Request.Context(), tenantID, invoiceID, req.Template)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	unmatched := preview.Unmatched
	if unmatched == nil {
		unmatched = []string{}
	}
	h.Success(c, DemandLetterPreviewResponse{
		InvoiceID:       preview.InvoiceID,
		Content:         preview.Content,
		UnmatchedTokens: unmatched,
		AgingTier:       string(preview.Tier),
		DaysOverdue:     preview.DaysOverdue,
		Eligible:        preview.Eligible,
	})
}

type actionOp func(ctx context.Context, tenantID, invoiceID uuid.UUID, req collectionsapp.ActionRequest) (*collectionsapp.ActionResult, error)

func (h *CollectionsHandler) action(c *gin.Context, op actionOp) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	var req CollectionsActionRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	result, err := op(c.Request.Context(), tenantID, invoiceID, collectionsapp.ActionRequest{
		Notes: req.Notes,
		Actor: getActor(c, req.Actor),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, h.toActionResponse(result))
}

func (h *CollectionsHandler) toActionResponse(result *collectionsapp.ActionResult) CollectionsActionResponse {
	// the invoice is rendered as of the moment the action was recorded
	at := result.Invoice.UpdatedAt
	if result.Entry != nil {
		at = result.Entry.CreatedAt
	}
	resp := CollectionsActionResponse{
		Invoice:         toInvoiceViewResponse(invoicingapp.NewInvoiceView(result.Invoice, at)),
		AgingTier:       string(result.Tier),
		DaysOverdue:     result.DaysOverdue,
		WrittenOff:      moneyPtr(result.WrittenOff),
		UnmatchedTokens: result.Unmatched,
	}
	if result.FollowUp != nil {
		resp.FollowUp = toFollowUpResponse(result.FollowUp)
	}
	if result.Entry != nil {
		id := result.Entry.ID
		resp.Entry = toTimelineEntryResponse(collections.TimelineEntry{
			ID:        &id,
			Action:    result.Entry.Action,
			Details:   result.Entry.Details,
			Actor:     result.Entry.Actor,
			Timestamp: result.Entry.CreatedAt,
		})
	}
	return resp
}

func toTimelineEntryResponse(e collections.TimelineEntry) TimelineEntryResponse {
	resp := TimelineEntryResponse{
		Action:    e.Action.String(),
		Label:     e.Action.Label(),
		Details:   e.Details,
		Actor:     e.Actor,
		Timestamp: e.Timestamp.UTC(),
		Synthetic: e.Synthetic,
	}
	if e.ID != nil {
		id := e.ID.String()
		resp.ID = &id
	}
	return resp
}

func toFollowUpResponse(f *collections.FollowUp) *FollowUpResponse {
	return &FollowUpResponse{
		ID:            f.ID.String(),
		InvoiceID:     f.InvoiceID.String(),
		ContactMethod: f.ContactMethod.String(),
		Notes:         f.Notes,
		Actor:         f.Actor,
		CreatedAt:     f.CreatedAt.UTC(),
	}
}
