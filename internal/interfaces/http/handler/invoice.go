package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invoicingapp "github.com/permitflow/backend/internal/application/invoicing"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// InvoiceHandler handles invoice lifecycle endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *invoicingapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *invoicingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// LineItemRequest is one submitted invoice row. Quantity and rate together
// price the row; amount alone makes a fixed fee.
type LineItemRequest struct {
	Description string           `json:"description" binding:"max=500"`
	Quantity    *decimal.Decimal `json:"quantity" swaggertype:"string"`
	Rate        *decimal.Decimal `json:"rate" swaggertype:"string"`
	Amount      *decimal.Decimal `json:"amount" swaggertype:"string"`
}

// CreateInvoiceRequest represents a request to create an invoice
type CreateInvoiceRequest struct {
	ClientID       string            `json:"client_id" binding:"required,uuid"`
	ClientName     string            `json:"client_name" binding:"required,max=200"`
	ProjectID      string            `json:"project_id" binding:"omitempty,uuid"`
	ProjectName    string            `json:"project_name" binding:"max=200"`
	LineItems      []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
	PaymentTerms   string            `json:"payment_terms" binding:"omitempty,oneof=due_on_receipt net_15 net_30 net_45 net_60"`
	InvoiceDate    string            `json:"invoice_date"`
	DueDate        string            `json:"due_date"`
	InitialStatus  string            `json:"initial_status" binding:"omitempty,oneof=draft ready_to_send"`
	RetainerAmount *decimal.Decimal  `json:"retainer_amount" swaggertype:"string"`
	RetainerID     string            `json:"retainer_id" binding:"omitempty,uuid"`
	Actor          string            `json:"actor" binding:"max=255"`
}

// UpdateLineItemsRequest replaces the rows of an invoice
type UpdateLineItemsRequest struct {
	LineItems []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
}

// RecordPaymentRequest marks an invoice paid
type RecordPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount" swaggertype:"string"`
	Method string           `json:"method" binding:"max=50"`
	Actor  string           `json:"actor" binding:"max=255"`
}

// LegalHoldRequest places an invoice on legal hold
type LegalHoldRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// SetDueDateRequest sets or clears the due date. An empty value clears it.
type SetDueDateRequest struct {
	DueDate string `json:"due_date"`
}

// ListInvoicesQuery holds the list filters
type ListInvoicesQuery struct {
	dto.ListRequest
	ClientID  string   `form:"client_id" binding:"omitempty,uuid"`
	ProjectID string   `form:"project_id" binding:"omitempty,uuid"`
	Statuses  []string `form:"status" binding:"omitempty,dive,oneof=draft ready_to_send needs_review sent overdue paid legal_hold"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	Description string  `json:"description"`
	Quantity    *string `json:"quantity,omitempty"`
	Rate        *string `json:"rate,omitempty"`
	Amount      string  `json:"amount"`
}

// InvoiceResponse represents an invoice in API responses. Status is the
// stored status; EffectiveStatus also reflects an overdue that has not been
// written back yet.
type InvoiceResponse struct {
	ID              string             `json:"id"`
	TenantID        string             `json:"tenant_id"`
	InvoiceNumber   string             `json:"invoice_number"`
	ClientID        string             `json:"client_id"`
	ClientName      string             `json:"client_name"`
	ProjectID       *string            `json:"project_id,omitempty"`
	ProjectName     string             `json:"project_name,omitempty"`
	LineItems       []LineItemResponse `json:"line_items"`
	Subtotal        string             `json:"subtotal"`
	RetainerApplied string             `json:"retainer_applied"`
	TotalDue        string             `json:"total_due"`
	Status          string             `json:"status"`
	EffectiveStatus string             `json:"effective_status,omitempty"`
	DaysOverdue     int                `json:"days_overdue"`
	AgingTier       string             `json:"aging_tier,omitempty"`
	PaymentTerms    string             `json:"payment_terms"`
	InvoiceDate     time.Time          `json:"invoice_date"`
	DueDate         *time.Time         `json:"due_date,omitempty"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	PaymentAmount   *string            `json:"payment_amount,omitempty"`
	PaymentMethod   string             `json:"payment_method,omitempty"`
	HoldReason      string             `json:"hold_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Version         int                `json:"version"`
}

// RetainerDrawResponse reports the draw made while creating an invoice
type RetainerDrawResponse struct {
	RetainerID    string  `json:"retainer_id,omitempty"`
	Requested     string  `json:"requested,omitempty"`
	Applied       string  `json:"applied,omitempty"`
	Clamped       bool    `json:"clamped"`
	BalanceBefore *string `json:"balance_before,omitempty"`
	BalanceAfter  *string `json:"balance_after,omitempty"`
	Error         *string `json:"error,omitempty"`
	ErrorCode     *string `json:"error_code,omitempty"`
}

// CreateInvoiceResponse is the created invoice plus the draw outcome
type CreateInvoiceResponse struct {
	Invoice InvoiceResponse       `json:"invoice"`
	Draw    *RetainerDrawResponse `json:"retainer_draw,omitempty"`
}

// AgingGroupResponse is one invoice inside an aging tier
type AgingGroupResponse struct {
	Invoice     InvoiceResponse `json:"invoice"`
	DaysOverdue int             `json:"days_overdue"`
}

// AgingReportResponse is the collectible portfolio bucketed by tier
type AgingReportResponse struct {
	AsOf      time.Time            `json:"as_of"`
	Critical  []AgingGroupResponse `json:"critical"`
	Urgent    []AgingGroupResponse `json:"urgent"`
	Attention []AgingGroupResponse `json:"attention"`
	Count     int                  `json:"count"`
	TotalDue  string               `json:"total_due"`
}

// ReconcileResponse reports how many invoices were moved to overdue
type ReconcileResponse struct {
	Updated int `json:"updated"`
}

// Create serves POST /invoices: create an invoice
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	appReq := invoicingapp.CreateInvoiceRequest{
		ClientID:       uuid.MustParse(req.ClientID),
		ClientName:     req.ClientName,
		ProjectName:    req.ProjectName,
		LineItems:      toLineItemInputs(req.LineItems),
		PaymentTerms:   invoicing.PaymentTerms(req.PaymentTerms),
		InitialStatus:  invoicing.InvoiceStatus(req.InitialStatus),
		RetainerAmount: req.RetainerAmount,
		Actor:          getActor(c, req.Actor),
	}
	if req.ProjectID != "" {
		appReq.ProjectID = uuid.MustParse(req.ProjectID)
	}
	if req.RetainerID != "" {
		retainerID := uuid.MustParse(req.RetainerID)
		appReq.RetainerID = &retainerID
	}
	if req.InvoiceDate != "" {
		d, err := parseDate(req.InvoiceDate)
		if err != nil {
			h.BadRequest(c, "Invalid invoice_date")
			return
		}
		appReq.InvoiceDate = &d
	}
	if req.DueDate != "" {
		d, err := parseDate(req.DueDate)
		if err != nil {
			h.BadRequest(c, "Invalid due_date")
			return
		}
		appReq.DueDate = &d
	}

	result, err := h.invoiceService.CreateInvoice(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := CreateInvoiceResponse{
		Invoice: h.toResponse(result.Invoice),
		Draw:    toDrawResponse(result),
	}
	h.Created(c, resp)
}

// GetByID serves GET /invoices/:id: get invoice by ID
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	view, err := h.invoiceService.GetInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceViewResponse(view))
}

// List serves GET /invoices: list invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var query ListInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	query.ListRequest = query.ListRequest.WithDefaults()

	filter := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     query.Page,
			PageSize: query.PageSize,
			OrderBy:  query.OrderBy,
			OrderDir: query.OrderDir,
			Search:   query.Search,
		},
	}
	if query.ClientID != "" {
		id := uuid.MustParse(query.ClientID)
		filter.ClientID = &id
	}
	if query.ProjectID != "" {
		id := uuid.MustParse(query.ProjectID)
		filter.ProjectID = &id
	}
	for _, s := range query.Statuses {
		filter.Statuses = append(filter.Statuses, invoicing.InvoiceStatus(s))
	}

	views, total, err := h.invoiceService.ListInvoices(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]InvoiceResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toInvoiceViewResponse(v))
	}
	h.SuccessWithMeta(c, items, total, query.Page, query.PageSize)
}

// MarkReady serves POST /invoices/:id/ready: mark an invoice ready to send
func (h *InvoiceHandler) MarkReady(c *gin.Context) {
	h.transition(c, h.invoiceService.MarkReady)
}

// MarkNeedsReview serves POST /invoices/:id/needs-review: flag an invoice for review
func (h *InvoiceHandler) MarkNeedsReview(c *gin.Context) {
	h.transition(c, h.invoiceService.MarkNeedsReview)
}

// ReturnToDraft serves POST /invoices/:id/draft: return an unsent invoice to draft
func (h *InvoiceHandler) ReturnToDraft(c *gin.Context) {
	h.transition(c, h.invoiceService.ReturnToDraft)
}

// Send serves POST /invoices/:id/send: send an invoice
func (h *InvoiceHandler) Send(c *gin.Context) {
	h.transition(c, h.invoiceService.Send)
}

// RecordPayment serves POST /invoices/:id/payment: record a payment
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	inv, err := h.invoiceService.RecordPayment(c.Request.Context(), tenantID, invoiceID, invoicingapp.RecordPaymentRequest{
		Amount: req.Amount,
		Method: req.Method,
		Actor:  getActor(c, req.Actor),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.toResponse(inv))
}

// PlaceLegalHold serves POST /invoices/:id/legal-hold: place an invoice on legal hold
func (h *InvoiceHandler) PlaceLegalHold(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	var req LegalHoldRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	inv, err := h.invoiceService.PlaceLegalHold(c.Request.Context(), tenantID, invoiceID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.toResponse(inv))
}

// UpdateLineItems serves PUT /invoices/:id/line-items: replace line items of an unsent invoice
func (h *InvoiceHandler) UpdateLineItems(c *gin.Context) {
	h.replaceItems(c, h.invoiceService.UpdateLineItems)
}

// EditInPlace serves PUT /invoices/:id/edit-in-place: correct line items without changing status
func (h *InvoiceHandler) EditInPlace(c *gin.Context) {
	h.replaceItems(c, h.invoiceService.EditInPlace)
}

// SetDueDate serves PUT /invoices/:id/due-date: set or clear the due date
func (h *InvoiceHandler) SetDueDate(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	var req SetDueDateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		d, err := parseDate(req.DueDate)
		if err != nil {
			h.BadRequest(c, "Invalid due_date")
			return
		}
		dueDate = &d
	}

	inv, err := h.invoiceService.SetDueDate(c.Request.Context(), tenantID, invoiceID, dueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.toResponse(inv))
}

// Aging serves GET /aging: aging report
func (h *InvoiceHandler) Aging(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	report, err := h.invoiceService.AgingReport(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AgingReportResponse{
		AsOf:      report.AsOf.UTC(),
		Critical:  h.toGroupResponses(report.Critical),
		Urgent:    h.toGroupResponses(report.Urgent),
		Attention: h.toGroupResponses(report.Attention),
		Count:     report.Count,
		TotalDue:  money(report.TotalDue),
	})
}

// ReconcileOverdue serves POST /invoices/reconcile-overdue: write back overdue status
func (h *InvoiceHandler) ReconcileOverdue(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	updated, err := h.invoiceService.ReconcileOverdue(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReconcileResponse{Updated: updated})
}

type invoiceOp func(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error)

func (h *InvoiceHandler) transition(c *gin.Context, op invoiceOp) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	inv, err := op(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.toResponse(inv))
}

type itemsOp func(ctx context.Context, tenantID, id uuid.UUID, items []invoicingapp.LineItemInput) (*invoicing.Invoice, error)

func (h *InvoiceHandler) replaceItems(c *gin.Context, op itemsOp) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	var req UpdateLineItemsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	inv, err := op(c.Request.Context(), tenantID, invoiceID, toLineItemInputs(req.LineItems))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.toResponse(inv))
}

// toResponse renders a freshly written invoice as of the service clock
func (h *InvoiceHandler) toResponse(inv *invoicing.Invoice) InvoiceResponse {
	return toInvoiceViewResponse(invoicingapp.NewInvoiceView(inv, h.invoiceService.Now()))
}

func (h *InvoiceHandler) toGroupResponses(groups []invoicing.GroupedInvoice) []AgingGroupResponse {
	out := make([]AgingGroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, AgingGroupResponse{
			Invoice:     h.toResponse(g.Invoice),
			DaysOverdue: g.DaysOverdue,
		})
	}
	return out
}

func toLineItemInputs(items []LineItemRequest) []invoicingapp.LineItemInput {
	inputs := make([]invoicingapp.LineItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, invoicingapp.LineItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Amount:      item.Amount,
		})
	}
	return inputs
}

func toInvoiceViewResponse(view invoicingapp.InvoiceView) InvoiceResponse {
	inv := view.Invoice
	resp := InvoiceResponse{
		ID:              inv.ID.String(),
		TenantID:        inv.TenantID.String(),
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID.String(),
		ClientName:      inv.ClientName,
		ProjectName:     inv.ProjectName,
		LineItems:       make([]LineItemResponse, 0, len(inv.LineItems)),
		Subtotal:        money(inv.Subtotal),
		RetainerApplied: money(inv.RetainerApplied),
		TotalDue:        money(inv.TotalDue),
		Status:          inv.Status.String(),
		EffectiveStatus: view.EffectiveStatus.String(),
		DaysOverdue:     view.DaysOverdue,
		AgingTier:       string(view.Tier),
		PaymentTerms:    string(inv.PaymentTerms),
		InvoiceDate:     inv.InvoiceDate.UTC(),
		DueDate:         utcPtr(inv.DueDate),
		SentAt:          utcPtr(inv.SentAt),
		PaidAt:          utcPtr(inv.PaidAt),
		PaymentAmount:   moneyPtr(inv.PaymentAmount),
		PaymentMethod:   inv.PaymentMethod,
		HoldReason:      inv.HoldReason,
		CreatedAt:       inv.CreatedAt.UTC(),
		UpdatedAt:       inv.UpdatedAt.UTC(),
		Version:         inv.Version,
	}
	if inv.ProjectID != uuid.Nil {
		projectID := inv.ProjectID.String()
		resp.ProjectID = &projectID
	}
	for _, item := range inv.LineItems {
		li := LineItemResponse{
			Description: item.Description,
			Amount:      money(item.Amount),
		}
		if item.Quantity != nil {
			q := item.Quantity.String()
			li.Quantity = &q
		}
		li.Rate = moneyPtr(item.Rate)
		resp.LineItems = append(resp.LineItems, li)
	}
	return resp
}

func toDrawResponse(result *invoicingapp.CreateInvoiceResult) *RetainerDrawResponse {
	if result.Draw == nil && result.DrawError == nil && result.Authorization == nil {
		return nil
	}
	resp := &RetainerDrawResponse{}
	if result.Authorization != nil {
		resp.Requested = money(result.Authorization.Requested)
		resp.Applied = money(result.Authorization.Amount)
		resp.Clamped = result.Authorization.Clamped
	}
	if result.Draw != nil {
		resp.RetainerID = result.Draw.RetainerID.String()
		resp.Applied = money(result.Draw.Amount)
		resp.BalanceBefore = moneyPtr(&result.Draw.BalanceBefore)
		resp.BalanceAfter = moneyPtr(&result.Draw.BalanceAfter)
	}
	if result.DrawError != nil {
		code, msg := dto.ErrCodeInternal, "Retainer draw failed"
		var domainErr *shared.DomainError
		if errors.As(result.DrawError, &domainErr) {
			code, msg = dto.NormalizeErrorCode(domainErr.Code), domainErr.Message
		}
		resp.Error = &msg
		resp.ErrorCode = &code
		resp.Applied = money(decimal.Zero)
	}
	return resp
}
