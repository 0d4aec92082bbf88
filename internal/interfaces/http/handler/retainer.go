package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	retainerapp "github.com/permitflow/backend/internal/application/retainer"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// RetainerHandler handles client retainer endpoints
type RetainerHandler struct {
	BaseHandler
	retainerService *retainerapp.RetainerService
}

// NewRetainerHandler creates a new RetainerHandler
func NewRetainerHandler(retainerService *retainerapp.RetainerService) *RetainerHandler {
	return &RetainerHandler{retainerService: retainerService}
}

// CreateRetainerRequest opens a retainer
type CreateRetainerRequest struct {
	ClientID       string          `json:"client_id" binding:"required,uuid"`
	InitialBalance decimal.Decimal `json:"initial_balance" swaggertype:"string"`
}

// DepositRequest tops up a retainer
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string"`
}

// ListRetainersQuery holds the list filters. client_id returns only that
// client's open retainer.
type ListRetainersQuery struct {
	dto.ListRequest
	ClientID string `form:"client_id" binding:"omitempty,uuid"`
}

// RetainerResponse represents a retainer in API responses
type RetainerResponse struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	ClientID       string    `json:"client_id"`
	CurrentBalance string    `json:"current_balance"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int       `json:"version"`
}

// DrawResponse is one ledger row
type DrawResponse struct {
	ID            string    `json:"id"`
	RetainerID    string    `json:"retainer_id"`
	InvoiceID     string    `json:"invoice_id"`
	Amount        string    `json:"amount"`
	BalanceBefore string    `json:"balance_before"`
	BalanceAfter  string    `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// Create serves POST /retainers: open a retainer
func (h *RetainerHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req CreateRetainerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	r, err := h.retainerService.CreateRetainer(c.Request.Context(), tenantID, uuid.MustParse(req.ClientID), req.InitialBalance)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toRetainerResponse(r))
}

// GetByID serves GET /retainers/:id: get retainer by ID
func (h *RetainerHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id", "retainer")
	if !ok {
		return
	}

	r, err := h.retainerService.GetRetainer(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRetainerResponse(r))
}

// List serves GET /retainers: list retainers
func (h *RetainerHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var query ListRetainersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if query.ClientID != "" {
		r, err := h.retainerService.GetClientRetainer(c.Request.Context(), tenantID, uuid.MustParse(query.ClientID))
		if err != nil {
			if shared.IsCode(err, shared.CodeNotFound) {
				h.Success(c, []RetainerResponse{})
				return
			}
			h.HandleError(c, err)
			return
		}
		h.Success(c, []RetainerResponse{toRetainerResponse(r)})
		return
	}

	query.ListRequest = query.ListRequest.WithDefaults()
	retainers, err := h.retainerService.ListRetainers(c.Request.Context(), tenantID, shared.Filter{
		Page:     query.Page,
		PageSize: query.PageSize,
		OrderBy:  query.OrderBy,
		OrderDir: query.OrderDir,
		Search:   query.Search,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]RetainerResponse, 0, len(retainers))
	for i := range retainers {
		items = append(items, toRetainerResponse(&retainers[i]))
	}
	h.Success(c, items)
}

// Deposit serves POST /retainers/:id/deposit: top up a retainer
func (h *RetainerHandler) Deposit(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id", "retainer")
	if !ok {
		return
	}

	var req DepositRequest
	if !h.bindJSON(c, &req) {
		return
	}

	r, err := h.retainerService.Deposit(c.Request.Context(), tenantID, id, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRetainerResponse(r))
}

// Close serves POST /retainers/:id/close: close a retainer
func (h *RetainerHandler) Close(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id", "retainer")
	if !ok {
		return
	}

	r, err := h.retainerService.Close(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRetainerResponse(r))
}

// Draws serves GET /retainers/:id/draws: retainer draw ledger
func (h *RetainerHandler) Draws(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id", "retainer")
	if !ok {
		return
	}

	draws, err := h.retainerService.Draws(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDrawResponses(draws))
}

// InvoiceDraws lists the draws credited to an invoice
func (h *RetainerHandler) InvoiceDraws(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "id", "invoice")
	if !ok {
		return
	}

	draws, err := h.retainerService.InvoiceDraws(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDrawResponses(draws))
}

func toRetainerResponse(r *retainer.Retainer) RetainerResponse {
	return RetainerResponse{
		ID:             r.ID.String(),
		TenantID:       r.TenantID.String(),
		ClientID:       r.ClientID.String(),
		CurrentBalance: money(r.CurrentBalance),
		Status:         r.Status.String(),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		Version:        r.Version,
	}
}

func toDrawResponses(draws []retainer.Draw) []DrawResponse {
	out := make([]DrawResponse, 0, len(draws))
	for _, d := range draws {
		out = append(out, DrawResponse{
			ID:            d.ID.String(),
			RetainerID:    d.RetainerID.String(),
			InvoiceID:     d.InvoiceID.String(),
			Amount:        money(d.Amount),
			BalanceBefore: money(d.BalanceBefore),
			BalanceAfter:  money(d.BalanceAfter),
			CreatedAt:     d.CreatedAt.UTC(),
		})
	}
	return out
}
