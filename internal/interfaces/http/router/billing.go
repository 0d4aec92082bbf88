package router

import (
	"github.com/gin-gonic/gin"
	"github.com/permitflow/backend/internal/interfaces/http/handler"
)

// BillingHandlers bundles the handlers mounted under the API base path
type BillingHandlers struct {
	Invoice     *handler.InvoiceHandler
	Collections *handler.CollectionsHandler
	Retainer    *handler.RetainerHandler
	System      *handler.SystemHandler

	// ActionMiddleware runs before every side-effecting collections action
	ActionMiddleware []gin.HandlerFunc
}

// InvoiceRoutes builds the invoice lifecycle and collections routes
func InvoiceRoutes(h BillingHandlers) *DomainGroup {
	invoices := NewDomainGroup("invoices", "/invoices")
	invoices.
		POST("", h.Invoice.Create).
		GET("", h.Invoice.List).
		POST("/reconcile-overdue", h.Invoice.ReconcileOverdue).
		GET("/:id", h.Invoice.GetByID).
		POST("/:id/ready", h.Invoice.MarkReady).
		POST("/:id/needs-review", h.Invoice.MarkNeedsReview).
		POST("/:id/draft", h.Invoice.ReturnToDraft).
		POST("/:id/send", h.Invoice.Send).
		POST("/:id/payment", h.Invoice.RecordPayment).
		POST("/:id/legal-hold", h.Invoice.PlaceLegalHold).
		PUT("/:id/line-items", h.Invoice.UpdateLineItems).
		PUT("/:id/edit-in-place", h.Invoice.EditInPlace).
		PUT("/:id/due-date", h.Invoice.SetDueDate).
		GET("/:id/timeline", h.Collections.Timeline).
		GET("/:id/allowed-actions", h.Collections.AllowedActions).
		GET("/:id/follow-ups", h.Collections.FollowUps).
		GET("/:id/draws", h.Retainer.InvoiceDraws).
		POST("/:id/collections/demand-letter/preview", h.Collections.DemandLetterPreview)

	invoices.Group("collections", "/:id/collections").
		Use(h.ActionMiddleware...).
		POST("/reminder", h.Collections.Reminder).
		POST("/demand-letter", h.Collections.DemandLetter).
		POST("/write-off", h.Collections.WriteOff).
		POST("/note", h.Collections.Note)

	return invoices
}

// AgingRoutes builds the portfolio aging report route
func AgingRoutes(h BillingHandlers) *DomainGroup {
	return NewDomainGroup("aging", "/aging").
		GET("", h.Invoice.Aging)
}

// RetainerRoutes builds the retainer ledger routes
func RetainerRoutes(h BillingHandlers) *DomainGroup {
	return NewDomainGroup("retainers", "/retainers").
		POST("", h.Retainer.Create).
		GET("", h.Retainer.List).
		GET("/:id", h.Retainer.GetByID).
		POST("/:id/deposit", h.Retainer.Deposit).
		POST("/:id/close", h.Retainer.Close).
		GET("/:id/draws", h.Retainer.Draws)
}

// SystemRoutes builds the info route served under the API base path
func SystemRoutes(h BillingHandlers) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)
}

// Billing returns every API route group in mount order
func Billing(h BillingHandlers) []RouteRegistrar {
	return []RouteRegistrar{
		InvoiceRoutes(h),
		AgingRoutes(h),
		RetainerRoutes(h),
		SystemRoutes(h),
	}
}
