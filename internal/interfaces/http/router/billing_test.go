package router

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/permitflow/backend/internal/interfaces/http/handler"
	"github.com/stretchr/testify/assert"
)

func billingHandlers() BillingHandlers {
	return BillingHandlers{
		Invoice:     &handler.InvoiceHandler{},
		Collections: &handler.CollectionsHandler{},
		Retainer:    &handler.RetainerHandler{},
		System:      handler.NewSystemHandler("permitflow", "test"),
	}
}

func TestBilling_RouteTable(t *testing.T) {
	var routes []RouteInfo
	for _, registrar := range Billing(billingHandlers()) {
		routes = append(routes, registrar.(*DomainGroup).Routes()...)
	}

	assert.Len(t, routes, 30)
	assert.Contains(t, routes, RouteInfo{Group: "invoices", Method: http.MethodPost, Path: "/invoices/:id/send"})
	assert.Contains(t, routes, RouteInfo{Group: "invoices", Method: http.MethodPut, Path: "/invoices/:id/due-date"})
	assert.Contains(t, routes, RouteInfo{Group: "invoices", Method: http.MethodPost, Path: "/invoices/:id/collections/demand-letter/preview"})
	assert.Contains(t, routes, RouteInfo{Group: "collections", Method: http.MethodPost, Path: "/invoices/:id/collections/write-off"})
	assert.Contains(t, routes, RouteInfo{Group: "aging", Method: http.MethodGet, Path: "/aging"})
	assert.Contains(t, routes, RouteInfo{Group: "retainers", Method: http.MethodPost, Path: "/retainers/:id/deposit"})
	assert.Contains(t, routes, RouteInfo{Group: "system", Method: http.MethodGet, Path: "/system/info"})
}

func TestBilling_ActionMiddleware(t *testing.T) {
	engine := gin.New()
	h := billingHandlers()
	h.ActionMiddleware = []gin.HandlerFunc{func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTeapot)
	}}
	NewRouter(engine).Register(Billing(h)...).Setup()

	w := serve(engine, http.MethodPost, "/api/v1/invoices/42/collections/note")
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestBilling_Mounts(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine).Register(Billing(billingHandlers())...)

	assert.NotPanics(t, r.Setup)

	w := serve(engine, http.MethodGet, "/api/v1/system/info")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(engine, http.MethodGet, "/api/v1/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
