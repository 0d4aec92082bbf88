package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
	Statuses  []InvoiceStatus
	DueBefore *time.Time
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindAllForTenant lists invoices for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// FindCollectible returns every sent or overdue invoice of the tenant
	FindCollectible(ctx context.Context, tenantID uuid.UUID) ([]Invoice, error)

	// CountForTenant counts invoices matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (int64, error)

	// Create inserts a new invoice
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock writes the invoice only if the stored version still matches
	// invoice.Version, then bumps the version. A lost race returns
	// shared.ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// NextInvoiceNumber generates a unique invoice number for a tenant
	NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID, now time.Time) (string, error)
}
