package retainer

import (
	"context"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RetainerRepository defines the interface for retainer persistence
type RetainerRepository interface {
	// FindByIDForTenant finds a retainer by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Retainer, error)

	// FindByClient returns the client's most recent non-closed retainer
	FindByClient(ctx context.Context, tenantID, clientID uuid.UUID) (*Retainer, error)

	// FindAllForTenant lists retainers for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Retainer, error)

	// Create inserts a new retainer
	Create(ctx context.Context, r *Retainer) error

	// SaveWithLock writes the retainer only if the stored version still
	// matches r.Version, then bumps the version. A stale write returns
	// shared.ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, r *Retainer) error

	// Debit subtracts amount from the stored balance only if the stored
	// balance still covers it, then refreshes r from storage. A short balance
	// returns a CodeInsufficientBalance error and writes nothing.
	Debit(ctx context.Context, r *Retainer, amount decimal.Decimal) error
}

// DrawRepository stores the append-only draw ledger
type DrawRepository interface {
	// Create appends a draw record
	Create(ctx context.Context, d *Draw) error

	// FindByRetainer lists draws of a retainer, newest first
	FindByRetainer(ctx context.Context, tenantID, retainerID uuid.UUID) ([]Draw, error)

	// FindByInvoice lists draws credited to an invoice
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Draw, error)
}
