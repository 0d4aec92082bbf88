package collections

import (
	"github.com/permitflow/backend/internal/domain/collections"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// ActionRequest carries the free-text note and the acting user of an action
type ActionRequest struct {
	Notes string
	Actor string
}

// DemandLetterRequest sends a demand letter. An empty Template uses the
// tenant's configured template.
type DemandLetterRequest struct {
	Template string
	Actor    string
}

// ActionResult reports a completed collections action
type ActionResult struct {
	Invoice     *invoicing.Invoice
	FollowUp    *collections.FollowUp
	Entry       *collections.ActivityLogEntry
	Tier        invoicing.AgingTier
	DaysOverdue int
	// WrittenOff is set by write-offs only
	WrittenOff *decimal.Decimal
	// Unmatched lists placeholders left in a demand letter
	Unmatched []string
}

// DemandLetterPreview is a merged letter that has not been sent
type DemandLetterPreview struct {
	InvoiceID   string
	Content     string
	Unmatched   []string
	Tier        invoicing.AgingTier
	DaysOverdue int
	// Eligible reports whether the tier allows a demand letter
	Eligible bool
}

// ActionsView lists the actions available on an invoice as of now
type ActionsView struct {
	Invoice         *invoicing.Invoice
	EffectiveStatus invoicing.InvoiceStatus
	Tier            invoicing.AgingTier
	DaysOverdue     int
	Actions         collections.ActionSet
	// Enforced is true when actions outside Actions are rejected
	Enforced bool
}
