package collections

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TimelineEntry is one row of an invoice's merged activity timeline.
// Synthetic rows are derived from invoice timestamps and have no ID.
type TimelineEntry struct {
	ID        *uuid.UUID
	Action    Action
	Details   string
	Actor     string
	Timestamp time.Time
	Synthetic bool
}

// MergeTimeline combines the explicit log of an invoice with entries derived
// from its created, sent and paid timestamps, newest first. A derived entry is
// dropped when the log already has an entry with the same action. The result
// depends only on the inputs.
func MergeTimeline(inv *invoicing.Invoice, log []ActivityLogEntry) []TimelineEntry {
	explicit := make(map[Action]bool, len(log))
	timeline := make([]TimelineEntry, 0, len(log)+3)
	for i := range log {
		e := log[i]
		id := e.ID
		explicit[e.Action] = true
		timeline = append(timeline, TimelineEntry{
			ID:        &id,
			Action:    e.Action,
			Details:   e.Details,
			Actor:     e.Actor,
			Timestamp: e.CreatedAt,
		})
	}

	if !explicit[ActionCreated] {
		timeline = append(timeline, TimelineEntry{
			Action:    ActionCreated,
			Details:   "Invoice " + inv.InvoiceNumber + " created",
			Timestamp: inv.CreatedAt,
			Synthetic: true,
		})
	}
	if inv.SentAt != nil && !explicit[ActionSent] {
		timeline = append(timeline, TimelineEntry{
			Action:    ActionSent,
			Details:   "Invoice sent",
			Timestamp: *inv.SentAt,
			Synthetic: true,
		})
	}
	if inv.PaidAt != nil && !explicit[ActionPaid] {
		timeline = append(timeline, TimelineEntry{
			Action:    ActionPaid,
			Details:   paymentDetails(inv),
			Timestamp: *inv.PaidAt,
			Synthetic: true,
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.After(timeline[j].Timestamp)
	})
	return timeline
}

func paymentDetails(inv *invoicing.Invoice) string {
	return PaymentDetails(inv.PaymentMethod, inv.PaymentAmount)
}

// PaymentDetails describes a payment, e.g. "Payment received via check $1,200.00".
// Method and amount are left out when unknown.
func PaymentDetails(method string, amount *decimal.Decimal) string {
	parts := []string{"Payment received"}
	if method != "" {
		parts = append(parts, "via "+method)
	}
	if amount != nil {
		parts = append(parts, valueobject.FormatUSD(*amount))
	}
	return strings.Join(parts, " ")
}
