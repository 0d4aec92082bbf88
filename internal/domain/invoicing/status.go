package invoicing

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	StatusDraft       InvoiceStatus = "draft"
	StatusReadyToSend InvoiceStatus = "ready_to_send"
	StatusNeedsReview InvoiceStatus = "needs_review"
	StatusSent        InvoiceStatus = "sent"
	StatusOverdue     InvoiceStatus = "overdue"
	StatusPaid        InvoiceStatus = "paid"
	StatusLegalHold   InvoiceStatus = "legal_hold"
)

// transitions lists the legal targets for every status
var transitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:       {StatusReadyToSend, StatusNeedsReview, StatusLegalHold},
	StatusReadyToSend: {StatusSent, StatusNeedsReview, StatusDraft, StatusLegalHold},
	StatusNeedsReview: {StatusReadyToSend, StatusDraft, StatusLegalHold},
	StatusSent:        {StatusOverdue, StatusPaid, StatusLegalHold},
	StatusOverdue:     {StatusPaid, StatusLegalHold},
	StatusPaid:        {},
	StatusLegalHold:   {},
}

// IsValid checks if the status is a known InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for paid and legal_hold
func (s InvoiceStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusLegalHold
}

// IsEditable returns true while line items may be changed freely
func (s InvoiceStatus) IsEditable() bool {
	return s == StatusDraft || s == StatusReadyToSend || s == StatusNeedsReview
}

// IsCollectible returns true for statuses that collections actions apply to
func (s InvoiceStatus) IsCollectible() bool {
	return s == StatusSent || s == StatusOverdue
}

// CanTransitionTo reports whether moving from s to target is legal
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AllStatuses returns every status in lifecycle order
func AllStatuses() []InvoiceStatus {
	return []InvoiceStatus{
		StatusDraft, StatusReadyToSend, StatusNeedsReview,
		StatusSent, StatusOverdue, StatusPaid, StatusLegalHold,
	}
}
