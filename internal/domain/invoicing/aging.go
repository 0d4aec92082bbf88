package invoicing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AgingTier is the urgency bucket of an overdue invoice
type AgingTier string

const (
	TierNone      AgingTier = ""
	TierAttention AgingTier = "attention"
	TierUrgent    AgingTier = "urgent"
	TierCritical  AgingTier = "critical"
)

// Tier thresholds in days past due
const (
	CollectionsThresholdDays = 30
	UrgentThresholdDays      = 60
	CriticalThresholdDays    = 90
)

const hoursPerDay = 24

// GroupedInvoice is an invoice annotated with its days overdue at
// classification time. It is never persisted.
type GroupedInvoice struct {
	Invoice     *Invoice
	DaysOverdue int
}

// AgingReport is the partition of collectible invoices into tiers
type AgingReport struct {
	AsOf      time.Time
	Critical  []GroupedInvoice
	Urgent    []GroupedInvoice
	Attention []GroupedInvoice
	Count     int
	TotalDue  decimal.Decimal
}

// DaysOverdue returns the whole days elapsed since reference, never negative
func DaysOverdue(now, reference time.Time) int {
	days := int(now.Sub(reference).Hours() / hoursPerDay)
	if days < 0 {
		return 0
	}
	return days
}

// TierFor classifies a days-overdue count; first match from the top wins
func TierFor(daysOverdue int) AgingTier {
	switch {
	case daysOverdue >= CriticalThresholdDays:
		return TierCritical
	case daysOverdue >= UrgentThresholdDays:
		return TierUrgent
	case daysOverdue >= CollectionsThresholdDays:
		return TierAttention
	}
	return TierNone
}

// TierOf returns the tier of a single invoice as of now. Invoices that are
// not sent or overdue have no tier.
func TierOf(inv *Invoice, now time.Time) (AgingTier, int) {
	if !inv.Status.IsCollectible() {
		return TierNone, 0
	}
	days := DaysOverdue(now, inv.AgingReference())
	return TierFor(days), days
}

// ClassifyAging buckets sent/overdue invoices into attention, urgent and
// critical tiers. Invoices under 30 days are left out. Each tier is ordered
// most overdue first.
func ClassifyAging(invoices []*Invoice, now time.Time) AgingReport {
	report := AgingReport{
		AsOf:      now,
		Critical:  []GroupedInvoice{},
		Urgent:    []GroupedInvoice{},
		Attention: []GroupedInvoice{},
		TotalDue:  decimal.Zero,
	}

	for _, inv := range invoices {
		tier, days := TierOf(inv, now)
		grouped := GroupedInvoice{Invoice: inv, DaysOverdue: days}
		switch tier {
		case TierCritical:
			report.Critical = append(report.Critical, grouped)
		case TierUrgent:
			report.Urgent = append(report.Urgent, grouped)
		case TierAttention:
			report.Attention = append(report.Attention, grouped)
		default:
			continue
		}
		report.Count++
		report.TotalDue = report.TotalDue.Add(inv.TotalDue)
	}

	for _, tier := range [][]GroupedInvoice{report.Critical, report.Urgent, report.Attention} {
		sort.SliceStable(tier, func(i, j int) bool {
			return tier[i].DaysOverdue > tier[j].DaysOverdue
		})
	}

	return report
}

// Tier returns the invoices of one tier
func (r AgingReport) Tier(tier AgingTier) []GroupedInvoice {
	switch tier {
	case TierCritical:
		return r.Critical
	case TierUrgent:
		return r.Urgent
	case TierAttention:
		return r.Attention
	}
	return nil
}
