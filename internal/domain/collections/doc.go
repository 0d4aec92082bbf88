// Package collections provides domain models for chasing unpaid invoices.
//
// This package implements the collections bounded context, which is responsible for:
//   - Deciding which actions an overdue invoice is eligible for (AllowedActions)
//   - Merging demand-letter templates with live invoice data
//   - Recording follow-ups and activity log entries for every action
//   - Building the per-invoice activity timeline shown to users
//
// Key Entities:
//   - FollowUp: Append-only record of a contact attempt (reminder, demand letter, write-off)
//   - ActivityLogEntry: Append-only audit line for an invoice
//
// Value Objects:
//   - ActionSet: The actions available on an invoice at a point in time
//   - DemandLetterData: The placeholder values for a demand letter
//   - TimelineEntry: One row of the merged activity timeline
//
// The collections domain integrates with:
//   - Invoicing domain: For status, due dates and aging tiers
package collections
