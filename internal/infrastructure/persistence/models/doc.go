// Package models contains GORM persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: shared columns (ID, timestamps, tenant, version)
//   - invoice.go: invoices, line items stored as a JSON list
//   - retainer.go: retainers and their append-only draw ledger
//   - collections.go: follow-ups and the activity log
package models
