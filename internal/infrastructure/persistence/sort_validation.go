package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"invoice_number": true,
	"invoice_date":   true,
	"due_date":       true,
	"total_due":      true,
	"status":         true,
	"client_name":    true,
}

// RetainerSortFields contains allowed sort fields for retainers
var RetainerSortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"current_balance": true,
	"status":          true,
}

func orderClause(field, dir string, allowed map[string]bool) string {
	return ValidateSortField(field, allowed, "created_at") + " " + ValidateSortOrder(dir)
}
