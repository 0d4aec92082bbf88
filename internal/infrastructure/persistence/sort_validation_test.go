package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", ValidateSortOrder("asc"))
	assert.Equal(t, "ASC", ValidateSortOrder(" ASC "))
	assert.Equal(t, "DESC", ValidateSortOrder("desc"))
	assert.Equal(t, "DESC", ValidateSortOrder(""))
	assert.Equal(t, "DESC", ValidateSortOrder("ASC; DROP TABLE invoices"))
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"allowed field", "due_date", "due_date"},
		{"trimmed", "  total_due ", "total_due"},
		{"empty falls back", "", "created_at"},
		{"unknown falls back", "password", "created_at"},
		{"injection falls back", "due_date; DELETE FROM invoices", "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateSortField(tt.field, InvoiceSortFields, "created_at"))
		})
	}
}

func TestOrderClause(t *testing.T) {
	assert.Equal(t, "current_balance ASC", orderClause("current_balance", "asc", RetainerSortFields))
	assert.Equal(t, "created_at DESC", orderClause("due_date", "", RetainerSortFields))
}
