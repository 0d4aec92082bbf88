package shared

import "context"

// Filter represents query filter options
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// Offset returns the row offset for the filter's page
func (f Filter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// TransactionManager runs fn inside a single storage transaction. Repositories
// obtained from the context passed to fn take part in that transaction.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
