// Package migrations holds the versioned SQL schema of the billing database.
package migrations

import "embed"

// FS contains every *.sql migration, applied in version order
//
//go:embed *.sql
var FS embed.FS
