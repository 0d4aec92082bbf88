package persistence

import (
	"context"

	"github.com/permitflow/backend/internal/domain/shared"
	"gorm.io/gorm"
)

type txKey struct{}

// GormTransactionManager implements shared.TransactionManager. The open
// transaction travels in the context handed to fn, and every repository of
// this package picks it up through conn.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a new GormTransactionManager
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// WithinTransaction runs fn in a transaction. A nested call joins the
// outer transaction. Returning an error rolls everything back.
func (m *GormTransactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, or db
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

var _ shared.TransactionManager = (*GormTransactionManager)(nil)
