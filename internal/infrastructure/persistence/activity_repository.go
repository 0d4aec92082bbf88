package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/collections"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormActivityRepository implements collections.ActivityRepository using GORM
type GormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GormActivityRepository
func NewGormActivityRepository(db *gorm.DB) *GormActivityRepository {
	return &GormActivityRepository{db: db}
}

// RecordAction writes the follow-up and its log entry together. When ctx
// already carries a transaction both rows join it.
func (r *GormActivityRepository) RecordAction(ctx context.Context, record *collections.ActionRecord) error {
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.FollowUpModelFromDomain(record.FollowUp)).Error; err != nil {
			return err
		}
		return tx.Create(models.ActivityLogModelFromDomain(record.Entry)).Error
	})
	if err != nil {
		return shared.NewPersistenceError("record collections action", err)
	}
	return nil
}

// AppendEntry stores a standalone log entry
func (r *GormActivityRepository) AppendEntry(ctx context.Context, entry *collections.ActivityLogEntry) error {
	if err := conn(ctx, r.db).Create(models.ActivityLogModelFromDomain(entry)).Error; err != nil {
		return shared.NewPersistenceError("append activity entry", err)
	}
	return nil
}

// FindEntriesByInvoice lists the explicit log of an invoice, oldest first
func (r *GormActivityRepository) FindEntriesByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collections.ActivityLogEntry, error) {
	var entryModels []models.ActivityLogModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, shared.NewPersistenceError("list activity entries", err)
	}
	entries := make([]collections.ActivityLogEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = *entryModels[i].ToDomain()
	}
	return entries, nil
}

// FindFollowUpsByInvoice lists the follow-ups of an invoice, oldest first
func (r *GormActivityRepository) FindFollowUpsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collections.FollowUp, error) {
	var followUpModels []models.FollowUpModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC").
		Find(&followUpModels).Error; err != nil {
		return nil, shared.NewPersistenceError("list follow-ups", err)
	}
	followUps := make([]collections.FollowUp, len(followUpModels))
	for i := range followUpModels {
		followUps[i] = *followUpModels[i].ToDomain()
	}
	return followUps, nil
}

// HasEntry reports whether the invoice has an explicit entry for action
func (r *GormActivityRepository) HasEntry(ctx context.Context, tenantID, invoiceID uuid.UUID, action collections.Action) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).
		Model(&models.ActivityLogModel{}).
		Where("tenant_id = ? AND invoice_id = ? AND action = ?", tenantID, invoiceID, action).
		Count(&count).Error; err != nil {
		return false, shared.NewPersistenceError("check activity entry", err)
	}
	return count > 0, nil
}

var _ collections.ActivityRepository = (*GormActivityRepository)(nil)
