package models

import (
	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/collections"
)

// FollowUpModel records one collections contact attempt
type FollowUpModel struct {
	AppendOnlyModel
	InvoiceID     uuid.UUID          `gorm:"type:uuid;not null;index"`
	ContactMethod collections.Action `gorm:"type:varchar(30);not null"`
	Notes         string             `gorm:"type:text"`
	Actor         string             `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (FollowUpModel) TableName() string {
	return "follow_ups"
}

// ToDomain converts the persistence model to a domain FollowUp
func (m *FollowUpModel) ToDomain() *collections.FollowUp {
	return &collections.FollowUp{
		BaseEntity:    m.AppendOnlyModel.ToDomain(),
		TenantID:      m.TenantID,
		InvoiceID:     m.InvoiceID,
		ContactMethod: m.ContactMethod,
		Notes:         m.Notes,
		Actor:         m.Actor,
	}
}

// FollowUpModelFromDomain creates a persistence model from a domain FollowUp
func FollowUpModelFromDomain(f *collections.FollowUp) *FollowUpModel {
	return &FollowUpModel{
		AppendOnlyModel: AppendOnlyModel{ID: f.ID, TenantID: f.TenantID, CreatedAt: f.CreatedAt},
		InvoiceID:       f.InvoiceID,
		ContactMethod:   f.ContactMethod,
		Notes:           f.Notes,
		Actor:           f.Actor,
	}
}

// ActivityLogModel is one row of an invoice's activity log
type ActivityLogModel struct {
	AppendOnlyModel
	InvoiceID uuid.UUID          `gorm:"type:uuid;not null;index:idx_activity_invoice_action,priority:1"`
	Action    collections.Action `gorm:"type:varchar(30);not null;index:idx_activity_invoice_action,priority:2"`
	Details   string             `gorm:"type:text"`
	Actor     string             `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (ActivityLogModel) TableName() string {
	return "activity_log"
}

// ToDomain converts the persistence model to a domain ActivityLogEntry
func (m *ActivityLogModel) ToDomain() *collections.ActivityLogEntry {
	return &collections.ActivityLogEntry{
		BaseEntity: m.AppendOnlyModel.ToDomain(),
		TenantID:   m.TenantID,
		InvoiceID:  m.InvoiceID,
		Action:     m.Action,
		Details:    m.Details,
		Actor:      m.Actor,
	}
}

// ActivityLogModelFromDomain creates a persistence model from a domain ActivityLogEntry
func ActivityLogModelFromDomain(e *collections.ActivityLogEntry) *ActivityLogModel {
	return &ActivityLogModel{
		AppendOnlyModel: AppendOnlyModel{ID: e.ID, TenantID: e.TenantID, CreatedAt: e.CreatedAt},
		InvoiceID:       e.InvoiceID,
		Action:          e.Action,
		Details:         e.Details,
		Actor:           e.Actor,
	}
}

// AllModels lists every model for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&RetainerModel{},
		&RetainerDrawModel{},
		&FollowUpModel{},
		&ActivityLogModel{},
	}
}
