package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// TenantAggregateModel holds the persistence fields of a tenant-scoped
// aggregate root, including the optimistic lock version.
type TenantAggregateModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Version  int       `gorm:"not null;default:1"`
}

// FromDomainTenantAggregateRoot populates TenantAggregateModel from domain TenantAggregateRoot
func (m *TenantAggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.TenantID = t.TenantID
	m.Version = t.Version
}

// PopulateTenantAggregateRoot populates a domain TenantAggregateRoot from persistence model
func (m *TenantAggregateModel) PopulateTenantAggregateRoot(t *shared.TenantAggregateRoot) {
	t.BaseEntity = m.BaseModel.ToDomain()
	t.Version = m.Version
	t.TenantID = m.TenantID
}

// AppendOnlyModel is the base of ledger-style rows that are never updated
type AppendOnlyModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// ToDomain converts AppendOnlyModel to a BaseEntity whose UpdatedAt equals CreatedAt
func (m *AppendOnlyModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.CreatedAt,
	}
}
