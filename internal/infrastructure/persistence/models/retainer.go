package models

import (
	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/shopspring/decimal"
)

// RetainerModel is the persistence model for the Retainer aggregate
type RetainerModel struct {
	TenantAggregateModel
	ClientID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Status         retainer.Status `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (RetainerModel) TableName() string {
	return "retainers"
}

// ToDomain converts the persistence model to a domain Retainer
func (m *RetainerModel) ToDomain() *retainer.Retainer {
	r := &retainer.Retainer{
		ClientID:       m.ClientID,
		CurrentBalance: m.CurrentBalance,
		Status:         m.Status,
	}
	m.PopulateTenantAggregateRoot(&r.TenantAggregateRoot)
	return r
}

// RetainerModelFromDomain creates a persistence model from a domain Retainer
func RetainerModelFromDomain(r *retainer.Retainer) *RetainerModel {
	m := &RetainerModel{
		ClientID:       r.ClientID,
		CurrentBalance: r.CurrentBalance,
		Status:         r.Status,
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	return m
}

// RetainerDrawModel is an append-only record of one draw against a retainer
type RetainerDrawModel struct {
	AppendOnlyModel
	RetainerID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (RetainerDrawModel) TableName() string {
	return "retainer_draws"
}

// ToDomain converts the persistence model to a domain Draw
func (m *RetainerDrawModel) ToDomain() *retainer.Draw {
	return &retainer.Draw{
		BaseEntity:    m.AppendOnlyModel.ToDomain(),
		TenantID:      m.TenantID,
		RetainerID:    m.RetainerID,
		InvoiceID:     m.InvoiceID,
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
	}
}

// RetainerDrawModelFromDomain creates a persistence model from a domain Draw
func RetainerDrawModelFromDomain(d *retainer.Draw) *RetainerDrawModel {
	return &RetainerDrawModel{
		AppendOnlyModel: AppendOnlyModel{ID: d.ID, TenantID: d.TenantID, CreatedAt: d.CreatedAt},
		RetainerID:      d.RetainerID,
		InvoiceID:       d.InvoiceID,
		Amount:          d.Amount,
		BalanceBefore:   d.BalanceBefore,
		BalanceAfter:    d.BalanceAfter,
	}
}
