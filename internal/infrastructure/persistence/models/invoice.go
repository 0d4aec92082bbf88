package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber   string                  `gorm:"type:varchar(50);not null;index"`
	ClientID        uuid.UUID               `gorm:"type:uuid;not null;index"`
	ClientName      string                  `gorm:"type:varchar(200)"`
	ProjectID       *uuid.UUID              `gorm:"type:uuid;index"`
	ProjectName     string                  `gorm:"type:varchar(200)"`
	LineItems       invoicing.LineItems     `gorm:"type:jsonb;not null;default:'[]'"`
	Subtotal        decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	RetainerApplied decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	TotalDue        decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Status          invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;index"`
	PaymentTerms    invoicing.PaymentTerms  `gorm:"type:varchar(20);not null"`
	InvoiceDate     time.Time               `gorm:"not null"`
	DueDate         *time.Time              `gorm:"index"`
	SentAt          *time.Time
	PaidAt          *time.Time
	PaymentAmount   *decimal.Decimal `gorm:"type:decimal(18,2)"`
	PaymentMethod   string           `gorm:"type:varchar(50)"`
	HoldReason      string           `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		InvoiceNumber:   m.InvoiceNumber,
		ClientID:        m.ClientID,
		ClientName:      m.ClientName,
		ProjectName:     m.ProjectName,
		LineItems:       m.LineItems,
		Subtotal:        m.Subtotal,
		RetainerApplied: m.RetainerApplied,
		TotalDue:        m.TotalDue,
		Status:          m.Status,
		PaymentTerms:    m.PaymentTerms,
		InvoiceDate:     m.InvoiceDate,
		DueDate:         m.DueDate,
		SentAt:          m.SentAt,
		PaidAt:          m.PaidAt,
		PaymentAmount:   m.PaymentAmount,
		PaymentMethod:   m.PaymentMethod,
		HoldReason:      m.HoldReason,
	}
	if m.ProjectID != nil {
		inv.ProjectID = *m.ProjectID
	}
	if inv.LineItems == nil {
		inv.LineItems = invoicing.LineItems{}
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ClientID = inv.ClientID
	m.ClientName = inv.ClientName
	m.ProjectID = nil
	if inv.ProjectID != uuid.Nil {
		projectID := inv.ProjectID
		m.ProjectID = &projectID
	}
	m.ProjectName = inv.ProjectName
	m.LineItems = inv.LineItems
	m.Subtotal = inv.Subtotal
	m.RetainerApplied = inv.RetainerApplied
	m.TotalDue = inv.TotalDue
	m.Status = inv.Status
	m.PaymentTerms = inv.PaymentTerms
	m.InvoiceDate = inv.InvoiceDate
	m.DueDate = inv.DueDate
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.PaymentAmount = inv.PaymentAmount
	m.PaymentMethod = inv.PaymentMethod
	m.HoldReason = inv.HoldReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}
