package collections

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/collections"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindCollectible(ctx context.Context, tenantID uuid.UUID) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID, now time.Time) (string, error) {
	args := m.Called(ctx, tenantID, now)
	return args.String(0), args.Error(1)
}

type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) RecordAction(ctx context.Context, record *collections.ActionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockActivityRepository) AppendEntry(ctx context.Context, entry *collections.ActivityLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockActivityRepository) FindEntriesByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collections.ActivityLogEntry, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]collections.ActivityLogEntry), args.Error(1)
}

func (m *MockActivityRepository) FindFollowUpsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collections.FollowUp, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]collections.FollowUp), args.Error(1)
}

func (m *MockActivityRepository) HasEntry(ctx context.Context, tenantID, invoiceID uuid.UUID, action collections.Action) (bool, error) {
	args := m.Called(ctx, tenantID, invoiceID, action)
	return args.Bool(0), args.Error(1)
}

type inlineTx struct{}

func (inlineTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}
