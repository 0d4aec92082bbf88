package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
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

type MockRetainerRepository struct {
	mock.Mock
}

func (m *MockRetainerRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*retainer.Retainer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retainer.Retainer), args.Error(1)
}

func (m *MockRetainerRepository) FindByClient(ctx context.Context, tenantID, clientID uuid.UUID) (*retainer.Retainer, error) {
	args := m.Called(ctx, tenantID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retainer.Retainer), args.Error(1)
}

func (m *MockRetainerRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]retainer.Retainer, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]retainer.Retainer), args.Error(1)
}

func (m *MockRetainerRepository) Create(ctx context.Context, r *retainer.Retainer) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRetainerRepository) SaveWithLock(ctx context.Context, r *retainer.Retainer) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRetainerRepository) Debit(ctx context.Context, r *retainer.Retainer, amount decimal.Decimal) error {
	args := m.Called(ctx, r, amount)
	return args.Error(0)
}

type MockDrawRepository struct {
	mock.Mock
}

func (m *MockDrawRepository) Create(ctx context.Context, d *retainer.Draw) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDrawRepository) FindByRetainer(ctx context.Context, tenantID, retainerID uuid.UUID) ([]retainer.Draw, error) {
	args := m.Called(ctx, tenantID, retainerID)
	return args.Get(0).([]retainer.Draw), args.Error(1)
}

func (m *MockDrawRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]retainer.Draw, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]retainer.Draw), args.Error(1)
}

// inlineTx runs fn without a real transaction
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
