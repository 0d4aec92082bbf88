package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant finds an invoice by ID within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Invoice not found")
		}
		return nil, shared.NewPersistenceError("find invoice", err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists invoices for a tenant with filtering and pagination
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	query := r.applyFilter(conn(ctx, r.db).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID), filter)
	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, InvoiceSortFields))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var invoiceModels []models.InvoiceModel
	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, shared.NewPersistenceError("list invoices", err)
	}
	return toInvoices(invoiceModels), nil
}

// FindCollectible returns every sent or overdue invoice of the tenant
func (r *GormInvoiceRepository) FindCollectible(ctx context.Context, tenantID uuid.UUID) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND status IN ?", tenantID,
			[]invoicing.InvoiceStatus{invoicing.StatusSent, invoicing.StatusOverdue}).
		Order("due_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, shared.NewPersistenceError("list collectible invoices", err)
	}
	return toInvoices(invoiceModels), nil
}

// TenantsWithSentInvoices lists the tenants holding at least one sent invoice,
// the only status the overdue sweep can move.
func (r *GormInvoiceRepository) TenantsWithSentInvoices(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := conn(ctx, r.db).
		Model(&models.InvoiceModel{}).
		Where("status = ?", invoicing.StatusSent).
		Distinct().
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, shared.NewPersistenceError("list tenants with sent invoices", err)
	}
	return tenantIDs, nil
}

// CountForTenant counts invoices matching the filter
func (r *GormInvoiceRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, shared.NewPersistenceError("count invoices", err)
	}
	return count, nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *invoicing.Invoice) error {
	if err := conn(ctx, r.db).Create(models.InvoiceModelFromDomain(invoice)).Error; err != nil {
		return shared.NewPersistenceError("create invoice", err)
	}
	return nil
}

// SaveWithLock writes every column of the invoice as a compare-and-swap on
// version. On success invoice.Version is advanced to the stored value.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	model.Version = invoice.Version + 1

	result := conn(ctx, r.db).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", invoice.TenantID, invoice.ID, invoice.Version).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return shared.NewPersistenceError("save invoice", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	invoice.IncrementVersion()
	return nil
}

// NextInvoiceNumber generates the next number of the month.
// Format: INV-YYYYMM-NNNN
func (r *GormInvoiceRepository) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID, now time.Time) (string, error) {
	prefix := fmt.Sprintf("INV-%s-", now.Format("200601"))

	var numbers []string
	if err := conn(ctx, r.db).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND invoice_number LIKE ?", tenantID, prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &numbers).Error; err != nil {
		return "", shared.NewPersistenceError("generate invoice number", err)
	}

	next := 1
	if len(numbers) > 0 {
		if n, err := strconv.Atoi(strings.TrimPrefix(numbers[0], prefix)); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter invoicing.InvoiceFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(client_name) LIKE ? OR LOWER(project_name) LIKE ?",
			pattern, pattern, pattern)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	return query
}

func toInvoices(invoiceModels []models.InvoiceModel) []invoicing.Invoice {
	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices
}

var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
