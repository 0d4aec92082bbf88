package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/retainer"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/domain/shared/valueobject"
	"github.com/permitflow/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormRetainerRepository implements retainer.RetainerRepository using GORM
type GormRetainerRepository struct {
	db *gorm.DB
}

// NewGormRetainerRepository creates a new GormRetainerRepository
func NewGormRetainerRepository(db *gorm.DB) *GormRetainerRepository {
	return &GormRetainerRepository{db: db}
}

// FindByIDForTenant finds a retainer by ID within a tenant
func (r *GormRetainerRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*retainer.Retainer, error) {
	var model models.RetainerModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Retainer not found")
		}
		return nil, shared.NewPersistenceError("find retainer", err)
	}
	return model.ToDomain(), nil
}

// FindByClient returns the client's most recent non-closed retainer
func (r *GormRetainerRepository) FindByClient(ctx context.Context, tenantID, clientID uuid.UUID) (*retainer.Retainer, error) {
	var model models.RetainerModel
	if err := conn(ctx, r.db).
		Where("tenant_id = ? AND client_id = ? AND status <> ?", tenantID, clientID, retainer.StatusClosed).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Client has no open retainer")
		}
		return nil, shared.NewPersistenceError("find client retainer", err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists retainers for a tenant
func (r *GormRetainerRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]retainer.Retainer, error) {
	query := conn(ctx, r.db).
		Where("tenant_id = ?", tenantID).
		Order(orderClause(filter.OrderBy, filter.OrderDir, RetainerSortFields))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var retainerModels []models.RetainerModel
	if err := query.Find(&retainerModels).Error; err != nil {
		return nil, shared.NewPersistenceError("list retainers", err)
	}
	retainers := make([]retainer.Retainer, len(retainerModels))
	for i := range retainerModels {
		retainers[i] = *retainerModels[i].ToDomain()
	}
	return retainers, nil
}

// Create inserts a new retainer
func (r *GormRetainerRepository) Create(ctx context.Context, ret *retainer.Retainer) error {
	if err := conn(ctx, r.db).Create(models.RetainerModelFromDomain(ret)).Error; err != nil {
		return shared.NewPersistenceError("create retainer", err)
	}
	return nil
}

// SaveWithLock writes balance and status only when the stored version
// matches, so two draws computed from the same balance cannot both land.
func (r *GormRetainerRepository) SaveWithLock(ctx context.Context, ret *retainer.Retainer) error {
	result := conn(ctx, r.db).
		Model(&models.RetainerModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", ret.TenantID, ret.ID, ret.Version).
		Updates(map[string]any{
			"current_balance": ret.CurrentBalance,
			"status":          ret.Status,
			"updated_at":      ret.UpdatedAt,
			"version":         ret.Version + 1,
		})
	if result.Error != nil {
		return shared.NewPersistenceError("save retainer", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	ret.IncrementVersion()
	return nil
}

// Debit subtracts amount from the stored balance in one conditional UPDATE, so
// the check and the write see the same row. When the stored balance no longer
// covers amount nothing is written and an INSUFFICIENT_BALANCE error is
// returned. On success ret is refreshed from storage.
func (r *GormRetainerRepository) Debit(ctx context.Context, ret *retainer.Retainer, amount decimal.Decimal) error {
	amount = valueobject.RoundCents(amount)
	db := conn(ctx, r.db)
	result := db.
		Model(&models.RetainerModel{}).
		Where("tenant_id = ? AND id = ? AND status <> ? AND current_balance >= ?",
			ret.TenantID, ret.ID, retainer.StatusClosed, amount).
		Updates(map[string]any{
			"current_balance": gorm.Expr("current_balance - ?", amount),
			"status": gorm.Expr("CASE WHEN current_balance - ? = 0 THEN ? ELSE ? END",
				amount, retainer.StatusDepleted, retainer.StatusActive),
			"updated_at": ret.UpdatedAt,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return shared.NewPersistenceError("debit retainer", result.Error)
	}

	stored, err := r.FindByIDForTenant(ctx, ret.TenantID, ret.ID)
	if err != nil {
		return err
	}
	if result.RowsAffected == 0 {
		if stored.Status == retainer.StatusClosed {
			return shared.NewDomainError(shared.CodeValidation, "Retainer is closed")
		}
		return shared.NewDomainError(shared.CodeInsufficientBalance, fmt.Sprintf(
			"Draw %s exceeds retainer balance %s", amount.StringFixed(2), valueobject.RoundCents(stored.CurrentBalance).StringFixed(2)))
	}

	ret.CurrentBalance = valueobject.RoundCents(stored.CurrentBalance)
	ret.Status = stored.Status
	ret.Version = stored.Version
	return nil
}

// GormDrawRepository implements retainer.DrawRepository using GORM
type GormDrawRepository struct {
	db *gorm.DB
}

// NewGormDrawRepository creates a new GormDrawRepository
func NewGormDrawRepository(db *gorm.DB) *GormDrawRepository {
	return &GormDrawRepository{db: db}
}

// Create appends a draw record
func (r *GormDrawRepository) Create(ctx context.Context, d *retainer.Draw) error {
	if err := conn(ctx, r.db).Create(models.RetainerDrawModelFromDomain(d)).Error; err != nil {
		return shared.NewPersistenceError("record retainer draw", err)
	}
	return nil
}

// FindByRetainer lists draws of a retainer, newest first
func (r *GormDrawRepository) FindByRetainer(ctx context.Context, tenantID, retainerID uuid.UUID) ([]retainer.Draw, error) {
	return r.find(ctx, "list retainer draws", "tenant_id = ? AND retainer_id = ?", tenantID, retainerID)
}

// FindByInvoice lists draws credited to an invoice
func (r *GormDrawRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]retainer.Draw, error) {
	return r.find(ctx, "list invoice draws", "tenant_id = ? AND invoice_id = ?", tenantID, invoiceID)
}

func (r *GormDrawRepository) find(ctx context.Context, op, where string, args ...any) ([]retainer.Draw, error) {
	var drawModels []models.RetainerDrawModel
	if err := conn(ctx, r.db).
		Where(where, args...).
		Order("created_at DESC").
		Find(&drawModels).Error; err != nil {
		return nil, shared.NewPersistenceError(op, err)
	}
	draws := make([]retainer.Draw, len(drawModels))
	for i := range drawModels {
		draws[i] = *drawModels[i].ToDomain()
	}
	return draws, nil
}

var (
	_ retainer.RetainerRepository = (*GormRetainerRepository)(nil)
	_ retainer.DrawRepository     = (*GormDrawRepository)(nil)
)
