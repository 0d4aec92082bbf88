//go:build integration

package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/migration"
	"github.com/permitflow/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupPostgres starts a disposable PostgreSQL container and applies the
// embedded migrations.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("billing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	m, err := migration.NewEmbedded(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func TestPostgres_ConcurrentWriteOffAndPayment(t *testing.T) {
	db := setupPostgres(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	inv := newTestInvoice(t, tenantID, "INV-202603-0001")
	require.NoError(t, inv.Send(testNow))
	require.NoError(t, repo.Create(ctx, inv))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	attempts := []func(*invoicing.Invoice) error{
		func(i *invoicing.Invoice) error { _, err := i.WriteOff(testNow); return err },
		func(i *invoicing.Invoice) error { return i.RecordPayment(nil, "check", testNow) },
	}
	for _, attempt := range attempts {
		loaded, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		wg.Add(1)
		go func(loaded *invoicing.Invoice, attempt func(*invoicing.Invoice) error) {
			defer wg.Done()
			if err := attempt(loaded); err != nil {
				return
			}
			err := repo.SaveWithLock(ctx, loaded)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, shared.ErrConcurrencyConflict):
				conflicts++
			}
		}(loaded, attempt)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	stored, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusPaid, stored.Status)
	assert.Equal(t, 2, stored.Version)
}

func TestPostgres_RetainerBalanceConstraint(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	err := db.WithContext(ctx).Exec(
		`INSERT INTO retainers (id, tenant_id, client_id, current_balance, status, created_at, updated_at)
		 VALUES (?, ?, ?, -1, 'active', now(), now())`,
		uuid.New(), uuid.New(), uuid.New()).Error
	assert.Error(t, err)
}
