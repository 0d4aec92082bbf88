package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// setupTestDB opens an in-memory SQLite database with the billing tables.
// A single connection keeps every query on the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// setupMockDB returns a gorm handle over sqlmock using the postgres dialect
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return db, mock, mockDB
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestInvoice(t *testing.T, tenantID uuid.UUID, number string) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		TenantID:      tenantID,
		InvoiceNumber: number,
		ClientID:      uuid.New(),
		ClientName:    "Acme Builders",
		ProjectID:     uuid.New(),
		ProjectName:   "Main St Remodel",
		LineItems: []invoicing.LineItem{
			invoicing.NewLineItem("Permit filing", dec("4"), dec("150")),
			invoicing.NewFixedFeeLineItem("Plan review", dec("400")),
		},
		PaymentTerms:  invoicing.TermsNet30,
		InitialStatus: invoicing.StatusReadyToSend,
	}, testNow)
	require.NoError(t, err)
	return inv
}
