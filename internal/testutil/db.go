// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sjperalta/fintera-contracts/internal/database"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// SetupTestDB opens a migrated in-memory SQLite database that lives for the test
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := database.Config(logger.Silent)
	cfg.PrepareStmt = false

	db, err := gorm.Open(sqlite.Open("file::memory:"), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// Date parses a YYYY-MM-DD literal and fails the test on error
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

// SeedContract persists an active contract with sensible defaults
func SeedContract(t *testing.T, db *gorm.DB, contractID string, value float64, start, end string) *models.Contract {
	t.Helper()
	c := &models.Contract{
		ContractID:     contractID,
		ContractNumber: "CN-" + contractID,
		Title:          "Contract " + contractID,
		ContractType:   models.ContractTypeFixedPrice,
		Status:         models.ContractStatusActive,
		StartDate:      Date(t, start),
		EndDate:        Date(t, end),
		TotalValue:     value,
		OriginalValue:  value,
		Currency:       models.DefaultCurrency,
		IsActive:       true,
		Version:        1,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
