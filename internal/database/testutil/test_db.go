// Package testutil opens throwaway snippet databases for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/database"
)

type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate bool
	seedData    bool
	upgrades    bool
	fixtures    []any
}

// WithAutoMigrate creates the tables.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// WithSeedData creates the tables and the default settings rows.
func WithSeedData() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.seedData = true
	}
}

// WithUpgrades also runs every upgrade step, leaving the schema current.
func WithUpgrades() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.seedData = true
		cfg.upgrades = true
	}
}

// WithFixtures inserts rows once the schema exists, in the order given.
// Each value is passed to gorm Create, so slices of models work too.
func WithFixtures(rows ...any) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.fixtures = append(cfg.fixtures, rows...)
	}
}

// MustOpenTestDB opens a private in-memory SQLite database named after a
// fresh uuid and closes it on test cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	switch {
	case cfg.seedData:
		require.NoError(t, database.AutoMigrateAndSeed(db))
	case cfg.autoMigrate:
		require.NoError(t, database.AutoMigrate(db))
	}
	if cfg.upgrades {
		_, err := database.ApplyUpgrades(context.Background(), db, database.UpgradeSteps())
		require.NoError(t, err)
	}
	for i, row := range cfg.fixtures {
		require.NoError(t, db.Create(row).Error, "fixture %d (%T)", i, row)
	}

	return db
}
