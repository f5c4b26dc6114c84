package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrateAndSeed(db))
	// seeding twice must not duplicate the default project
	require.NoError(t, AutoMigrateAndSeed(db))

	var projects []models.Project
	require.NoError(t, db.Find(&projects).Error)
	require.Len(t, projects, 1)
	require.Equal(t, DefaultProjectName, projects[0].Name)

	migrator := db.Migrator()
	for _, table := range []interface{}{
		&models.User{},
		&models.Bug{},
		&models.Snippet{},
		&models.Session{},
		&models.AuditLog{},
		&models.CacheEntry{},
		&models.SystemSetting{},
	} {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
	require.True(t, migrator.HasIndex(&models.Snippet{}, "idx_snippets_owner_type"))
}

func TestAutoMigrateAndSeedRejectsNilHandle(t *testing.T) {
	require.Error(t, AutoMigrateAndSeed(nil))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := Open(Config{Driver: "sqlite", DSN: dsn, MaxOpenConns: 4})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
