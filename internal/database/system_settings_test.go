package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
)

func TestGetAndUpsertSystemSetting(t *testing.T) {
	db := openSystemSettingTestDB(t)
	ctx := context.Background()

	value, err := GetSystemSetting(ctx, db, "missing")
	require.NoError(t, err)
	require.Equal(t, "", value)

	require.NoError(t, UpsertSystemSetting(ctx, db, "sample", "value1"))

	retrieved, err := GetSystemSetting(ctx, db, "sample")
	require.NoError(t, err)
	require.Equal(t, "value1", retrieved)

	require.NoError(t, UpsertSystemSetting(ctx, db, "sample", "value2"))

	retrieved, err = GetSystemSetting(ctx, db, "sample")
	require.NoError(t, err)
	require.Equal(t, "value2", retrieved)

	require.Error(t, UpsertSystemSetting(ctx, db, "  ", "value"))
}

func TestSystemSettingsWithPrefixAndDelete(t *testing.T) {
	db := openSystemSettingTestDB(t)
	ctx := context.Background()

	require.NoError(t, UpsertSystemSetting(ctx, db, "snippets.edit_own_threshold", "25"))
	require.NoError(t, UpsertSystemSetting(ctx, db, "snippets.textarea_names", "bugnote_text"))
	require.NoError(t, UpsertSystemSetting(ctx, db, "other.key", "x"))

	values, err := SystemSettingsWithPrefix(ctx, db, "snippets.")
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"snippets.edit_own_threshold": "25",
		"snippets.textarea_names":     "bugnote_text",
	}, values)

	require.NoError(t, DeleteSystemSetting(ctx, db, "snippets.textarea_names"))
	require.NoError(t, DeleteSystemSetting(ctx, db, "never.existed"))

	values, err = SystemSettingsWithPrefix(ctx, db, "snippets.")
	require.NoError(t, err)
	require.Len(t, values, 1)
}

func TestGetSystemSettingWithoutTable(t *testing.T) {
	db := openTestDB(t)

	value, err := GetSystemSetting(context.Background(), db, "anything")
	require.NoError(t, err)
	require.Empty(t, value)
}

func openSystemSettingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.SystemSetting{}))
	return db
}
