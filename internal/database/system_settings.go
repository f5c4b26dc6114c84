package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/snippets/internal/models"
)

// "key" is reserved in MySQL, so conditions go through clause builders that quote it.
var settingKeyColumn = clause.Column{Name: "key"}

// GetSystemSetting retrieves a system setting by key. Returns an empty string when not found.
func GetSystemSetting(ctx context.Context, db *gorm.DB, key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("system settings: db is nil")
	}

	var setting models.SystemSetting
	err := db.WithContext(ctx).Where(clause.Eq{Column: settingKeyColumn, Value: key}).Take(&setting).Error
	if err == nil {
		return setting.Value, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return "", nil
	}
	return "", fmt.Errorf("system settings: get %q: %w", key, err)
}

// UpsertSystemSetting stores or updates a system setting value.
func UpsertSystemSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	if db == nil {
		return fmt.Errorf("system settings: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("system settings: key is required")
	}

	record := models.SystemSetting{Key: key, Value: value}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{settingKeyColumn},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("system settings: upsert %q: %w", key, err)
	}
	return nil
}

// DeleteSystemSetting removes a stored setting. Missing keys are ignored.
func DeleteSystemSetting(ctx context.Context, db *gorm.DB, key string) error {
	if db == nil {
		return fmt.Errorf("system settings: db is nil")
	}
	err := db.WithContext(ctx).
		Where(clause.Eq{Column: settingKeyColumn, Value: strings.TrimSpace(key)}).
		Delete(&models.SystemSetting{}).Error
	if err != nil {
		return fmt.Errorf("system settings: delete %q: %w", key, err)
	}
	return nil
}

// SystemSettingsWithPrefix returns every setting whose key starts with prefix.
func SystemSettingsWithPrefix(ctx context.Context, db *gorm.DB, prefix string) (map[string]string, error) {
	if db == nil {
		return nil, fmt.Errorf("system settings: db is nil")
	}
	var rows []models.SystemSetting
	err := db.WithContext(ctx).Where(clause.Like{Column: settingKeyColumn, Value: prefix + "%"}).Find(&rows).Error
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("system settings: list %q: %w", prefix, err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}
