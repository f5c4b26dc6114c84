package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/pkg/logger"
)

// SchemaVersionSetting stores the number of applied upgrade steps.
const SchemaVersionSetting = "snippets.schema_version"

// UpgradeStep is a data migration that runs once per installation.
type UpgradeStep struct {
	Name  string
	Apply func(ctx context.Context, tx *gorm.DB) error
}

// UpgradeSteps returns the ordered upgrade steps. Their position is the
// version number they bring the schema to, so entries must only be appended.
func UpgradeSteps() []UpgradeStep {
	return []UpgradeStep{
		{
			Name: "delete_orphans",
			Apply: func(ctx context.Context, tx *gorm.DB) error {
				_, err := DeleteOrphanSnippets(tx.WithContext(ctx))
				return err
			},
		},
	}
}

// SchemaVersion returns the stored schema version, 0 when none was recorded.
func SchemaVersion(ctx context.Context, db *gorm.DB) (int, error) {
	raw, err := GetSystemSetting(ctx, db, SchemaVersionSetting)
	if err != nil {
		return 0, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("schema version %q: %w", raw, err)
	}
	return version, nil
}

// ApplyUpgrades runs every step newer than the stored schema version. Each
// step commits together with the version bump.
func ApplyUpgrades(ctx context.Context, db *gorm.DB, steps []UpgradeStep) (int, error) {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	log := logger.WithModule("database")
	for i := current; i < len(steps); i++ {
		step := steps[i]
		version := i + 1
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := step.Apply(ctx, tx); err != nil {
				return err
			}
			return UpsertSystemSetting(ctx, tx, SchemaVersionSetting, strconv.Itoa(version))
		})
		if err != nil {
			return current, fmt.Errorf("upgrade step %d (%s): %w", version, step.Name, err)
		}
		current = version
		log.Info("applied schema upgrade", zap.Int("version", version), zap.String("step", step.Name))
	}
	return current, nil
}
