package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
)

// DefaultProjectName is the project created on a fresh install.
const DefaultProjectName = "Default"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Bug{},
		&models.Snippet{},
		&models.Session{},
		&models.AuditLog{},
		&models.CacheEntry{},
		&models.SystemSetting{},
	)
}

// SeedData inserts the default project.
func SeedData(db *gorm.DB) error {
	project := models.Project{
		Name:        DefaultProjectName,
		Description: "Project created during installation",
	}
	return db.Where(models.Project{Name: project.Name}).Attrs(project).FirstOrCreate(&models.Project{}).Error
}

// DeleteOrphanSnippets removes private snippets whose owner no longer exists
// and returns the number of deleted rows.
func DeleteOrphanSnippets(db *gorm.DB) (int64, error) {
	owners := db.Model(&models.User{}).Select("id")
	result := db.Where("user_id IS NOT NULL AND user_id NOT IN (?)", owners).
		Delete(&models.Snippet{})
	return result.RowsAffected, result.Error
}
