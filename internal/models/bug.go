package models

import "time"

// Bug is the minimal issue record snippet placeholders are resolved against.
type Bug struct {
	ID         uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID  string  `gorm:"size:36;not null;index" json:"project_id"`
	ReporterID string  `gorm:"size:36;not null;index" json:"reporter_id"`
	HandlerID  *string `gorm:"size:36;index" json:"handler_id,omitempty"`
	Summary    string  `gorm:"type:varchar(255);not null" json:"summary"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
