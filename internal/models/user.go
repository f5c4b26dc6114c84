package models

import (
	"strings"
	"time"
)

// User is an account of the host tracker. Snippet permissions are derived
// from AccessLevel.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	RealName string `json:"real_name"`

	AccessLevel AccessLevel `gorm:"not null" json:"access_level"`
	IsRoot      bool        `gorm:"not null" json:"is_root"`
	IsActive    bool        `gorm:"not null" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip"`

	FailedAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`
}

// EffectiveAccessLevel treats root accounts as administrators regardless of
// the stored level.
func (u *User) EffectiveAccessLevel() AccessLevel {
	if u == nil {
		return AccessNone
	}
	if u.IsRoot && u.AccessLevel < AccessAdministrator {
		return AccessAdministrator
	}
	return u.AccessLevel
}

// DisplayName prefers the real name and falls back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.RealName); name != "" {
		return name
	}
	return u.Username
}
