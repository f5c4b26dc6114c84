package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Why a session stopped being usable.
const (
	RevokedByUser   = "logout"
	RevokedAll      = "revoke_all"
	RevokedReuse    = "token_reuse"
	RevokedOverflow = "session_limit"
)

// Session is a refresh-token session. Only token digests are stored;
// PreviousToken holds the digest rotated out by the last refresh so a
// replayed token can be recognised.
type Session struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        string     `gorm:"size:36;not null;index" json:"user_id"`
	User          *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	RefreshToken  string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	PreviousToken string     `gorm:"size:64;index" json:"-"`
	IPAddress     string     `gorm:"size:64" json:"ip_address"`
	UserAgent     string     `gorm:"size:255" json:"user_agent"`
	ExpiresAt     time.Time  `gorm:"index" json:"expires_at"`
	LastUsedAt    time.Time  `json:"last_used_at"`
	CreatedAt     time.Time  `json:"created_at"`
	RevokedAt     *time.Time `json:"revoked_at"`
	RevokedReason string     `gorm:"size:32" json:"revoked_reason,omitempty"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Active reports whether the session can still be refreshed at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
