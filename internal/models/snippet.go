package models

import "strings"

// SnippetTypeText is the only snippet category in use.
const SnippetTypeText = 0

// SnippetNameMaxLength mirrors the column width of snippets.name.
const SnippetNameMaxLength = 128

// Snippet is a named block of text users insert into comment fields.
// A nil UserID marks a global snippet.
type Snippet struct {
	BaseModel

	UserID *string `gorm:"size:36;index:idx_snippets_owner_type,priority:1" json:"user_id"`
	Type   int     `gorm:"not null;default:0;index:idx_snippets_owner_type,priority:2" json:"type"`
	Name   string  `gorm:"type:varchar(128);not null" json:"name"`
	Value  string  `gorm:"type:text;not null" json:"value"`
}

// IsGlobal reports whether the snippet has no owner.
func (s *Snippet) IsGlobal() bool {
	return s.UserID == nil || strings.TrimSpace(*s.UserID) == ""
}

// OwnedBy reports whether userID owns the snippet.
func (s *Snippet) OwnedBy(userID string) bool {
	return !s.IsGlobal() && *s.UserID == userID
}
