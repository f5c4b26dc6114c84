package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
)

// Audit results.
const (
	AuditSuccess = "success"
	AuditFailure = "failure"
	AuditDenied  = "denied"
)

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// AuditEntry is one event to persist. Result defaults to AuditSuccess.
type AuditEntry struct {
	UserID    *string
	Username  string
	Action    string
	Resource  string
	Result    string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// AuditFilters narrows audit queries. ActionPrefix matches a family of
// actions such as "snippet." or "auth.".
type AuditFilters struct {
	UserID       string
	Action       string
	ActionPrefix string
	Result       string
	Resource     string
	Since        *time.Time
	Until        *time.Time
}

type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditActionCount is one row of an audit summary.
type AuditActionCount struct {
	Action string `json:"action"`
	Total  int64  `json:"total"`
	Failed int64  `json:"failed"`
}

// AuditService persists snippet, account and plugin activity.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db, now: time.Now}, nil
}

// Log stores entry. Actions are stored lower case so prefix filters are
// stable across callers.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	action := strings.ToLower(strings.TrimSpace(entry.Action))
	if action == "" {
		return errors.New("audit service: action is required")
	}
	result := strings.ToLower(strings.TrimSpace(entry.Result))
	switch result {
	case "":
		result = AuditSuccess
	case AuditSuccess, AuditFailure, AuditDenied:
	default:
		return fmt.Errorf("audit service: unknown result %q", entry.Result)
	}

	var payload datatypes.JSON
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		payload = datatypes.JSON(encoded)
	}

	return s.db.WithContext(ctx).Create(&models.AuditLog{
		UserID:    trimmedPtr(entry.UserID),
		Action:    action,
		Resource:  strings.TrimSpace(entry.Resource),
		Result:    result,
		Username:  strings.TrimSpace(entry.Username),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		UserAgent: truncate(strings.TrimSpace(entry.UserAgent), 255),
		Metadata:  payload,
	}).Error
}

// List returns audit logs newest first.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := pageBounds(opts.Page, opts.PageSize)

	var (
		results []models.AuditLog
		total   int64
	)

	query := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), opts.Filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}

	return results, total, nil
}

// Summary counts matching entries per action, busiest first.
func (s *AuditService) Summary(ctx context.Context, filters AuditFilters) ([]AuditActionCount, error) {
	ctx = ensureContext(ctx)

	out := []AuditActionCount{}
	err := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), filters).
		Select("action, COUNT(*) AS total, SUM(CASE WHEN result <> ? THEN 1 ELSE 0 END) AS failed", AuditSuccess).
		Group("action").
		Order("total DESC, action ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("audit service: summarise logs: %w", err)
	}
	return out, nil
}

// CleanupOlderThan removes entries older than retentionDays.
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	eq := map[string]string{
		"user_id":  filters.UserID,
		"action":   strings.ToLower(filters.Action),
		"result":   strings.ToLower(filters.Result),
		"resource": filters.Resource,
	}
	for _, column := range []string{"user_id", "action", "result", "resource"} {
		if value := strings.TrimSpace(eq[column]); value != "" {
			query = query.Where(column+" = ?", value)
		}
	}
	if prefix := strings.ToLower(strings.TrimSpace(filters.ActionPrefix)); prefix != "" {
		query = query.Where("action LIKE ? ESCAPE '!'", likeEscaper.Replace(prefix)+"%")
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
