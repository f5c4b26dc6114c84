package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/database"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/permissions"
	apperrors "github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/logger"
)

// Keys under which runtime overrides are stored in system_settings.
const (
	SettingEditGlobalThreshold = "snippets.edit_global_threshold"
	SettingUseGlobalThreshold  = "snippets.use_global_threshold"
	SettingEditOwnThreshold    = "snippets.edit_own_threshold"
	SettingTextareaNames       = "snippets.textarea_names"
)

// SnippetSettings is the snippet plugin configuration.
type SnippetSettings struct {
	EditGlobalThreshold models.AccessLevel `json:"edit_global_threshold"`
	UseGlobalThreshold  models.AccessLevel `json:"use_global_threshold"`
	EditOwnThreshold    models.AccessLevel `json:"edit_own_threshold"`
	TextareaNames       []string           `json:"textarea_names"`
}

// DefaultSnippetSettings returns the built-in configuration.
func DefaultSnippetSettings() SnippetSettings {
	return SnippetSettings{
		EditGlobalThreshold: models.AccessAdministrator,
		UseGlobalThreshold:  models.AccessReporter,
		EditOwnThreshold:    models.AccessReporter,
		TextareaNames:       []string{"bugnote_text"},
	}
}

// Selector renders the CSS selector matching every configured textarea.
func (s SnippetSettings) Selector() string {
	parts := make([]string, 0, len(s.TextareaNames))
	for _, name := range s.TextareaNames {
		parts = append(parts, "textarea[name='"+name+"']")
	}
	return strings.Join(parts, ",")
}

func (s SnippetSettings) threshold(permissionID string) (models.AccessLevel, bool) {
	switch permissionID {
	case permissions.SnippetsEditGlobal:
		return s.EditGlobalThreshold, true
	case permissions.SnippetsUseGlobal:
		return s.UseGlobalThreshold, true
	case permissions.SnippetsEditOwn:
		return s.EditOwnThreshold, true
	}
	return models.AccessNobody, false
}

// NormaliseTextareaNames splits entries on commas and whitespace, drops
// empty or unsafe names and removes duplicates while keeping order.
func NormaliseTextareaNames(values []string) []string {
	var names []string
	for _, value := range values {
		names = append(names, strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})...)
	}

	var safe []string
	for _, name := range normaliseIDs(names) {
		if strings.ContainsAny(name, `'"\<>`) {
			continue
		}
		safe = append(safe, name)
	}
	return safe
}

// UpdateSnippetSettingsInput lists the settings to change. Nil fields are
// left untouched.
type UpdateSnippetSettingsInput struct {
	EditGlobalThreshold *models.AccessLevel
	UseGlobalThreshold  *models.AccessLevel
	EditOwnThreshold    *models.AccessLevel
	TextareaNames       []string
}

// SnippetSettingsService resolves the effective settings: configuration
// defaults overlaid with values persisted from the settings page.
type SnippetSettingsService struct {
	db       *gorm.DB
	defaults SnippetSettings
	audit    *AuditService
}

// NewSnippetSettingsService constructs the settings service.
func NewSnippetSettingsService(db *gorm.DB, defaults SnippetSettings, audit *AuditService) (*SnippetSettingsService, error) {
	if db == nil {
		return nil, errors.New("snippet settings: db is required")
	}
	if len(defaults.TextareaNames) == 0 {
		defaults.TextareaNames = DefaultSnippetSettings().TextareaNames
	}
	return &SnippetSettingsService{db: db, defaults: defaults, audit: audit}, nil
}

// Defaults returns the configuration-file settings.
func (s *SnippetSettingsService) Defaults() SnippetSettings {
	out := s.defaults
	out.TextareaNames = append([]string(nil), s.defaults.TextareaNames...)
	return out
}

// Get returns the effective settings.
func (s *SnippetSettingsService) Get(ctx context.Context) (SnippetSettings, error) {
	ctx = ensureContext(ctx)
	settings := s.Defaults()

	stored, err := database.SystemSettingsWithPrefix(ctx, s.db, "snippets.")
	if err != nil {
		return settings, fmt.Errorf("snippet settings: load: %w", err)
	}

	log := logger.WithModule("snippets")
	for key, target := range map[string]*models.AccessLevel{
		SettingEditGlobalThreshold: &settings.EditGlobalThreshold,
		SettingUseGlobalThreshold:  &settings.UseGlobalThreshold,
		SettingEditOwnThreshold:    &settings.EditOwnThreshold,
	} {
		raw, ok := stored[key]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		level, err := models.ParseAccessLevel(raw)
		if err != nil {
			log.Warn("ignoring invalid stored threshold", zap.String("key", key), zap.Error(err))
			continue
		}
		*target = level
	}
	if raw, ok := stored[SettingTextareaNames]; ok {
		if names := NormaliseTextareaNames([]string{raw}); len(names) > 0 {
			settings.TextareaNames = names
		}
	}
	return settings, nil
}

// Update persists the supplied overrides and returns the new effective settings.
func (s *SnippetSettingsService) Update(ctx context.Context, input UpdateSnippetSettingsInput) (SnippetSettings, error) {
	ctx = ensureContext(ctx)

	values := map[string]string{}
	for key, level := range map[string]*models.AccessLevel{
		SettingEditGlobalThreshold: input.EditGlobalThreshold,
		SettingUseGlobalThreshold:  input.UseGlobalThreshold,
		SettingEditOwnThreshold:    input.EditOwnThreshold,
	} {
		if level == nil {
			continue
		}
		if *level < models.AccessNone {
			return SnippetSettings{}, apperrors.NewBadRequest(fmt.Sprintf("%s must not be negative", strings.TrimPrefix(key, "snippets.")))
		}
		values[key] = strconv.Itoa(int(*level))
	}
	if input.TextareaNames != nil {
		names := NormaliseTextareaNames(input.TextareaNames)
		if len(names) == 0 {
			return SnippetSettings{}, apperrors.NewBadRequest("textarea_names must contain at least one valid name")
		}
		values[SettingTextareaNames] = strings.Join(names, ",")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			if err := database.UpsertSystemSetting(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SnippetSettings{}, fmt.Errorf("snippet settings: save: %w", err)
	}

	metadata := make(map[string]any, len(values))
	for key, value := range values {
		metadata[strings.TrimPrefix(key, "snippets.")] = value
	}
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "snippets.settings_update",
		Resource: "snippets",
		Result:   "success",
		Metadata: metadata,
	})

	return s.Get(ctx)
}

// Reset removes every persisted override.
func (s *SnippetSettingsService) Reset(ctx context.Context) (SnippetSettings, error) {
	ctx = ensureContext(ctx)
	for _, key := range []string{SettingEditGlobalThreshold, SettingUseGlobalThreshold, SettingEditOwnThreshold, SettingTextareaNames} {
		if err := database.DeleteSystemSetting(ctx, s.db, key); err != nil {
			return SnippetSettings{}, fmt.Errorf("snippet settings: reset %s: %w", key, err)
		}
	}
	recordAudit(s.audit, ctx, AuditEntry{Action: "snippets.settings_reset", Resource: "snippets", Result: "success"})
	return s.Get(ctx)
}

type settingsCtxKey struct{}

// WithSnippetSettings pins settings on ctx. Threshold lookups made with the
// returned context use them instead of reading system_settings again.
func WithSnippetSettings(ctx context.Context, settings SnippetSettings) context.Context {
	return context.WithValue(ensureContext(ctx), settingsCtxKey{}, settings)
}

func pinnedSettings(ctx context.Context) (SnippetSettings, bool) {
	settings, ok := ctx.Value(settingsCtxKey{}).(SnippetSettings)
	return settings, ok
}

// ThresholdFor implements permissions.ThresholdSource for the snippet permissions.
func (s *SnippetSettingsService) ThresholdFor(ctx context.Context, permissionID string) (models.AccessLevel, bool, error) {
	if _, ok := s.defaults.threshold(permissionID); !ok {
		return models.AccessNobody, false, nil
	}
	if settings, ok := pinnedSettings(ensureContext(ctx)); ok {
		level, _ := settings.threshold(permissionID)
		return level, true, nil
	}
	settings, err := s.Get(ctx)
	if err != nil {
		return models.AccessNobody, false, err
	}
	level, _ := settings.threshold(permissionID)
	return level, true, nil
}
