package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/services"
)

// SnippetSettings parses the configured thresholds into the service defaults.
// Empty values keep the built-in defaults.
func (c SnippetsConfig) SnippetSettings() (services.SnippetSettings, error) {
	settings := services.DefaultSnippetSettings()

	thresholds := []struct {
		key    string
		raw    string
		target *models.AccessLevel
	}{
		{"snippets.edit_global_threshold", c.EditGlobalThreshold, &settings.EditGlobalThreshold},
		{"snippets.use_global_threshold", c.UseGlobalThreshold, &settings.UseGlobalThreshold},
		{"snippets.edit_own_threshold", c.EditOwnThreshold, &settings.EditOwnThreshold},
	}
	for _, t := range thresholds {
		if strings.TrimSpace(t.raw) == "" {
			continue
		}
		level, err := models.ParseAccessLevel(t.raw)
		if err != nil {
			return services.SnippetSettings{}, fmt.Errorf("config: %s: %w", t.key, err)
		}
		*t.target = level
	}

	if names := services.NormaliseTextareaNames(c.TextareaNames); len(names) > 0 {
		settings.TextareaNames = names
	}
	return settings, nil
}
