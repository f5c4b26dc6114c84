package api

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/app"
	iauth "github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/internal/auth/providers"
	"github.com/charlesng35/snippets/internal/cache"
	"github.com/charlesng35/snippets/internal/events"
	"github.com/charlesng35/snippets/internal/i18n"
	"github.com/charlesng35/snippets/internal/permissions"
	"github.com/charlesng35/snippets/internal/security"
	"github.com/charlesng35/snippets/internal/services"
)

// Services bundles the application services shared by the HTTP layer, the
// maintenance jobs and the CLI.
type Services struct {
	DB       *gorm.DB
	JWT      *iauth.JWTService
	Sessions *iauth.SessionService
	Local    *providers.LocalProvider
	Checker  *permissions.Checker
	Bus      *events.Bus
	Catalog  *i18n.Catalog

	Audit    *services.AuditService
	Users    *services.UserService
	Projects *services.ProjectService
	Bugs     *services.BugService
	Snippets *services.SnippetService
	Settings *services.SnippetSettingsService
	Access   *services.SnippetAccess
	Security *security.AuditService
}

// NewServices wires the service graph. store may be nil, in which case the
// snippet visibility cache is disabled. The snippet service is subscribed to
// account deletion on the returned bus.
func NewServices(db *gorm.DB, cfg *app.Config, store cache.Store) (*Services, error) {
	if db == nil {
		return nil, errors.New("api: database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("api: config must be provided")
	}

	jwt, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, err
	}
	sessions, err := iauth.NewSessionService(db, jwt, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return nil, err
	}
	local, err := providers.NewLocalProvider(db, cfg.Auth.LocalProviderConfig())
	if err != nil {
		return nil, err
	}
	catalog, err := i18n.New(cfg.I18n.DefaultLocale)
	if err != nil {
		return nil, err
	}

	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.Snippets.SnippetSettings()
	if err != nil {
		return nil, err
	}
	settings, err := services.NewSnippetSettingsService(db, defaults, audit)
	if err != nil {
		return nil, err
	}
	checker, err := permissions.NewChecker(db, permissions.WithThresholdSource(settings))
	if err != nil {
		return nil, err
	}
	access, err := services.NewSnippetAccess(checker, settings)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	users, err := services.NewUserService(db, audit, bus)
	if err != nil {
		return nil, err
	}
	projects, err := services.NewProjectService(db, audit)
	if err != nil {
		return nil, err
	}
	bugs, err := services.NewBugService(db, audit)
	if err != nil {
		return nil, err
	}

	snippetOpts := []services.SnippetServiceOption{services.WithSnippetAudit(audit)}
	if store != nil {
		snippetOpts = append(snippetOpts, services.WithSnippetCache(store, cfg.Snippets.CacheTTL))
	}
	snippets, err := services.NewSnippetService(db, snippetOpts...)
	if err != nil {
		return nil, err
	}
	if err := snippets.SubscribeUserDelete(bus); err != nil {
		return nil, fmt.Errorf("api: subscribe snippets to user deletion: %w", err)
	}

	return &Services{
		DB:       db,
		JWT:      jwt,
		Sessions: sessions,
		Local:    local,
		Checker:  checker,
		Bus:      bus,
		Catalog:  catalog,
		Audit:    audit,
		Users:    users,
		Projects: projects,
		Bugs:     bugs,
		Snippets: snippets,
		Settings: settings,
		Access:   access,
		Security: security.NewAuditService(db, jwt, cfg, settings),
	}, nil
}
