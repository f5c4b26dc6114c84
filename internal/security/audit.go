package security

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/app"
	iauth "github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/services"
)

type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// severity orders statuses so the worst one can be reported overall.
var severity = map[CheckStatus]int{StatusPass: 0, StatusWarn: 1, StatusFail: 2}

// Check is the outcome of one audit rule.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Overall   CheckStatus    `json:"overall"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// SettingsSource supplies the effective snippet settings.
type SettingsSource interface {
	Get(ctx context.Context) (services.SnippetSettings, error)
}

const (
	minSecretBytes       = 32
	preferredSecretBytes = 48
	maxRefreshTTL        = 90 * 24 * time.Hour
	maxSessionsPerUser   = 50
)

// AuditService reviews the running configuration for settings that weaken
// account or snippet security. Any dependency may be nil; the checks that
// need it then warn instead of failing.
type AuditService struct {
	db       *gorm.DB
	jwt      *iauth.JWTService
	cfg      *app.Config
	settings SettingsSource
	now      func() time.Time
}

func NewAuditService(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, settings SettingsSource) *AuditService {
	return &AuditService{db: db, jwt: jwt, cfg: cfg, settings: settings, now: time.Now}
}

func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run evaluates every rule concurrently. Checks keep their declaration order.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	rules := []func(context.Context) Check{
		s.checkRootUser,
		s.checkJWTSecret,
		s.checkSessionTTL,
		s.checkSessionLimit,
		s.checkLockout,
		s.checkGlobalEditors,
		s.checkRateLimit,
	}

	checks := make([]Check, len(rules))
	var group errgroup.Group
	for i, rule := range rules {
		group.Go(func() error {
			checks[i] = rule(ctx)
			return nil
		})
	}
	_ = group.Wait()

	result := Result{
		CheckedAt: s.now().UTC(),
		Overall:   StatusPass,
		Checks:    checks,
		Summary:   map[string]int{string(StatusPass): 0, string(StatusWarn): 0, string(StatusFail): 0},
	}
	for _, check := range checks {
		result.Summary[string(check.Status)]++
		if severity[check.Status] > severity[result.Overall] {
			result.Overall = check.Status
		}
	}
	return result
}

func pass(id, message string, details any) Check {
	return Check{ID: id, Status: StatusPass, Message: message, Details: details}
}

func warn(id, message, remediation string) Check {
	return Check{ID: id, Status: StatusWarn, Message: message, Remediation: remediation}
}

func fail(id, message, remediation string) Check {
	return Check{ID: id, Status: StatusFail, Message: message, Remediation: remediation}
}

func configMissing(id string) Check {
	return warn(id, "Configuration not loaded.", "Load configuration before running the security audit.")
}

func (s *AuditService) checkRootUser(ctx context.Context) Check {
	const id = "root_user_present"
	if s.db == nil {
		return warn(id, "Database unavailable, unable to confirm root user presence.",
			"Ensure database connectivity before running the audit.")
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("is_root = ? AND is_active = ?", true, true).
		Count(&count).Error
	switch {
	case err != nil:
		return warn(id, fmt.Sprintf("Could not verify root users: %v", err), "Retry after resolving database errors.")
	case count == 0:
		return fail(id, "No active root user found.",
			"Run POST /api/setup/initialize or snippetsctl user create --root.")
	}
	return pass(id, "Root user present.", map[string]any{"count": count})
}

func (s *AuditService) checkJWTSecret(context.Context) Check {
	const id = "jwt_secret_strength"
	if s.jwt == nil {
		return warn(id, "JWT service not initialised, unable to assess signing secret strength.",
			"Initialise the JWT service with a strong secret.")
	}

	length := s.jwt.SecretLength()
	switch {
	case length < minSecretBytes:
		return fail(id, fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			fmt.Sprintf("Use a randomly generated secret of at least %d bytes.", minSecretBytes))
	case length < preferredSecretBytes:
		check := warn(id, fmt.Sprintf("JWT signing secret is %d bytes.", length),
			fmt.Sprintf("Increase SNIPPETS_AUTH_JWT_SECRET to at least %d bytes.", preferredSecretBytes))
		check.Details = map[string]any{"length": length}
		return check
	}
	return pass(id, fmt.Sprintf("JWT signing secret length is %d bytes.", length), map[string]any{"length": length})
}

func (s *AuditService) checkSessionTTL(context.Context) Check {
	const id = "session_refresh_ttl"
	if s.cfg == nil {
		return configMissing(id)
	}

	ttl := s.cfg.Auth.Session.RefreshTTL
	switch {
	case ttl <= 0:
		return warn(id, "Refresh token TTL is not configured; using default duration.",
			"Set SNIPPETS_AUTH_SESSION_REFRESH_TOKEN_TTL to control session lifetime.")
	case ttl > maxRefreshTTL:
		check := warn(id, fmt.Sprintf("Refresh token TTL (%s) exceeds %s.", ttl, maxRefreshTTL),
			"Reduce refresh token TTL to 90 days or lower.")
		check.Details = map[string]any{"ttl": ttl.String()}
		return check
	}
	return pass(id, fmt.Sprintf("Refresh token TTL is %s.", ttl), map[string]any{"ttl": ttl.String()})
}

func (s *AuditService) checkSessionLimit(context.Context) Check {
	const id = "session_limit"
	if s.cfg == nil {
		return configMissing(id)
	}

	limit := s.cfg.Auth.Session.MaxPerUser
	switch {
	case limit <= 0:
		return warn(id, "Sessions per account are unlimited.",
			"Set SNIPPETS_AUTH_SESSION_MAX_PER_USER so stolen refresh tokens cannot pile up.")
	case limit > maxSessionsPerUser:
		return warn(id, fmt.Sprintf("Accounts may hold %d sessions at once.", limit),
			fmt.Sprintf("Lower SNIPPETS_AUTH_SESSION_MAX_PER_USER to %d or fewer.", maxSessionsPerUser))
	}
	return pass(id, fmt.Sprintf("Accounts may hold up to %d sessions.", limit), map[string]any{"max_per_user": limit})
}

func (s *AuditService) checkLockout(context.Context) Check {
	const id = "account_lockout"
	if s.cfg == nil {
		return configMissing(id)
	}

	local := s.cfg.Auth.LocalProviderConfig()
	details := map[string]any{
		"threshold": local.LockoutThreshold,
		"duration":  local.LockoutDuration.String(),
	}
	if local.LockoutThreshold > 10 || local.LockoutDuration < time.Minute {
		check := warn(id, fmt.Sprintf("Accounts lock after %d failures for %s.", local.LockoutThreshold, local.LockoutDuration),
			"Lock after at most 10 failures for at least one minute.")
		check.Details = details
		return check
	}
	return pass(id, fmt.Sprintf("Accounts lock after %d failures for %s.", local.LockoutThreshold, local.LockoutDuration), details)
}

// checkGlobalEditors flags thresholds that let low-privilege accounts rewrite
// text every user inserts.
func (s *AuditService) checkGlobalEditors(ctx context.Context) Check {
	const id = "global_snippet_editors"
	if s.settings == nil {
		return warn(id, "Snippet settings unavailable, unable to evaluate global edit threshold.",
			"Ensure database connectivity before running the audit.")
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return warn(id, fmt.Sprintf("Could not load snippet settings: %v", err), "Retry after resolving database errors.")
	}

	threshold := settings.EditGlobalThreshold
	message := fmt.Sprintf("Global snippets are editable from %s upwards.", threshold)
	var check Check
	switch {
	case threshold < models.AccessDeveloper:
		check = fail(id, message, "Raise edit_global_threshold to developer or higher.")
	case threshold < models.AccessManager:
		check = warn(id, message, "Consider restricting edit_global_threshold to manager or administrator.")
	default:
		check = pass(id, message, nil)
	}
	check.Details = map[string]any{"edit_global_threshold": threshold.String()}
	return check
}

func (s *AuditService) checkRateLimit(context.Context) Check {
	const id = "rate_limit"
	if s.cfg == nil {
		return configMissing(id)
	}

	limit := s.cfg.Server.RateLimit
	if !limit.Enabled {
		return warn(id, "Request rate limiting is disabled.",
			"Set SNIPPETS_SERVER_RATE_LIMIT_ENABLED=true to throttle credential guessing.")
	}
	return pass(id, fmt.Sprintf("Rate limiting allows %d requests per %s.", limit.Requests, limit.Window),
		map[string]any{"requests": limit.Requests, "window": limit.Window.String()})
}
