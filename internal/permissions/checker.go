package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/pkg/metrics"
)

// ThresholdSource supplies runtime overrides for permission thresholds.
// ok is false when the source has no override for the permission.
type ThresholdSource interface {
	ThresholdFor(ctx context.Context, permissionID string) (level models.AccessLevel, ok bool, err error)
}

// Checker evaluates user access levels against registered permission thresholds.
type Checker struct {
	db         *gorm.DB
	thresholds ThresholdSource
}

// CheckerOption customises a Checker.
type CheckerOption func(*Checker)

// WithThresholdSource installs a source of runtime threshold overrides.
func WithThresholdSource(src ThresholdSource) CheckerOption {
	return func(c *Checker) {
		c.thresholds = src
	}
}

// NewChecker constructs a permission checker backed by the provided database.
func NewChecker(db *gorm.DB, opts ...CheckerOption) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permission checker: db is required")
	}
	c := &Checker{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Check loads the user and determines whether they hold the permission.
func (c *Checker) Check(ctx context.Context, userID, permissionID string) (bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("permission checker: user id is required")
	}

	var user models.User
	if err := c.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		metrics.PermissionChecks.WithLabelValues(permissionID, "error").Inc()
		return false, fmt.Errorf("permission checker: load user: %w", err)
	}
	return c.CheckUser(ctx, &user, permissionID)
}

// CheckUser evaluates the permission for an already loaded user. The user must
// meet the threshold of the permission and of each of its dependencies. A
// threshold of nobody denies everyone, root included.
func (c *Checker) CheckUser(ctx context.Context, user *models.User, permissionID string) (bool, error) {
	ctx = ensureContext(ctx)

	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return false, errors.New("permission checker: permission id is required")
	}
	if user == nil || !user.IsActive {
		metrics.PermissionChecks.WithLabelValues(permissionID, "denied").Inc()
		return false, nil
	}
	dependencies, err := ResolveDependencies(permissionID)
	if err != nil {
		metrics.PermissionChecks.WithLabelValues(permissionID, "error").Inc()
		return false, err
	}

	level := user.EffectiveAccessLevel()
	for _, id := range append(dependencies, permissionID) {
		threshold, err := c.Threshold(ctx, id)
		if err != nil {
			metrics.PermissionChecks.WithLabelValues(permissionID, "error").Inc()
			return false, err
		}
		// root passes any threshold short of nobody
		if !level.Satisfies(threshold) && !(user.IsRoot && threshold < models.AccessNobody) {
			metrics.PermissionChecks.WithLabelValues(permissionID, "denied").Inc()
			return false, nil
		}
	}

	metrics.PermissionChecks.WithLabelValues(permissionID, "allowed").Inc()
	return true, nil
}

// Threshold resolves the effective minimum access level for a permission.
func (c *Checker) Threshold(ctx context.Context, permissionID string) (models.AccessLevel, error) {
	def, ok := Get(permissionID)
	if !ok {
		return models.AccessNobody, unknownPermission(permissionID)
	}
	if c.thresholds != nil {
		level, ok, err := c.thresholds.ThresholdFor(ensureContext(ctx), permissionID)
		if err != nil {
			return models.AccessNobody, fmt.Errorf("permission checker: threshold for %s: %w", permissionID, err)
		}
		if ok {
			return level, nil
		}
	}
	return def.Threshold, nil
}

// EffectivePermission is a registered permission with the threshold in force.
type EffectivePermission struct {
	ID          string             `json:"id"`
	Module      string             `json:"module"`
	Description string             `json:"description"`
	DependsOn   []string           `json:"depends_on,omitempty"`
	Default     models.AccessLevel `json:"default_threshold"`
	Threshold   models.AccessLevel `json:"threshold"`
	Overridden  bool               `json:"overridden"`
}

// Catalog lists every permission with its effective threshold.
func (c *Checker) Catalog(ctx context.Context) ([]EffectivePermission, error) {
	perms := List()
	out := make([]EffectivePermission, 0, len(perms))
	for _, perm := range perms {
		threshold, err := c.Threshold(ctx, perm.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, EffectivePermission{
			ID:          perm.ID,
			Module:      perm.Module,
			Description: perm.Description,
			DependsOn:   perm.DependsOn,
			Default:     perm.Threshold,
			Threshold:   threshold,
			Overridden:  threshold != perm.Threshold,
		})
	}
	return out, nil
}

// GetUserPermissions returns the sorted permission IDs granted to the user.
func (c *Checker) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("permission checker: user id is required")
	}

	var user models.User
	if err := c.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("permission checker: load user: %w", err)
	}

	var ids []string
	for id := range GetAll() {
		ok, err := c.CheckUser(ctx, &user, id)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
