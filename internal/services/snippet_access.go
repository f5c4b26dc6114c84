package services

import (
	"context"
	"errors"
	"strings"

	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/permissions"
	apperrors "github.com/charlesng35/snippets/pkg/errors"
)

// SnippetCapabilities summarises what a user may do with snippets.
type SnippetCapabilities struct {
	EditOwn    bool `json:"edit_own"`
	UseGlobal  bool `json:"use_global"`
	EditGlobal bool `json:"edit_global"`
}

// SnippetAccess applies the snippet thresholds to users and records.
type SnippetAccess struct {
	checker  *permissions.Checker
	settings *SnippetSettingsService
}

// NewSnippetAccess constructs the access evaluator. settings may be nil, in
// which case every check goes through the checker's threshold source.
func NewSnippetAccess(checker *permissions.Checker, settings *SnippetSettingsService) (*SnippetAccess, error) {
	if checker == nil {
		return nil, errors.New("snippet access: permission checker is required")
	}
	return &SnippetAccess{checker: checker, settings: settings}, nil
}

// Capabilities evaluates the three snippet thresholds for user, reading the
// settings once.
func (a *SnippetAccess) Capabilities(ctx context.Context, user *models.User) (SnippetCapabilities, error) {
	if a.settings == nil {
		return a.evaluate(ctx, user)
	}
	settings, err := a.settings.Get(ctx)
	if err != nil {
		return SnippetCapabilities{}, err
	}
	return a.CapabilitiesWith(ctx, user, settings)
}

// CapabilitiesWith evaluates the thresholds against settings the caller
// already loaded.
func (a *SnippetAccess) CapabilitiesWith(ctx context.Context, user *models.User, settings SnippetSettings) (SnippetCapabilities, error) {
	return a.evaluate(WithSnippetSettings(ctx, settings), user)
}

func (a *SnippetAccess) evaluate(ctx context.Context, user *models.User) (SnippetCapabilities, error) {
	var caps SnippetCapabilities
	checks := []struct {
		permission string
		target     *bool
	}{
		{permissions.SnippetsEditOwn, &caps.EditOwn},
		{permissions.SnippetsUseGlobal, &caps.UseGlobal},
		{permissions.SnippetsEditGlobal, &caps.EditGlobal},
	}
	for _, check := range checks {
		ok, err := a.checker.CheckUser(ctx, user, check.permission)
		if err != nil {
			return SnippetCapabilities{}, err
		}
		*check.target = ok
	}
	return caps, nil
}

// CanEdit reports whether user may modify snippet. Owners need edit_own;
// global snippets and snippets of other users need edit_global.
func (a *SnippetAccess) CanEdit(ctx context.Context, user *models.User, snippet *models.Snippet) (bool, error) {
	if user == nil || snippet == nil {
		return false, nil
	}
	if snippet.OwnedBy(user.ID) {
		return a.checker.CheckUser(ctx, user, permissions.SnippetsEditOwn)
	}
	return a.checker.CheckUser(ctx, user, permissions.SnippetsEditGlobal)
}

// CanView reports whether user may read snippet through the management API.
func (a *SnippetAccess) CanView(ctx context.Context, user *models.User, snippet *models.Snippet) (bool, error) {
	if user == nil || snippet == nil {
		return false, nil
	}
	if snippet.IsGlobal() {
		if ok, err := a.checker.CheckUser(ctx, user, permissions.SnippetsUseGlobal); err != nil || ok {
			return ok, err
		}
	}
	return a.CanEdit(ctx, user, snippet)
}

// ResolveOwner decides which owner a management request operates on and
// whether user is allowed to. global selects global snippets; targetUserID
// selects another user's snippets; neither selects the caller's own.
func (a *SnippetAccess) ResolveOwner(ctx context.Context, user *models.User, global bool, targetUserID string) (SnippetOwner, error) {
	if user == nil {
		return SnippetOwner{}, apperrors.ErrUnauthorized
	}
	targetUserID = strings.TrimSpace(targetUserID)

	owner := UserOwner(user.ID)
	permission := permissions.SnippetsEditOwn
	switch {
	case global:
		owner = GlobalOwner()
		permission = permissions.SnippetsEditGlobal
	case targetUserID != "" && targetUserID != user.ID:
		owner = UserOwner(targetUserID)
		permission = permissions.SnippetsEditGlobal
	}

	ok, err := a.checker.CheckUser(ctx, user, permission)
	if err != nil {
		return SnippetOwner{}, err
	}
	if !ok {
		return SnippetOwner{}, apperrors.ErrForbidden
	}
	return owner, nil
}
