package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/internal/auth/providers"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/permissions"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/logger"
	"github.com/charlesng35/snippets/pkg/metrics"
	"github.com/charlesng35/snippets/pkg/response"
)

// AuthHandler manages authentication flows (login/refresh/logout/me).
type AuthHandler struct {
	local    *providers.LocalProvider
	sessions *iauth.SessionService
	users    *services.UserService
	checker  *permissions.Checker
	audit    *services.AuditService
}

func NewAuthHandler(local *providers.LocalProvider, sessions *iauth.SessionService, users *services.UserService, checker *permissions.Checker, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{local: local, sessions: sessions, users: users, checker: checker, audit: audit}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func newTokenResponse(pair iauth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	}
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		response.Error(c, errors.NewBadRequest("identifier is required"))
		return
	}

	ctx := requestContext(c)
	user, err := h.local.Authenticate(ctx, providers.AuthenticateInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		_ = h.audit.Log(ctx, services.AuditEntry{
			Username:  req.Identifier,
			Action:    "auth.login",
			Resource:  "session",
			Result:    "failure",
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		switch {
		case stderrors.Is(err, providers.ErrAccountLocked):
			response.Error(c, errors.ErrAccountLocked)
		case stderrors.Is(err, providers.ErrInvalidCredentials), stderrors.Is(err, providers.ErrAccountDisabled):
			response.Error(c, errors.ErrInvalidCredentials)
		default:
			logger.WithModule("auth").Error("login failed", zap.Error(err))
			response.Error(c, errors.ErrInternalServer)
		}
		return
	}

	pair, _, err := h.sessions.CreateSession(ctx, user, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		logger.WithModule("auth").Error("create session failed", zap.Error(err))
		response.Error(c, errors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	_ = h.audit.Log(ctx, services.AuditEntry{
		UserID:    &user.ID,
		Username:  user.Username,
		Action:    "auth.login",
		Resource:  "session",
		Result:    "success",
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})

	perms, err := h.checker.GetUserPermissions(ctx, user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	tokens := newTokenResponse(pair)
	response.Success(c, http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    tokens.ExpiresIn,
		"user":          userPayload(user, perms),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		response.Error(c, errors.NewBadRequest("refresh token is required"))
		return
	}

	ctx := requestContext(c)
	pair, _, err := h.sessions.RefreshSession(ctx, req.RefreshToken)
	if stderrors.Is(err, iauth.ErrSessionReused) {
		_ = h.audit.Log(ctx, services.AuditEntry{
			Action:    "auth.refresh_reuse",
			Resource:  "session",
			Result:    services.AuditDenied,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
	}
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, newTokenResponse(pair))
}

type sessionPayload struct {
	ID         string `json:"id"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
	CreatedAt  string `json:"created_at"`
	LastUsedAt string `json:"last_used_at"`
	ExpiresAt  string `json:"expires_at"`
	Current    bool   `json:"current"`
}

// GET /api/auth/sessions
func (h *AuthHandler) Sessions(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	live, err := h.sessions.ListUserSessions(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	current := c.GetString(middleware.CtxSessionIDKey)
	out := make([]sessionPayload, 0, len(live))
	for _, s := range live {
		out = append(out, sessionPayload{
			ID:         s.ID,
			IPAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
			LastUsedAt: s.LastUsedAt.UTC().Format(time.RFC3339),
			ExpiresAt:  s.ExpiresAt.UTC().Format(time.RFC3339),
			Current:    s.ID == current,
		})
	}
	response.Success(c, http.StatusOK, out)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sid := c.GetString(middleware.CtxSessionIDKey)
	if sid == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.sessions.RevokeSession(requestContext(c), sid); err != nil && !stderrors.Is(err, iauth.ErrSessionNotFound) {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// POST /api/auth/password
//
// Every session of the account is revoked, including the calling one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	ctx := requestContext(c)
	err := h.local.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
	case stderrors.Is(err, providers.ErrInvalidCredentials):
		h.logPasswordChange(c, userID, services.AuditFailure)
		response.Error(c, errors.NewValidation(map[string]string{"current_password": "current password is incorrect"}))
		return
	case stderrors.Is(err, providers.ErrWeakPassword), stderrors.Is(err, providers.ErrPasswordReused):
		response.Error(c, errors.NewValidation(map[string]string{"new_password": strings.TrimPrefix(err.Error(), "auth: ")}))
		return
	default:
		response.Error(c, err)
		return
	}

	if err := h.sessions.RevokeUserSessions(ctx, userID); err != nil {
		logger.WithModule("auth").Warn("revoke sessions after password change", zap.String("user_id", userID), zap.Error(err))
	}
	h.logPasswordChange(c, userID, services.AuditSuccess)
	response.Success(c, http.StatusOK, gin.H{"sessions_revoked": true})
}

func (h *AuthHandler) logPasswordChange(c *gin.Context, userID, result string) {
	_ = h.audit.Log(requestContext(c), services.AuditEntry{
		UserID:    &userID,
		Action:    "auth.password_change",
		Resource:  "user",
		Result:    result,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	perms, err := h.checker.GetUserPermissions(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, userPayload(user, perms))
}
