package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/logger"
	"github.com/charlesng35/snippets/pkg/response"
)

type UserHandler struct {
	service  *services.UserService
	sessions *iauth.SessionService
}

type createUserRequest struct {
	Username    string              `json:"username" validate:"required,min=3,max=64"`
	Email       string              `json:"email" validate:"required,email"`
	Password    string              `json:"password" validate:"required,min=8"`
	RealName    string              `json:"real_name" validate:"max=255"`
	AccessLevel *models.AccessLevel `json:"access_level"`
	IsRoot      bool                `json:"is_root"`
	IsActive    *bool               `json:"is_active"`
}

type updateUserRequest struct {
	Username    *string             `json:"username" validate:"omitempty,min=3,max=64"`
	Email       *string             `json:"email" validate:"omitempty,email"`
	RealName    *string             `json:"real_name" validate:"omitempty,max=255"`
	AccessLevel *models.AccessLevel `json:"access_level"`
	IsActive    *bool               `json:"is_active"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// NewUserHandler builds the account endpoints. sessions may be nil, in which
// case a password reset leaves existing sessions alive.
func NewUserHandler(service *services.UserService, sessions *iauth.SessionService) *UserHandler {
	return &UserHandler{service: service, sessions: sessions}
}

// userPayload renders an account with its effective level and granted permissions.
func userPayload(user *models.User, perms []string) gin.H {
	payload := gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"real_name":    user.RealName,
		"access_level": user.EffectiveAccessLevel(),
		"is_root":      user.IsRoot,
		"is_active":    user.IsActive,
	}
	if perms != nil {
		payload["permissions"] = perms
	}
	return payload
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	page, per := pagination(c, 20)

	opts := services.ListUsersOptions{Page: page, PageSize: per}
	opts.Filters.Query = c.Query("q")
	if active := strings.TrimSpace(c.Query("active")); active != "" {
		value := parseBoolQuery(c, "active")
		opts.Filters.IsActive = &value
	}

	users, total, err := h.service.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, users, response.Paginate(page, per, total))
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, userPayload(user, nil))
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Create(requestContext(c), services.CreateUserInput{
		Username:    body.Username,
		Email:       body.Email,
		Password:    body.Password,
		RealName:    body.RealName,
		AccessLevel: body.AccessLevel,
		IsRoot:      body.IsRoot,
		IsActive:    body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, userPayload(user, nil))
}

// PATCH /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var body updateUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Update(requestContext(c), c.Param("id"), services.UpdateUserInput{
		Username:    body.Username,
		Email:       body.Email,
		RealName:    body.RealName,
		AccessLevel: body.AccessLevel,
		IsActive:    body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, userPayload(user, nil))
}

// DELETE /api/users/:id
// Deleting an account also removes its private snippets.
func (h *UserHandler) Delete(c *gin.Context) {
	if c.Param("id") == c.GetString(middleware.CtxUserIDKey) {
		response.Error(c, errors.NewBadRequest("you cannot delete your own account"))
		return
	}
	if err := h.service.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/users/:id/password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var body resetPasswordRequest
	if !bindAndValidate(c, &body) {
		return
	}

	ctx := requestContext(c)
	id := c.Param("id")
	if err := h.service.ResetPassword(ctx, id, body.Password); err != nil {
		response.Error(c, err)
		return
	}

	revoked := false
	if h.sessions != nil {
		if err := h.sessions.RevokeUserSessions(ctx, id); err != nil {
			logger.WithModule("users").Warn("revoke sessions after password reset", zap.String("user_id", id), zap.Error(err))
		} else {
			revoked = true
		}
	}
	response.Success(c, http.StatusOK, gin.H{"reset": true, "sessions_revoked": revoked})
}

// POST /api/users/:id/unlock
func (h *UserHandler) Unlock(c *gin.Context) {
	if err := h.service.Unlock(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unlocked": true})
}
