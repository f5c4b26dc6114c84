package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/response"
)

type SetupHandler struct {
	users *services.UserService
	// serialises concurrent initialisation attempts
	mu sync.Mutex
}

func NewSetupHandler(users *services.UserService) *SetupHandler {
	return &SetupHandler{users: users}
}

type initializeRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	RealName string `json:"real_name" validate:"max=255"`
}

// GET /api/setup/status
func (h *SetupHandler) Status(c *gin.Context) {
	count, err := h.users.Count(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"initialized": count > 0})
}

// POST /api/setup/initialize creates the first (root) account.
func (h *SetupHandler) Initialize(c *gin.Context) {
	var body initializeRequest
	if !bindAndValidate(c, &body) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := requestContext(c)
	count, err := h.users.Count(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	if count > 0 {
		response.Error(c, services.ErrAlreadyInitialized)
		return
	}

	active := true
	user, err := h.users.Create(ctx, services.CreateUserInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		RealName: body.RealName,
		IsRoot:   true,
		IsActive: &active,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"root_user_id": user.ID})
}
