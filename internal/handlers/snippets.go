package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/i18n"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/response"
)

// SnippetHandler serves the My Snippets and Global Snippets management pages.
type SnippetHandler struct {
	svc     *services.SnippetService
	access  *services.SnippetAccess
	users   *services.UserService
	catalog *i18n.Catalog
}

func NewSnippetHandler(svc *services.SnippetService, access *services.SnippetAccess, users *services.UserService, catalog *i18n.Catalog) *SnippetHandler {
	return &SnippetHandler{svc: svc, access: access, users: users, catalog: catalog}
}

type createSnippetRequest struct {
	Name   string `json:"name" validate:"max=128"`
	Value  string `json:"value"`
	Type   int    `json:"type" validate:"gte=0"`
	Global bool   `json:"global"`
	UserID string `json:"user_id"`
}

type updateSnippetRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=128"`
	Value *string `json:"value"`
}

type bulkDeleteRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=500"`
	Global bool     `json:"global"`
	UserID string   `json:"user_id"`
}

// GET /api/snippets?global=1&user_id=
func (h *SnippetHandler) List(c *gin.Context) {
	ctx := requestContext(c)
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	owner, err := h.access.ResolveOwner(ctx, user, parseBoolQuery(c, "global"), c.Query("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	page, per := pagination(c, 50)
	snippets, total, err := h.svc.List(ctx, services.ListSnippetsOptions{Owner: owner, Page: page, PageSize: per})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, snippets, response.Paginate(page, per, total))
}

// POST /api/snippets
func (h *SnippetHandler) Create(c *gin.Context) {
	var body createSnippetRequest
	if !bindAndValidate(c, &body) {
		return
	}

	ctx := requestContext(c)
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	owner, err := h.access.ResolveOwner(ctx, user, body.Global, body.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !owner.Global && owner.UserID != user.ID {
		if _, err := h.users.GetByID(ctx, owner.UserID); err != nil {
			response.Error(c, err)
			return
		}
	}

	input := services.CreateSnippetInput{Type: body.Type, Name: body.Name, Value: body.Value}
	if !owner.Global {
		input.UserID = &owner.UserID
	}
	snippet, err := h.svc.Create(ctx, input)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, snippet)
}

// GET /api/snippets/:id
// Snippets the caller may not see are reported as missing.
func (h *SnippetHandler) Get(c *gin.Context) {
	ctx := requestContext(c)
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	snippet, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok, err := h.access.CanView(ctx, user, snippet)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Error(c, services.ErrSnippetNotFound)
		return
	}
	response.Success(c, http.StatusOK, snippet)
}

// PATCH /api/snippets/:id
func (h *SnippetHandler) Update(c *gin.Context) {
	var body updateSnippetRequest
	if !bindAndValidate(c, &body) {
		return
	}

	ctx := requestContext(c)
	if _, ok := h.editable(c); !ok {
		return
	}
	snippet, err := h.svc.Update(ctx, c.Param("id"), services.UpdateSnippetInput{Name: body.Name, Value: body.Value})
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Success(c, http.StatusOK, snippet)
}

// DELETE /api/snippets/:id
func (h *SnippetHandler) Delete(c *gin.Context) {
	snippet, ok := h.editable(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(requestContext(c), snippet.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/snippets/bulk-delete
// Ids that do not belong to the selected owner are skipped.
func (h *SnippetHandler) BulkDelete(c *gin.Context) {
	var body bulkDeleteRequest
	if !bindAndValidate(c, &body) {
		return
	}

	ctx := requestContext(c)
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	owner, err := h.access.ResolveOwner(ctx, user, body.Global, body.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	deleted, err := h.svc.DeleteByID(ctx, body.IDs, owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

// editable loads the snippet named by :id and verifies the caller may change it.
// It writes the error response itself when returning false.
func (h *SnippetHandler) editable(c *gin.Context) (*models.Snippet, bool) {
	ctx := requestContext(c)
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	snippet, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}

	visible, err := h.access.CanView(ctx, user, snippet)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !visible {
		response.Error(c, services.ErrSnippetNotFound)
		return nil, false
	}
	ok, err := h.access.CanEdit(ctx, user, snippet)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !ok {
		response.Error(c, errors.ErrForbidden)
		return nil, false
	}
	return snippet, true
}

// renderError translates the empty-field validation errors into the caller's language.
func (h *SnippetHandler) renderError(c *gin.Context, err error) {
	loc := localizer(c, h.catalog)
	switch {
	case stderrors.Is(err, services.ErrSnippetNameEmpty):
		err = services.ErrSnippetNameEmpty.WithMessage(loc.T(i18n.KeyErrorNameEmpty))
	case stderrors.Is(err, services.ErrSnippetValueEmpty):
		err = services.ErrSnippetValueEmpty.WithMessage(loc.T(i18n.KeyErrorValueEmpty))
	}
	response.Error(c, err)
}
