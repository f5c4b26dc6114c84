package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/response"
)

// TrackerHandler serves the minimal project and bug records placeholders resolve against.
type TrackerHandler struct {
	projects *services.ProjectService
	bugs     *services.BugService
}

func NewTrackerHandler(projects *services.ProjectService, bugs *services.BugService) *TrackerHandler {
	return &TrackerHandler{projects: projects, bugs: bugs}
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=128"`
	Description string `json:"description"`
}

type createBugRequest struct {
	ProjectID  string  `json:"project_id" validate:"required"`
	ReporterID string  `json:"reporter_id"`
	HandlerID  *string `json:"handler_id"`
	Summary    string  `json:"summary" validate:"required,notblank,max=255"`
}

// GET /api/projects
func (h *TrackerHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, projects)
}

// GET /api/projects/:id
func (h *TrackerHandler) GetProject(c *gin.Context) {
	project, err := h.projects.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// POST /api/projects
func (h *TrackerHandler) CreateProject(c *gin.Context) {
	var body createProjectRequest
	if !bindAndValidate(c, &body) {
		return
	}
	project, err := h.projects.Create(requestContext(c), services.CreateProjectInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// POST /api/bugs
// The reporter defaults to the caller.
func (h *TrackerHandler) CreateBug(c *gin.Context) {
	var body createBugRequest
	if !bindAndValidate(c, &body) {
		return
	}
	reporter := strings.TrimSpace(body.ReporterID)
	if reporter == "" {
		reporter = c.GetString(middleware.CtxUserIDKey)
	}

	bug, err := h.bugs.Create(requestContext(c), services.CreateBugInput{
		ProjectID:  body.ProjectID,
		ReporterID: reporter,
		HandlerID:  body.HandlerID,
		Summary:    body.Summary,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, bug)
}

// GET /api/bugs/:id
func (h *TrackerHandler) GetBug(c *gin.Context) {
	id, err := parseBugID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	bug, err := h.bugs.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, bug)
}

func parseBugID(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.NewBadRequest("bug id must be a non-negative integer")
	}
	return uint(id), nil
}
