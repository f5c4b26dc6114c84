package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
	apperrors "github.com/charlesng35/snippets/pkg/errors"
)

// CreateProjectInput describes a new project.
type CreateProjectInput struct {
	Name        string
	Description string
}

// ProjectService manages projects.
type ProjectService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewProjectService constructs a ProjectService.
func NewProjectService(db *gorm.DB, audit *AuditService) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	return &ProjectService{db: db, audit: audit}, nil
}

// Create persists a project with a unique name.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("project name is required")
	}

	project := &models.Project{Name: name, Description: strings.TrimSpace(input.Description)}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.New("PROJECT_EXISTS", "Project already exists", http.StatusConflict)
		}
		return nil, fmt.Errorf("project service: create: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "project.create",
		Resource: project.ID,
		Result:   "success",
		Metadata: map[string]any{"name": project.Name},
	})
	return project, nil
}

// Get loads a project by id.
func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ensureContext(ctx)).First(&project, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project service: get: %w", err)
	}
	return &project, nil
}

// List returns all projects ordered by name.
func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	if err := s.db.WithContext(ensureContext(ctx)).Order("LOWER(name) ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project service: list: %w", err)
	}
	return projects, nil
}
