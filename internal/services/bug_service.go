package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
	apperrors "github.com/charlesng35/snippets/pkg/errors"
)

const bugSummaryMaxLength = 255

// CreateBugInput describes a new bug.
type CreateBugInput struct {
	ProjectID  string
	ReporterID string
	HandlerID  *string
	Summary    string
}

// BugService manages the bug records placeholders are resolved against.
type BugService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewBugService constructs a BugService.
func NewBugService(db *gorm.DB, audit *AuditService) (*BugService, error) {
	if db == nil {
		return nil, errors.New("bug service: db is required")
	}
	return &BugService{db: db, audit: audit}, nil
}

// Create validates the referenced project and users and persists the bug.
func (s *BugService) Create(ctx context.Context, input CreateBugInput) (*models.Bug, error) {
	ctx = ensureContext(ctx)

	summary := strings.TrimSpace(input.Summary)
	if summary == "" {
		return nil, apperrors.NewBadRequest("bug summary is required")
	}
	if len([]rune(summary)) > bugSummaryMaxLength {
		return nil, apperrors.NewBadRequest("bug summary is too long")
	}

	bug := &models.Bug{
		ProjectID:  strings.TrimSpace(input.ProjectID),
		ReporterID: strings.TrimSpace(input.ReporterID),
		HandlerID:  trimmedPtr(input.HandlerID),
		Summary:    summary,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.Project{}, bug.ProjectID, ErrProjectNotFound); err != nil {
			return err
		}
		if err := requireRow(tx, &models.User{}, bug.ReporterID, ErrUserNotFound.WithMessage("Reporter not found")); err != nil {
			return err
		}
		if bug.HandlerID != nil {
			if err := requireRow(tx, &models.User{}, *bug.HandlerID, ErrUserNotFound.WithMessage("Handler not found")); err != nil {
				return err
			}
		}
		return tx.Create(bug).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("bug service: create: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "bug.create",
		Resource: fmt.Sprintf("%d", bug.ID),
		Result:   "success",
		Metadata: map[string]any{"project_id": bug.ProjectID},
	})
	return bug, nil
}

// Get loads a bug by id.
func (s *BugService) Get(ctx context.Context, id uint) (*models.Bug, error) {
	if id == 0 {
		return nil, ErrBugNotFound
	}
	var bug models.Bug
	err := s.db.WithContext(ensureContext(ctx)).First(&bug, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBugNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bug service: get: %w", err)
	}
	return &bug, nil
}

// Details loads a bug together with the names its placeholders expand to.
// Users or projects that no longer exist expand to an empty string.
func (s *BugService) Details(ctx context.Context, id uint) (*BugDetails, error) {
	ctx = ensureContext(ctx)

	bug, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &BugDetails{ID: bug.ID, Summary: bug.Summary}

	userIDs := []string{bug.ReporterID}
	if bug.HandlerID != nil {
		userIDs = append(userIDs, *bug.HandlerID)
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("bug service: load users: %w", err)
	}
	for _, user := range users {
		if user.ID == bug.ReporterID {
			details.Reporter = user.Username
		}
		if bug.HandlerID != nil && user.ID == *bug.HandlerID {
			details.Handler = user.Username
		}
	}

	var project models.Project
	err = s.db.WithContext(ctx).Select("id", "name").First(&project, "id = ?", bug.ProjectID).Error
	switch {
	case err == nil:
		details.Project = project.Name
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("bug service: load project: %w", err)
	}

	return details, nil
}

func requireRow(tx *gorm.DB, model any, id string, notFound error) error {
	if id == "" {
		return notFound
	}
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
