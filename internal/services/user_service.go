package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/events"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/pkg/crypto"
	apperrors "github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/logger"
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	RealName    string
	AccessLevel *models.AccessLevel
	IsRoot      bool
	IsActive    *bool
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Username    *string
	Email       *string
	RealName    *string
	AccessLevel *models.AccessLevel
	IsActive    *bool
}

// UserFilters captures listing filters.
type UserFilters struct {
	IsActive *bool
	Query    string
}

// ListUsersOptions controls pagination for user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Filters  UserFilters
}

// UserService manages the lifecycle of tracker accounts.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
	bus          *events.Bus
}

// NewUserService constructs a UserService instance. bus may be nil when no
// module needs to react to account deletion.
func NewUserService(db *gorm.DB, auditService *AuditService, bus *events.Bus) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:           db,
		auditService: auditService,
		bus:          bus,
	}, nil
}

// Create provisions a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	missing := map[string]string{}
	if username == "" {
		missing["username"] = "username is required"
	}
	if email == "" {
		missing["email"] = "email is required"
	}
	if strings.TrimSpace(input.Password) == "" {
		missing["password"] = "password is required"
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidation(missing)
	}

	hashed, err := hashNewPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:    username,
		Email:       email,
		Password:    hashed,
		RealName:    strings.TrimSpace(input.RealName),
		AccessLevel: models.AccessReporter,
		IsRoot:      input.IsRoot,
		IsActive:    true,
	}
	if input.AccessLevel != nil {
		if !input.AccessLevel.Assignable() {
			return nil, apperrors.NewValidation(map[string]string{"access_level": "access level must be between none and administrator"})
		}
		user.AccessLevel = *input.AccessLevel
	}
	if user.IsRoot && user.AccessLevel < models.AccessAdministrator {
		user.AccessLevel = models.AccessAdministrator
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.create",
		Resource: user.ID,
		Result:   AuditSuccess,
		Metadata: map[string]any{
			"username":     user.Username,
			"email":        user.Email,
			"access_level": user.AccessLevel.String(),
			"is_root":      user.IsRoot,
		},
	})

	return user, nil
}

// Count returns the number of accounts.
func (s *UserService) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("user service: count users: %w", err)
	}
	return count, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.findBy(ctx, "id = ?", id)
}

// GetByUsername matches the login name case-insensitively.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findBy(ctx, "LOWER(username) = LOWER(?)", username)
}

func (s *UserService) findBy(ctx context.Context, where, value string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ensureContext(ctx)).Take(&user, where, strings.TrimSpace(value)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// List retrieves users matching the supplied filters with pagination.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := pageBounds(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(real_name) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	users := []models.User{}
	if err := query.
		Order("LOWER(username) ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// Update persists mutable attributes for an existing user.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if input.Username != nil {
		if name := strings.TrimSpace(*input.Username); name != "" && name != user.Username {
			updates["username"] = name
		}
	}
	if input.Email != nil {
		if email := strings.ToLower(strings.TrimSpace(*input.Email)); email != "" && email != user.Email {
			updates["email"] = email
		}
	}
	if input.RealName != nil {
		updates["real_name"] = strings.TrimSpace(*input.RealName)
	}
	if input.AccessLevel != nil && *input.AccessLevel != user.AccessLevel {
		if user.IsRoot {
			return nil, ErrRootUserImmutable
		}
		if !input.AccessLevel.Assignable() {
			return nil, apperrors.NewValidation(map[string]string{"access_level": "access level must be between none and administrator"})
		}
		updates["access_level"] = *input.AccessLevel
	}
	if input.IsActive != nil && *input.IsActive != user.IsActive {
		if user.IsRoot && !*input.IsActive {
			return nil, ErrRootUserImmutable
		}
		updates["is_active"] = *input.IsActive
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: update user: %w", err)
	}

	if err := s.db.WithContext(ctx).First(user, "id = ?", user.ID).Error; err != nil {
		return nil, fmt.Errorf("user service: reload user: %w", err)
	}

	audited := make(map[string]any, len(updates))
	for key, value := range updates {
		if level, ok := value.(models.AccessLevel); ok {
			value = level.String()
		}
		audited[key] = value
	}
	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.update",
		Resource: user.ID,
		Result:   AuditSuccess,
		Metadata: audited,
	})

	return user, nil
}

// Delete removes a user unless the account is marked as root. events.UserDelete
// is published inside the deleting transaction, so a failing subscriber
// keeps the account and everything it owns.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsRoot {
		return ErrRootUserImmutable
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
			return fmt.Errorf("user service: delete user: %w", err)
		}
		if s.bus == nil {
			return nil
		}
		payload := events.UserDeleted{UserID: user.ID, Username: user.Username, Tx: tx}
		if err := s.bus.Publish(ctx, events.UserDelete, payload); err != nil {
			return fmt.Errorf("user service: user delete subscribers: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.WithModule("users").Error("user delete rolled back",
			zap.String("user_id", user.ID),
			zap.Error(err))
		recordAudit(s.auditService, ctx, AuditEntry{
			Action:   "user.delete",
			Resource: user.ID,
			Result:   AuditFailure,
			Metadata: map[string]any{"username": user.Username},
		})
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.delete",
		Resource: user.ID,
		Result:   AuditSuccess,
		Metadata: map[string]any{"username": user.Username},
	})
	return nil
}

// ResetPassword sets a new password for id without knowing the old one and
// clears any lockout. Used by administrators and snippetsctl.
func (s *UserService) ResetPassword(ctx context.Context, id, newPassword string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewValidation(map[string]string{"password": "password is required"})
	}
	hashed, err := hashNewPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.updateAccount(ctx, id, map[string]any{
		"password":        hashed,
		"failed_attempts": 0,
		"locked_until":    nil,
	}); err != nil {
		return err
	}
	recordAudit(s.auditService, ctx, AuditEntry{Action: "user.password_reset", Resource: id, Result: AuditSuccess})
	return nil
}

// Unlock lifts a failed-login lockout on id.
func (s *UserService) Unlock(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	if err := s.updateAccount(ctx, id, map[string]any{"failed_attempts": 0, "locked_until": nil}); err != nil {
		return err
	}
	recordAudit(s.auditService, ctx, AuditEntry{Action: "user.unlock", Resource: id, Result: AuditSuccess})
	return nil
}

func (s *UserService) updateAccount(ctx context.Context, id string, updates map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", strings.TrimSpace(id)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("user service: update account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func hashNewPassword(password string) (string, error) {
	hashed, err := crypto.HashPassword(password)
	if errors.Is(err, crypto.ErrPasswordTooShort) {
		return "", apperrors.NewValidation(map[string]string{
			"password": fmt.Sprintf("password must be at least %d characters", crypto.MinPasswordLength),
		})
	}
	if err != nil {
		return "", fmt.Errorf("user service: hash password: %w", err)
	}
	return hashed, nil
}
