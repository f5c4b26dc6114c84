package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/pkg/crypto"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountLocked      = errors.New("auth: account locked")
	ErrAccountDisabled    = errors.New("auth: account disabled")
	// ErrWeakPassword rejects a new password below crypto.MinPasswordLength.
	ErrWeakPassword = errors.New("auth: password too short")
	// ErrPasswordReused rejects a change that keeps the current password.
	ErrPasswordReused = errors.New("auth: new password matches the current one")
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// decoyHash is compared against when the identifier matches no account so
// unknown and known usernames cost the same bcrypt round.
var decoyHash, _ = crypto.HashPassword("snippets-decoy-password")

type LocalConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	Clock            func() time.Time
}

type AuthenticateInput struct {
	Identifier string
	Password   string
	IPAddress  string
}

// LocalProvider authenticates tracker accounts by username or email and
// password, locking an account after repeated failures.
type LocalProvider struct {
	db        *gorm.DB
	clock     func() time.Time
	threshold int
	duration  time.Duration
}

func NewLocalProvider(db *gorm.DB, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}

	p := &LocalProvider{
		db:        db,
		clock:     time.Now,
		threshold: cfg.LockoutThreshold,
		duration:  cfg.LockoutDuration,
	}
	if p.threshold <= 0 {
		p.threshold = defaultLockoutThreshold
	}
	if p.duration <= 0 {
		p.duration = defaultLockoutDuration
	}
	if cfg.Clock != nil {
		p.clock = cfg.Clock
	}
	return p, nil
}

// Authenticate returns the account matching the identifier (username or
// email, case-insensitive) when the password is right. A disabled account
// is only reported once the password checked out.
func (p *LocalProvider) Authenticate(ctx context.Context, input AuthenticateInput) (*models.User, error) {
	identity := strings.TrimSpace(input.Identifier)
	if identity == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	db := p.db.WithContext(ctx)

	var user models.User
	err := db.Where("LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?)", identity, identity).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		crypto.VerifyPassword(decoyHash, input.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}

	now := p.clock()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, ErrAccountLocked
	}

	if !crypto.VerifyPassword(user.Password, input.Password) {
		return nil, p.recordFailure(db, &user, now)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	user.LastLoginIP = strings.TrimSpace(input.IPAddress)

	if err := db.Model(&user).Updates(map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   now,
		"last_login_ip":   user.LastLoginIP,
	}).Error; err != nil {
		return nil, fmt.Errorf("local provider: update user: %w", err)
	}
	return &user, nil
}

// recordFailure bumps the counter in the database so concurrent attempts
// are all counted. An expired lock starts a fresh count.
func (p *LocalProvider) recordFailure(db *gorm.DB, user *models.User, now time.Time) error {
	counter := gorm.Expr("failed_attempts + 1")
	if user.LockedUntil != nil {
		counter = gorm.Expr("1")
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"failed_attempts": counter,
		"locked_until":    nil,
	}).Error; err != nil {
		return fmt.Errorf("local provider: update failed attempts: %w", err)
	}

	var attempts int
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Pluck("failed_attempts", &attempts).Error; err != nil {
		return fmt.Errorf("local provider: read failed attempts: %w", err)
	}
	user.FailedAttempts = attempts
	user.LockedUntil = nil

	if attempts < p.threshold {
		return ErrInvalidCredentials
	}

	lockUntil := now.Add(p.duration)
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("locked_until", lockUntil).Error; err != nil {
		return fmt.Errorf("local provider: lock account: %w", err)
	}
	user.LockedUntil = &lockUntil
	return ErrAccountLocked
}

// ChangePassword replaces the password of userID after checking the
// current one.
func (p *LocalProvider) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if strings.TrimSpace(userID) == "" || newPassword == "" {
		return errors.New("local provider: user id and new password are required")
	}
	if len(newPassword) < crypto.MinPasswordLength {
		return ErrWeakPassword
	}

	db := p.db.WithContext(ctx)

	var user models.User
	if err := db.Take(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("local provider: find user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return ErrPasswordReused
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("local provider: hash password: %w", err)
	}
	if err := db.Model(&user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("local provider: update password: %w", err)
	}
	return nil
}
