package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/pkg/crypto"
	"github.com/charlesng35/snippets/pkg/logger"
	"github.com/charlesng35/snippets/pkg/metrics"
)

const (
	// DefaultRefreshTokenTTL is the fallback refresh token lifetime.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	defaultRefreshLength   = 48
)

// SessionConfig tunes a SessionService. MaxPerUser caps the live sessions
// of one account; the oldest are revoked first. Zero means no cap.
type SessionConfig struct {
	RefreshTokenTTL time.Duration
	RefreshLength   int
	MaxPerUser      int
	Clock           func() time.Time
}

type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// TokenPair is what a login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

var (
	ErrSessionNotFound     = errors.New("session: not found")
	ErrSessionRevoked      = errors.New("session: revoked")
	ErrSessionExpired      = errors.New("session: expired")
	ErrSessionInvalidToken = errors.New("session: invalid token")
	// ErrSessionReused means a refresh token was presented after it had
	// already been rotated. The session is revoked when this happens.
	ErrSessionReused = errors.New("session: refresh token reused")
)

// SessionService issues, rotates and revokes refresh-token sessions.
type SessionService struct {
	db         *gorm.DB
	jwt        *JWTService
	refreshTTL time.Duration
	tokenLen   int
	maxPerUser int
	now        func() time.Time
}

func NewSessionService(db *gorm.DB, jwtService *JWTService, cfg SessionConfig) (*SessionService, error) {
	switch {
	case db == nil:
		return nil, errors.New("session service: db is required")
	case jwtService == nil:
		return nil, errors.New("session service: jwt service is required")
	}

	s := &SessionService{
		db:         db,
		jwt:        jwtService,
		refreshTTL: cfg.RefreshTokenTTL,
		tokenLen:   cfg.RefreshLength,
		maxPerUser: cfg.MaxPerUser,
		now:        time.Now,
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTokenTTL
	}
	if s.tokenLen <= 0 {
		s.tokenLen = defaultRefreshLength
	}
	if s.maxPerUser < 0 {
		s.maxPerUser = 0
	}
	if cfg.Clock != nil {
		s.now = cfg.Clock
	}
	return s, nil
}

// CreateSession opens a session for user and returns its first token pair.
func (s *SessionService) CreateSession(ctx context.Context, user *models.User, meta SessionMetadata) (TokenPair, *models.Session, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return TokenPair{}, nil, errors.New("session service: user is required")
	}

	refresh, digest, err := s.newRefreshToken()
	if err != nil {
		return TokenPair{}, nil, err
	}

	now := s.now()
	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: digest,
		IPAddress:    strings.TrimSpace(meta.IPAddress),
		UserAgent:    strings.TrimSpace(meta.UserAgent),
		ExpiresAt:    now.Add(s.refreshTTL),
		LastUsedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: create session: %w", err)
	}
	metrics.ActiveSessions.Inc()

	if err := s.enforceLimit(ctx, user.ID); err != nil {
		return TokenPair{}, nil, err
	}

	pair, err := s.issue(session, user.Username, refresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, session, nil
}

// RefreshSession swaps refreshToken for a new pair. Presenting a token that
// a previous refresh already rotated out revokes the whole session.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string) (TokenPair, *models.Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, nil, ErrSessionInvalidToken
	}
	presented := crypto.HashToken(refreshToken)
	db := s.db.WithContext(ctx)

	var session models.Session
	err := db.Preload("User").
		Where("refresh_token = ? OR previous_token = ?", presented, presented).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenPair{}, nil, ErrSessionNotFound
	}
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: find session: %w", err)
	}

	now := s.now()
	switch {
	case session.RevokedAt != nil:
		return TokenPair{}, nil, ErrSessionRevoked
	case session.RefreshToken != presented:
		logger.WithModule("auth").Warn("refresh token replayed, revoking session",
			zap.String("session_id", session.ID),
			zap.String("user_id", session.UserID),
		)
		if err := s.revoke(ctx, "id = ?", session.ID, models.RevokedReuse); err != nil {
			return TokenPair{}, nil, err
		}
		return TokenPair{}, nil, ErrSessionReused
	case !session.Active(now):
		return TokenPair{}, nil, ErrSessionExpired
	case session.User != nil && !session.User.IsActive:
		return TokenPair{}, nil, ErrSessionRevoked
	}

	refresh, digest, err := s.newRefreshToken()
	if err != nil {
		return TokenPair{}, nil, err
	}

	expiresAt := now.Add(s.refreshTTL)
	result := db.Model(&models.Session{}).
		Where("id = ? AND refresh_token = ?", session.ID, presented).
		Updates(map[string]any{
			"refresh_token":  digest,
			"previous_token": presented,
			"expires_at":     expiresAt,
			"last_used_at":   now,
		})
	if result.Error != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: update session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// a concurrent refresh won the rotation
		return TokenPair{}, nil, ErrSessionNotFound
	}

	session.RefreshToken = digest
	session.PreviousToken = presented
	session.ExpiresAt = expiresAt
	session.LastUsedAt = now

	var username string
	if session.User != nil {
		username = session.User.Username
	}
	pair, err := s.issue(&session, username, refresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, &session, nil
}

// ValidateSession reports whether the session behind an access token is
// still live.
func (s *SessionService) ValidateSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionInvalidToken
	}

	var session models.Session
	err := s.db.WithContext(ctx).Select("id", "revoked_at", "expires_at").Take(&session, "id = ?", sessionID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrSessionNotFound
	case err != nil:
		return fmt.Errorf("session service: find session: %w", err)
	case session.RevokedAt != nil:
		return ErrSessionRevoked
	case !session.Active(s.now()):
		return ErrSessionExpired
	}
	return nil
}

func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionInvalidToken
	}
	return s.revoke(ctx, "id = ?", sessionID, models.RevokedByUser)
}

// RevokeUserSessions ends every live session of userID. Having none is not
// an error.
func (s *SessionService) RevokeUserSessions(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrSessionInvalidToken
	}
	err := s.revoke(ctx, "user_id = ?", userID, models.RevokedAll)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	return err
}

// ListUserSessions returns the live sessions of userID, newest first.
func (s *SessionService) ListUserSessions(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, s.now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session service: list sessions: %w", err)
	}
	return sessions, nil
}

// CleanupExpired deletes expired and revoked sessions, then resets the
// active session gauge from what is left.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := s.db.WithContext(ctx)

	now := s.now()
	result := db.Where("expires_at < ? OR revoked_at IS NOT NULL", now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", result.Error)
	}

	var active int64
	if err := db.Model(&models.Session{}).
		Where("expires_at >= ? AND revoked_at IS NULL", now).
		Count(&active).Error; err != nil {
		return result.RowsAffected, fmt.Errorf("session service: count active sessions: %w", err)
	}
	metrics.ActiveSessions.Set(float64(active))
	return result.RowsAffected, nil
}

// revoke stamps every live session matching where. ErrSessionNotFound means
// nothing matched.
func (s *SessionService) revoke(ctx context.Context, where string, arg any, reason string) error {
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where(where, arg).
		Where("revoked_at IS NULL").
		Updates(map[string]any{"revoked_at": s.now(), "revoked_reason": reason})
	if result.Error != nil {
		return fmt.Errorf("session service: revoke (%s): %w", reason, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	return nil
}

// enforceLimit revokes the oldest live sessions of userID beyond maxPerUser.
func (s *SessionService) enforceLimit(ctx context.Context, userID string) error {
	if s.maxPerUser == 0 {
		return nil
	}

	var live []string
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Order("created_at DESC").
		Pluck("id", &live).Error
	if err != nil {
		return fmt.Errorf("session service: list sessions over limit: %w", err)
	}
	if len(live) <= s.maxPerUser {
		return nil
	}
	stale := live[s.maxPerUser:]
	return s.revoke(ctx, "id IN ?", stale, models.RevokedOverflow)
}

func (s *SessionService) newRefreshToken() (token, digest string, err error) {
	token, err = crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return "", "", fmt.Errorf("session service: generate refresh token: %w", err)
	}
	return token, crypto.HashToken(token), nil
}

func (s *SessionService) issue(session *models.Session, username, refresh string) (TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		UserID:    session.UserID,
		SessionID: session.ID,
		Username:  username,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("session service: generate access token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.jwt.TTL()}, nil
}
