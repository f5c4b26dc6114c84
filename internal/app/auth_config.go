package app

import (
	"strings"
	"time"

	"github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/internal/auth/providers"
)

const (
	defaultJWTIssuer        = "snippets"
	defaultRefreshLength    = 48
	minRefreshLength        = 32
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	maxJWTLeeway            = time.Minute
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the
// JWT service. Access tokens never outlive the refresh session that issued
// them and clock leeway is capped at maxJWTLeeway.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}
	if refresh := c.SessionServiceConfig().RefreshTokenTTL; ttl > refresh {
		ttl = refresh
	}

	issuer := strings.TrimSpace(c.JWT.Issuer)
	if issuer == "" {
		issuer = defaultJWTIssuer
	}

	leeway := c.JWT.Leeway
	switch {
	case leeway < 0:
		leeway = 0
	case leeway > maxJWTLeeway:
		leeway = maxJWTLeeway
	}

	var previous []string
	for _, secret := range c.JWT.PreviousSecrets {
		if secret = strings.TrimSpace(secret); secret != "" && secret != c.JWT.Secret {
			previous = append(previous, secret)
		}
	}

	return auth.JWTConfig{
		Secret:          c.JWT.Secret,
		PreviousSecrets: previous,
		Issuer:          issuer,
		AccessTokenTTL:  ttl,
		Leeway:          leeway,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
// Refresh tokens shorter than minRefreshLength bytes are lengthened.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.RefreshTTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	length := c.Session.RefreshLength
	switch {
	case length <= 0:
		length = defaultRefreshLength
	case length < minRefreshLength:
		length = minRefreshLength
	}

	maxPerUser := c.Session.MaxPerUser
	if maxPerUser < 0 {
		maxPerUser = 0
	}

	return auth.SessionConfig{
		RefreshTokenTTL: ttl,
		RefreshLength:   length,
		MaxPerUser:      maxPerUser,
	}
}

// LocalProviderConfig converts AuthConfig into LocalProvider parameters.
func (c AuthConfig) LocalProviderConfig() providers.LocalConfig {
	duration := c.Local.LockoutDuration
	if duration <= 0 {
		duration = defaultLockoutDuration
	}

	threshold := c.Local.LockoutThreshold
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}

	return providers.LocalConfig{
		LockoutThreshold: threshold,
		LockoutDuration:  duration,
	}
}
