package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestNewJWTServiceDefaultsTTL(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, DefaultAccessTokenTTL, svc.TTL())
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "super-secret",
		Issuer:         "snippets",
		AccessTokenTTL: time.Hour,
		Clock:          now,
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{
		UserID:    "user-123",
		SessionID: "session-456",
		Username:  "alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)

	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "session-456", claims.SessionID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "snippets", claims.Issuer)
	require.Equal(t, "session-456", claims.ID)
	require.True(t, claims.IssuedAt.Time.Equal(current))
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))
}

func TestGenerateAccessTokenRequiresUser(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)

	_, err = svc.GenerateAccessToken(AccessTokenInput{})
	require.Error(t, err)
}

func TestValidateAccessTokenInvalidSignature(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{
		Secret:         "issuer-secret",
		AccessTokenTTL: time.Minute,
		Clock:          now,
	})
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken(AccessTokenInput{UserID: "user-123"})
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{
		Secret:         "other-secret",
		AccessTokenTTL: time.Minute,
		Clock:          now,
	})
	require.NoError(t, err)

	// the kid names a secret the verifier does not hold
	_, err = verifier.ValidateAccessToken(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownSigningKey))
	require.True(t, errors.Is(err, jwt.ErrTokenUnverifiable))

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now().Add(time.Minute)),
		},
	})
	forged.Header["kid"] = signingKeyID("other-secret")
	signed, err := forged.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(signed)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestValidateAccessTokenWrongIssuer(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "elsewhere", Clock: now})
	require.NoError(t, err)
	token, err := issuer.GenerateAccessToken(AccessTokenInput{UserID: "user-123"})
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "snippets", Clock: now})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenInvalidIssuer))
}

func TestValidateAccessTokenExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
		Clock:          now,
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-123"})
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)

	_, err = svc.ValidateAccessToken(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestValidateAccessTokenAcceptsPreviousSecret(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	before, err := NewJWTService(JWTConfig{Secret: "rotated-out", Clock: now})
	require.NoError(t, err)
	token, err := before.GenerateAccessToken(AccessTokenInput{UserID: "user-7"})
	require.NoError(t, err)

	after, err := NewJWTService(JWTConfig{
		Secret:          "fresh-secret",
		PreviousSecrets: []string{" rotated-out "},
		Clock:           now,
	})
	require.NoError(t, err)
	require.Equal(t, len("fresh-secret"), after.SecretLength())

	claims, err := after.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-7", claims.UserID)

	reissued, err := after.GenerateAccessToken(AccessTokenInput{UserID: "user-7"})
	require.NoError(t, err)
	_, err = before.ValidateAccessToken(reissued)
	require.ErrorIs(t, err, ErrUnknownSigningKey)
}

func TestValidateAccessTokenWithoutKeyID(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{Secret: "plain", Clock: func() time.Time { return now }})
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte("plain"))
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
}

func TestValidateAccessTokenRequiresAudienceAndExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{Secret: "plain", Clock: func() time.Time { return now }})
	require.NoError(t, err)

	sign := func(claims *Claims) string {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("plain"))
		require.NoError(t, err)
		return signed
	}

	_, err = svc.ValidateAccessToken(sign(&Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"another-api"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}))
	require.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)

	_, err = svc.ValidateAccessToken(sign(&Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{TokenAudience}},
	}))
	require.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
}

func TestValidateAccessTokenLeeway(t *testing.T) {
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
		Leeway:         30 * time.Second,
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	current = current.Add(80 * time.Second)
	_, err = svc.ValidateAccessToken(token)
	require.NoError(t, err)

	current = current.Add(20 * time.Second)
	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}
