package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/snippets/pkg/crypto"
)

const (
	DefaultAccessTokenTTL = 15 * time.Minute
	// TokenAudience is stamped on every access token and required on parse.
	TokenAudience = "snippets-api"

	keyIDLength = 12
)

// ErrUnknownSigningKey is returned for tokens whose kid matches neither the
// current nor a previous secret.
var ErrUnknownSigningKey = errors.New("jwt: unknown signing key")

// JWTConfig configures a JWTService. PreviousSecrets keep tokens signed
// before a secret rotation valid until they expire; new tokens always use
// Secret.
type JWTConfig struct {
	Secret          string
	PreviousSecrets []string
	Issuer          string
	AccessTokenTTL  time.Duration
	Leeway          time.Duration
	Clock           func() time.Time
}

// Claims are embedded in access tokens. Permission checks always reload
// the user, so no access level is carried here.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid,omitempty"`
	Username  string `json:"usr,omitempty"`
	jwt.RegisteredClaims
}

type AccessTokenInput struct {
	UserID    string
	SessionID string
	Username  string
}

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	keyID  string
	keys   map[string][]byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	s := &JWTService{
		keyID:  signingKeyID(cfg.Secret),
		keys:   map[string][]byte{},
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTokenTTL,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultAccessTokenTTL
	}
	if s.leeway < 0 {
		s.leeway = 0
	}
	if cfg.Clock != nil {
		s.now = cfg.Clock
	}

	for _, previous := range cfg.PreviousSecrets {
		if previous = strings.TrimSpace(previous); previous != "" {
			s.keys[signingKeyID(previous)] = []byte(previous)
		}
	}
	s.keys[s.keyID] = []byte(cfg.Secret)
	return s, nil
}

// signingKeyID names a secret in the token header without revealing it.
func signingKeyID(secret string) string {
	return crypto.HashToken(secret)[:keyIDLength]
}

// SecretLength reports the size of the current signing secret in bytes.
func (s *JWTService) SecretLength() int {
	return len(s.keys[s.keyID])
}

// TTL reports the lifetime of issued access tokens.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// GenerateAccessToken signs a token for input with the current secret.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	if input.UserID == "" {
		return "", errors.New("jwt: user id is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:    input.UserID,
		SessionID: input.SessionID,
		Username:  input.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        input.SessionID,
			Subject:   input.UserID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.keys[s.keyID])
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses tokenString, picking the verification secret
// from the kid header. Tokens without a kid are checked against the current
// secret.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			kid = s.keyID
		}
		key, ok := s.keys[kid]
		if !ok {
			return nil, ErrUnknownSigningKey
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}
	return &claims, nil
}
