// Package auth verifies the bearer tokens issued by the identity provider.
// The hub stores no credentials; a token's subject is the player id.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/gaminghub/internal/dependencies/clock"
	"github.com/mcoot/gaminghub/internal/model"
)

// Errors
var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity is the verified caller
type Identity struct {
	PlayerID  model.PlayerID
	ExpiresAt time.Time
}

// Config holds configuration for the auth service
type Config struct {
	// Secret is the identity provider's HS256 signing secret
	Secret string
	// Issuer and Audience are checked when set
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		Audience: "authenticated",
		Leeway:   30 * time.Second,
	}
}

// Service verifies and, for tooling, issues tokens
type Service struct {
	key    []byte
	cfg    Config
	clock  clock.Clock
	parser *jwt.Parser
}

// New creates a new auth Service
func New(clock clock.Clock, cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Service{
		key:    []byte(cfg.Secret),
		cfg:    cfg,
		clock:  clock,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify checks the token signature and claims and returns the caller
func (s *Service) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	id := &Identity{PlayerID: model.PlayerID(claims.Subject)}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Issue signs a token for the player, valid for ttl.
// Production tokens come from the identity provider; this serves local tooling and tests.
func (s *Service) Issue(playerID model.PlayerID, ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(playerID),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}
