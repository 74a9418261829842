// Package auth verifies caller access tokens and resolves identities.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/quorumhq/petitions/internal/platform/errors"
	"github.com/quorumhq/petitions/internal/platform/requestctx"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Secret string `env:"PETITIONS_JWT_SECRET"`
	Issuer string `env:"PETITIONS_JWT_ISSUER"`
}

// Config defines how access tokens are verified.
type Config struct {
	Issuer string
	Secret []byte
	Now    func() time.Time
}

// accessClaims is the internal claims type used for JWT parsing.
type accessClaims struct {
	jwt.RegisteredClaims
	Role       string   `json:"role"`
	Committees []string `json:"committees"`
}

// LoadConfigFromEnv reads token verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse auth env: %w", err)
	}
	secret := strings.TrimSpace(raw.Secret)
	if secret == "" {
		return Config{}, fmt.Errorf("PETITIONS_JWT_SECRET is required")
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer: strings.TrimSpace(raw.Issuer),
		Secret: []byte(secret),
		Now:    now,
	}, nil
}

// VerifyToken parses an access token and resolves the caller identity.
func VerifyToken(token string, cfg Config) (requestctx.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return requestctx.Identity{}, apperrors.New(apperrors.CodeIdentityRequired, "access token is required")
	}
	if len(cfg.Secret) == 0 {
		return requestctx.Identity{}, errors.New("token verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, options...)
	if err != nil {
		return requestctx.Identity{}, apperrors.Wrap(apperrors.CodeIdentityRequired, "access token is invalid", err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return requestctx.Identity{}, apperrors.New(apperrors.CodeIdentityRequired, "access token has no subject")
	}
	role, ok := parseRole(parsed.Role)
	if !ok {
		return requestctx.Identity{}, apperrors.WithMetadata(apperrors.CodeIdentityRequired, "access token has an unknown role",
			map[string]string{"role": parsed.Role})
	}

	return requestctx.Identity{
		UserID:       parsed.Subject,
		Role:         role,
		CommitteeIDs: parsed.Committees,
	}, nil
}

// MintToken signs an access token for the given identity. Used by operator
// tooling and tests; the service itself only verifies.
func MintToken(identity requestctx.Identity, ttl time.Duration, cfg Config) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", errors.New("token signer is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	now := cfg.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:       string(identity.Role),
		Committees: identity.CommitteeIDs,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func parseRole(value string) (requestctx.Role, bool) {
	switch requestctx.Role(strings.ToLower(strings.TrimSpace(value))) {
	case requestctx.RoleDelegate:
		return requestctx.RoleDelegate, true
	case requestctx.RoleStaff:
		return requestctx.RoleStaff, true
	case requestctx.RoleAdmin:
		return requestctx.RoleAdmin, true
	default:
		return "", false
	}
}
