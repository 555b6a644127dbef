// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"censo/config"
	"censo/internal/domain/service"
)

const accessTokenType = "access"

// jwtService verifies HS256 access tokens signed with the shared access secret.
type jwtService struct {
	accessSecret []byte
	issuer       string // Expected iss claim; empty accepts any issuer.
}

// NewJWTService is the constructor for jwtService. The secret is only
// mandatory when bearer authentication is enabled.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	authEnabled := cfg.Auth != nil && cfg.Auth.Enabled
	if authEnabled && cfg.SecretKey.Access == "" {
		return nil, errors.New("jwt access secret must be provided")
	}

	svc := &jwtService{accessSecret: []byte(cfg.SecretKey.Access)}
	if cfg.Auth != nil {
		svc.issuer = cfg.Auth.Issuer
	}

	return svc, nil
}

// ValidateToken checks signature, expiry, issuer and token type, and resolves the
// interviewer id from the subject claim.
func (s *jwtService) ValidateToken(tokenString string) (*service.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &service.Claims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.accessSecret, nil
	}, opts...); err != nil {
		return nil, errors.Wrap(err, "invalid access token")
	}

	if claims.Type != "" && claims.Type != accessTokenType {
		return nil, errors.Errorf("unexpected token type %q", claims.Type)
	}

	interviewerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "invalid subject claim")
	}
	claims.InterviewerID = interviewerID

	return claims, nil
}
