package service

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleInterviewer is the role the parish session service grants to census field staff.
const RoleInterviewer = "interviewer"

// Claims are the claims of an interviewer access token. InterviewerID is parsed from sub.
type Claims struct {
	InterviewerID uuid.UUID `json:"-"`
	Roles         []string  `json:"roles,omitempty"`
	Type          string    `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// TokenService validates access tokens issued by the parish session service.
type TokenService interface {
	ValidateToken(tokenString string) (*Claims, error)
}
