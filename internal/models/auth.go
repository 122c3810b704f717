package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims carries authenticated personnel identity.
type JWTClaims struct {
	PersonCode string   `json:"person_code"`
	FullName   string   `json:"full_name"`
	Roles      []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims include the given role tag.
func (c *JWTClaims) HasRole(tag RoleTag) bool {
	for _, r := range c.Roles {
		if RoleTag(r) == tag {
			return true
		}
	}
	return false
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and identity summary.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	Code        string    `json:"code"`
	FullName    string    `json:"full_name"`
	Roles       []string  `json:"roles"`
}
