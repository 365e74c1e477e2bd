package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload of access tokens issued by the account service.
type JWTClaims struct {
	UserID           AccountID `json:"user_id"`
	Role             UserRole  `json:"role"`
	Email            string    `json:"email,omitempty"`
	FullName         string    `json:"full_name,omitempty"`
	OrganizationName string    `json:"organization_name,omitempty"`
	jwt.RegisteredClaims
}

// OwnerID returns the owner reference stored on media collections.
func (c *JWTClaims) OwnerID() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return string(c.UserID)
	}
	return c.Subject
}

// HasRole reports whether the claims carry one of roles.
func (c *JWTClaims) HasRole(roles ...UserRole) bool {
	if c == nil {
		return false
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
