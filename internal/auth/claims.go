package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// PropertyIDs lists every property the owner may answer for; per-route
// authorization checks membership, not a role.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string    `json:"user_id"`
	PropertyIDs []string  `json:"property_ids"`
	TokenType   TokenType `json:"token_type"`
}

// HasProperty reports whether the claims grant access to propertyID.
func (c Claims) HasProperty(propertyID string) bool {
	for _, id := range c.PropertyIDs {
		if id == propertyID {
			return true
		}
	}
	return false
}
