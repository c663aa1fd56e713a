package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the self-contained session artifact payload: everything
// the authorization guard needs without a server-side session store.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID        string      `json:"uid,omitempty"`
	UserRole   AccountRole `json:"role,omitempty"`
	Subscribed bool        `json:"sub_active,omitempty"`
}

// AccountID returns the account id carried by the claims.
func (c *SessionClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// AccountUUID parses the account id.
func (c *SessionClaims) AccountUUID() (uuid.UUID, error) {
	return uuid.Parse(c.AccountID())
}

// Role returns the global role embedded at issuance.
func (c *SessionClaims) Role() AccountRole {
	return c.UserRole
}

// SubscriptionActive reports the subscription flag as of issuance.
func (c *SessionClaims) SubscriptionActive() bool {
	return c.Subscribed
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAtTime returns the issue time
func (c *SessionClaims) IssuedAtTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
