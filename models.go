package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleLearner is the default role assigned at registration
	RoleLearner AccountRole = "learner"
	// RoleAdmin can manage courses and bypasses subscription checks
	RoleAdmin AccountRole = "admin"
)

// DefaultAvatarURL is the well-known placeholder every account starts with.
const DefaultAvatarURL = "https://cdn.coursekit.dev/lms/avatar_placeholder.jpg"

// Account is the account model
type Account struct {
	bun.BaseModel   `bun:"table:accounts,alias:acc"`
	ID              uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role            AccountRole `bun:"role,notnull" json:"role,omitempty"`
	FullName        string      `bun:"full_name,notnull" json:"full_name,omitempty"`
	Email           string      `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash    string      `bun:"password_hash,notnull" json:"-"`
	Subscribed      bool        `bun:"subscription_active" json:"subscription_active"`
	AvatarStorageID string      `bun:"avatar_storage_id,notnull" json:"avatar_storage_id,omitempty"`
	AvatarURL       string      `bun:"avatar_url,notnull" json:"avatar_url,omitempty"`
	ResetTokenHash  string      `bun:"reset_token_hash,nullzero" json:"-"`
	ResetExpiresAt  *time.Time  `bun:"reset_expires_at,nullzero" json:"-"`
	CreatedAt       *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Avatar is the stored image reference pair. Placeholder counts as
// populated; the pair is never empty on a persisted account.
type Avatar struct {
	StorageID string `json:"storage_id"`
	URL       string `json:"url"`
}

// Avatar returns the account's current avatar reference.
func (a *Account) Avatar() Avatar {
	return Avatar{StorageID: a.AvatarStorageID, URL: a.AvatarURL}
}

// SetAvatar replaces the avatar reference pair.
func (a *Account) SetAvatar(av Avatar) *Account {
	a.AvatarStorageID = av.StorageID
	a.AvatarURL = av.URL
	return a
}

// HasPendingReset reports whether a reset is in flight. Both fields are
// present or both absent; anything else is a persistence bug.
func (a *Account) HasPendingReset() bool {
	return a.ResetTokenHash != "" && a.ResetExpiresAt != nil
}

// Sanitized returns a copy safe to hand to the HTTP boundary: credential
// and reset state stripped.
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.PasswordHash = ""
	out.ResetTokenHash = ""
	out.ResetExpiresAt = nil
	return &out
}

// NormalizeEmail lowercases and trims an email so uniqueness and lookups
// agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PlaceholderAvatar is the avatar assigned at creation, before any
// user-supplied image is processed. The storage id mirrors the email so the
// pair is always fully populated.
func PlaceholderAvatar(email string) Avatar {
	return Avatar{
		StorageID: NormalizeEmail(email),
		URL:       DefaultAvatarURL,
	}
}
