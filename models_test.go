package identity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	identity "github.com/coursekit/go-identity"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", identity.NormalizeEmail("  User@Example.COM "))
	assert.Equal(t, "user@example.com", identity.NormalizeEmail("user@example.com"))
	assert.Equal(t, "", identity.NormalizeEmail("   "))
}

func TestPlaceholderAvatar(t *testing.T) {
	av := identity.PlaceholderAvatar("User@Example.com")

	assert.Equal(t, "user@example.com", av.StorageID)
	assert.Equal(t, identity.DefaultAvatarURL, av.URL)
}

func TestAccountSanitized(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute)
	account := &identity.Account{
		ID:             uuid.New(),
		FullName:       "Ada Lovelace",
		Email:          "ada@example.com",
		PasswordHash:   "secret-hash",
		ResetTokenHash: "reset-hash",
		ResetExpiresAt: &exp,
	}

	out := account.Sanitized()

	assert.Empty(t, out.PasswordHash)
	assert.Empty(t, out.ResetTokenHash)
	assert.Nil(t, out.ResetExpiresAt)
	assert.Equal(t, account.ID, out.ID)
	assert.Equal(t, "ada@example.com", out.Email)

	// The original record stays intact.
	assert.Equal(t, "secret-hash", account.PasswordHash)
	assert.True(t, account.HasPendingReset())

	var nilAccount *identity.Account
	assert.Nil(t, nilAccount.Sanitized())
}

func TestHasPendingReset(t *testing.T) {
	account := &identity.Account{}
	assert.False(t, account.HasPendingReset())

	exp := time.Now()
	account.ResetTokenHash = "hash"
	assert.False(t, account.HasPendingReset())

	account.ResetExpiresAt = &exp
	assert.True(t, account.HasPendingReset())
}

func TestAvatarAccessors(t *testing.T) {
	account := &identity.Account{}
	account.SetAvatar(identity.Avatar{StorageID: "lms/a", URL: "https://cdn.test/lms/a"})

	av := account.Avatar()
	assert.Equal(t, "lms/a", av.StorageID)
	assert.Equal(t, "https://cdn.test/lms/a", av.URL)
}

func TestParseRole(t *testing.T) {
	role, ok := identity.ParseRole("Admin")
	assert.True(t, ok)
	assert.Equal(t, identity.RoleAdmin, role)

	role, ok = identity.ParseRole("learner")
	assert.True(t, ok)
	assert.Equal(t, identity.RoleLearner, role)

	_, ok = identity.ParseRole("superuser")
	assert.False(t, ok)
}

func TestRoleIn(t *testing.T) {
	assert.True(t, identity.RoleIn(identity.RoleAdmin, identity.RoleLearner, identity.RoleAdmin))
	assert.False(t, identity.RoleIn(identity.RoleLearner, identity.RoleAdmin))
	assert.False(t, identity.RoleIn(identity.RoleLearner))
}
