package identity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/coursekit/go-identity"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	tokens := newTestTokens()

	account := &identity.Account{
		ID:         uuid.New(),
		Role:       identity.RoleAdmin,
		Subscribed: true,
	}

	token, err := tokens.Issue(account)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tokens.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, account.ID.String(), claims.AccountID())
	assert.Equal(t, identity.RoleAdmin, claims.Role())
	assert.True(t, claims.SubscriptionActive())
	assert.Equal(t, "test-issuer", claims.RegisteredClaims.Issuer)
	assert.NotEmpty(t, claims.RegisteredClaims.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.Expires(), time.Minute)

	id, err := claims.AccountUUID()
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)
}

func TestTokenServiceRejectsNilAccount(t *testing.T) {
	tokens := newTestTokens()

	_, err := tokens.Issue(nil)
	assert.Error(t, err)
}

func TestTokenServiceValidateFailures(t *testing.T) {
	tokens := newTestTokens()

	t.Run("Garbage token", func(t *testing.T) {
		_, err := tokens.Validate("garbage")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed")
	})

	t.Run("Tampered token", func(t *testing.T) {
		token, err := tokens.Issue(&identity.Account{ID: uuid.New(), Role: identity.RoleLearner})
		require.NoError(t, err)

		_, err = tokens.Validate(token + "x")
		assert.Error(t, err)
	})

	t.Run("Wrong signing key", func(t *testing.T) {
		other := identity.NewTokenService([]byte("other-key"), 24, "test-issuer", []string{"test:audience"})
		token, err := other.Issue(&identity.Account{ID: uuid.New(), Role: identity.RoleLearner})
		require.NoError(t, err)

		_, err = tokens.Validate(token)
		assert.Error(t, err)
	})

	t.Run("Wrong issuer", func(t *testing.T) {
		other := identity.NewTokenService([]byte("test-signing-key"), 24, "someone-else", []string{"test:audience"})
		token, err := other.Issue(&identity.Account{ID: uuid.New(), Role: identity.RoleLearner})
		require.NoError(t, err)

		_, err = tokens.Validate(token)
		assert.Error(t, err)
	})

	t.Run("Wrong audience", func(t *testing.T) {
		other := identity.NewTokenService([]byte("test-signing-key"), 24, "test-issuer", []string{"other:audience"})
		token, err := other.Issue(&identity.Account{ID: uuid.New(), Role: identity.RoleLearner})
		require.NoError(t, err)

		_, err = tokens.Validate(token)
		assert.Error(t, err)
	})

	t.Run("Expired token", func(t *testing.T) {
		expired := identity.NewTokenService([]byte("test-signing-key"), -1, "test-issuer", []string{"test:audience"})
		token, err := expired.Issue(&identity.Account{ID: uuid.New(), Role: identity.RoleLearner})
		require.NoError(t, err)

		_, err = tokens.Validate(token)
		assert.ErrorIs(t, err, identity.ErrSessionExpired)
	})
}
