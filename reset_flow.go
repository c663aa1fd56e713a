package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultResetTokenTTL bounds how long an issued reset token stays valid.
const DefaultResetTokenTTL = 15 * time.Minute

// ResetState is the transient pair persisted on an account while a password
// reset is pending. Only the one-way hash is ever durable; the plaintext
// token exists in transit only.
type ResetState struct {
	TokenHash string
	ExpiresAt time.Time
}

// ResetTokenFlow generates and validates single-use, expiring password
// reset tokens. Per-account state machine:
// NONE -> PENDING -> (CONSUMED | EXPIRED | INVALIDATED) -> NONE.
type ResetTokenFlow struct {
	ttl time.Duration
	now func() time.Time
}

// NewResetTokenFlow creates a flow with the given TTL; zero means
// DefaultResetTokenTTL.
func NewResetTokenFlow(ttl time.Duration) *ResetTokenFlow {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenFlow{
		ttl: ttl,
		now: time.Now,
	}
}

// WithClock overrides the time source, used by tests to force expiry.
func (f *ResetTokenFlow) WithClock(now func() time.Time) *ResetTokenFlow {
	if now != nil {
		f.now = now
	}
	return f
}

// Issue generates a cryptographically random token. The plaintext goes back
// to the caller for emailing; only its hash and the absolute expiry are
// meant to be persisted.
func (f *ResetTokenFlow) Issue() (string, ResetState, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", ResetState{}, errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}

	plaintext := hex.EncodeToString(buf)

	return plaintext, ResetState{
		TokenHash: HashResetToken(plaintext),
		ExpiresAt: f.now().Add(f.ttl),
	}, nil
}

// Validate hashes the presented token and checks it against a pending
// state. Any failure is the single combined invalid-or-expired outcome;
// callers never learn which half failed.
func (f *ResetTokenFlow) Validate(raw string, state ResetState) error {
	if raw == "" || state.TokenHash == "" {
		return ErrResetTokenInvalid
	}

	if HashResetToken(raw) != state.TokenHash {
		return ErrResetTokenInvalid
	}

	if !state.ExpiresAt.After(f.now()) {
		return ErrResetTokenInvalid
	}

	return nil
}

// HashResetToken is the one-way function shared by issuance and lookup.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
