package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore is the narrow persistence surface the identity service
// needs. The account record is owned exclusively by this store; callers
// re-fetch per operation and never cache across requests.
type CredentialStore interface {
	ByID(ctx context.Context, id uuid.UUID) (*Account, error)
	ByEmail(ctx context.Context, email string) (*Account, error)
	// ByResetTokenHash matches a pending reset by hash AND a still-future
	// expiry in one query; a miss is indistinguishable from expiry.
	ByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*Account, error)
	Create(ctx context.Context, record *Account) (*Account, error)
	// UpdateProfile writes non-zero fields of record only.
	UpdateProfile(ctx context.Context, record *Account) (*Account, error)
	// UpdateAvatar patches the avatar columns and nothing else. The
	// background worker relies on this staying a partial update.
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatar Avatar) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetResetState(ctx context.Context, id uuid.UUID, state ResetState) error
	ClearResetState(ctx context.Context, id uuid.UUID) error
	// CompletePasswordReset swaps the credential and clears the reset pair
	// in a single statement.
	CompletePasswordReset(ctx context.Context, id uuid.UUID, passwordHash string) error
}

var updateAvatarSQL = `UPDATE "accounts" AS "acc"
SET
	"avatar_storage_id" = ?,
	"avatar_url" = ?,
	"updated_at" = current_timestamp
WHERE
	"acc"."id" = ?;`

var updatePasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"updated_at" = current_timestamp
WHERE
	"acc"."id" = ?;`

var setResetStateSQL = `UPDATE "accounts" AS "acc"
SET
	"reset_token_hash" = ?,
	"reset_expires_at" = ?,
	"updated_at" = current_timestamp
WHERE
	"acc"."id" = ?;`

var clearResetStateSQL = `UPDATE "accounts" AS "acc"
SET
	"reset_token_hash" = NULL,
	"reset_expires_at" = NULL,
	"updated_at" = current_timestamp
WHERE
	"acc"."id" = ?;`

var completeResetSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"reset_token_hash" = NULL,
	"reset_expires_at" = NULL,
	"updated_at" = current_timestamp
WHERE
	"acc"."id" = ?;`

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ CredentialStore = (*accounts)(nil)

// NewCredentialStore returns the bun-backed CredentialStore. The unique
// index on email comes from the model tags; its violation error is the
// authoritative source of the duplicate-email CONFLICT.
func NewCredentialStore(db *bun.DB) CredentialStore {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) ByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	record := &Account{}

	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account by id")
	}

	return record, nil
}

func (a *accounts) ByEmail(ctx context.Context, email string) (*Account, error) {
	record := &Account{}

	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account by email")
	}

	return record, nil
}

func (a *accounts) ByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*Account, error) {
	record := &Account{}

	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.reset_token_hash = ?", tokenHash).
		Where("?TableAlias.reset_expires_at > ?", now).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrResetTokenInvalid
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account by reset token")
	}

	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	prepareAccountDefaults(record)

	created, err := a.Repository.CreateTx(ctx, a.db, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "could not create account")
	}

	return created, nil
}

func (a *accounts) UpdateProfile(ctx context.Context, record *Account) (*Account, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, errors.New("profile update requires an account id", errors.CategoryBadInput)
	}

	_, err := a.Repository.UpdateTx(ctx, a.db, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateRawProcessor(func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.OmitZero()
		}),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update account profile")
	}

	// Re-fetch so callers get the full record, not just the patched columns.
	return a.ByID(ctx, record.ID)
}

func (a *accounts) UpdateAvatar(ctx context.Context, id uuid.UUID, avatar Avatar) error {
	_, err := a.db.NewRaw(updateAvatarSQL, avatar.StorageID, avatar.URL, id.String()).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to patch account avatar")
	}
	return nil
}

func (a *accounts) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := a.db.NewRaw(updatePasswordSQL, passwordHash, id.String()).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update account password")
	}
	return nil
}

func (a *accounts) SetResetState(ctx context.Context, id uuid.UUID, state ResetState) error {
	_, err := a.db.NewRaw(setResetStateSQL, state.TokenHash, state.ExpiresAt, id.String()).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to persist reset state")
	}
	return nil
}

func (a *accounts) ClearResetState(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewRaw(clearResetStateSQL, id.String()).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to clear reset state")
	}
	return nil
}

func (a *accounts) CompletePasswordReset(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := a.db.NewRaw(completeResetSQL, passwordHash, id.String()).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to finalize password reset")
	}
	return nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		if id, err := hashid.NewUUID(record.Email); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}

	if record.Role == "" {
		record.Role = RoleLearner
	}

	if record.AvatarStorageID == "" || record.AvatarURL == "" {
		record.SetAvatar(PlaceholderAvatar(record.Email))
	}
}
