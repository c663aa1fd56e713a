package identity

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// IdentityService orchestrates the account lifecycle operations. It talks
// to the credential store and token service synchronously to produce the
// caller-visible result, and hands slow avatar work to the detached worker.
type IdentityService struct {
	store    CredentialStore
	tokens   TokenService
	hasher   PasswordAuthenticator
	resets   *ResetTokenFlow
	mailer   Mailer
	storage  ObjectStorage
	worker   *AvatarIngestionWorker
	logger   Logger
	resetURL string
}

// RegisterInput is the validated register command.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	// ImagePath is the locally staged upload, empty when no image was
	// attached.
	ImagePath string
}

// ProfileUpdateInput is the validated profile update command.
type ProfileUpdateInput struct {
	FullName  string
	ImagePath string
}

// NewIdentityService wires the mandatory collaborators; optional ones are
// attached with the With* setters.
func NewIdentityService(store CredentialStore, tokens TokenService) *IdentityService {
	return &IdentityService{
		store:  store,
		tokens: tokens,
		hasher: BcryptHasher{},
		resets: NewResetTokenFlow(0),
		logger: defLogger{},
	}
}

func (s *IdentityService) WithLogger(logger Logger) *IdentityService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *IdentityService) WithHasher(hasher PasswordAuthenticator) *IdentityService {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

func (s *IdentityService) WithResetFlow(flow *ResetTokenFlow) *IdentityService {
	if flow != nil {
		s.resets = flow
	}
	return s
}

func (s *IdentityService) WithMailer(mailer Mailer) *IdentityService {
	s.mailer = mailer
	return s
}

func (s *IdentityService) WithObjectStorage(storage ObjectStorage) *IdentityService {
	s.storage = storage
	return s
}

func (s *IdentityService) WithAvatarWorker(worker *AvatarIngestionWorker) *IdentityService {
	s.worker = worker
	return s
}

// WithResetURL sets the frontend base used to build reset links, e.g.
// https://app.example.com/reset-password.
func (s *IdentityService) WithResetURL(base string) *IdentityService {
	s.resetURL = base
	return s
}

// Register creates an account with a placeholder avatar and a hashed
// credential, issues a session token, and enqueues the avatar ingestion
// when an image was attached. The image outcome is never part of the
// response.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*Account, string, error) {
	if input.FullName == "" || input.Email == "" || input.Password == "" {
		return nil, "", errors.New("all fields are required", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	email := NormalizeEmail(input.Email)

	// Fast-path existence check; the store's unique index remains the
	// authoritative source of CONFLICT when two registrations race.
	if _, err := s.store.ByEmail(ctx, email); err == nil {
		return nil, "", ErrAccountExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to check for existing account")
	}

	hash, err := s.hasher.HashPassword(input.Password)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, "", richErr
		}
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		FullName:     input.FullName,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleLearner,
	}
	account.SetAvatar(PlaceholderAvatar(email))

	created, err := s.store.Create(ctx, account)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(created)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to issue session token")
	}

	if input.ImagePath != "" && s.worker != nil {
		// Fire and forget; the response goes out with the placeholder and
		// the real avatar becomes visible whenever the patch lands.
		s.worker.Enqueue(created.ID, input.ImagePath)
	}

	return created.Sanitized(), token, nil
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password produce the identical outcome.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*Account, string, error) {
	if email == "" || password == "" {
		return nil, "", errors.New("email and password are required", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	account, err := s.store.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to load account for login")
	}

	if err := s.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to issue session token")
	}

	return account.Sanitized(), token, nil
}

// Logout is client-side only: tokens are stateless and there is no
// server-side revocation list, so discarding the cookie is the whole
// operation. The method exists so the boundary has one place to hang
// audit logging on.
func (s *IdentityService) Logout(claims *SessionClaims) {
	if claims != nil {
		s.logger.Info("logout account=%s", claims.AccountID())
	}
}

// Profile returns the sanitized account for an authenticated caller.
func (s *IdentityService) Profile(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	account, err := s.store.ByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.Sanitized(), nil
}

// RequestPasswordReset issues a reset token, persists its hash and expiry
// on the account, and emails the plaintext link. A failed send rolls the
// reset state back so no live but unreachable token survives.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	if email == "" {
		return errors.New("email is required", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	if s.mailer == nil {
		return errors.New("no mailer configured for password reset", errors.CategoryInternal)
	}

	account, err := s.store.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}

	plaintext, state, err := s.resets.Issue()
	if err != nil {
		return err
	}

	if err := s.store.SetResetState(ctx, account.ID, state); err != nil {
		return err
	}

	resetLink := fmt.Sprintf("%s/%s", s.resetURL, plaintext)
	subject := "Reset Password"
	body := fmt.Sprintf(
		`You can reset your password by clicking <a href=%q target="_blank">Reset your password</a>.<br/>If the link does not work, copy this address into a new tab: %s<br/>If you did not request this, kindly ignore.`,
		resetLink, resetLink,
	)

	if err := s.mailer.Send(ctx, account.Email, subject, body); err != nil {
		// A token nobody received must not stay redeemable.
		if rbErr := s.store.ClearResetState(ctx, account.ID); rbErr != nil {
			s.logger.Error("failed to roll back reset state account=%s error=%v", account.ID, rbErr)
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to send password reset email")
	}

	s.logger.Info("password reset requested account=%s", account.ID)
	return nil
}

// CompleteReset redeems a reset token: one combined hash+expiry lookup, new
// credential, reset state cleared. A second redemption of the same token
// fails exactly like an unknown one.
func (s *IdentityService) CompleteReset(ctx context.Context, rawToken, newPassword string) error {
	if newPassword == "" {
		return errors.New("password is required", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	account, err := s.store.ByResetTokenHash(ctx, HashResetToken(rawToken), s.resets.now())
	if err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			return ErrResetTokenInvalid
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to match reset token")
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return richErr
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to hash new password")
	}

	if err := s.store.CompletePasswordReset(ctx, account.ID, hash); err != nil {
		return err
	}

	s.logger.Info("password reset completed account=%s", account.ID)
	return nil
}

// ChangePassword replaces the credential after verifying the old one.
func (s *IdentityService) ChangePassword(ctx context.Context, accountID uuid.UUID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return errors.New("old password and new password are required", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	account, err := s.store.ByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := s.hasher.ComparePasswordAndHash(oldPassword, account.PasswordHash); err != nil {
		return errors.New("invalid old password", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return richErr
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to hash new password")
	}

	return s.store.UpdatePassword(ctx, account.ID, hash)
}

// UpdateProfile applies allowed field changes. Unlike registration the
// avatar upload here is synchronous: the caller waits, sees failures, and
// gets the new avatar in the response. The previous stored image is
// deleted best-effort only after the new one is safely up.
func (s *IdentityService) UpdateProfile(ctx context.Context, accountID uuid.UUID, input ProfileUpdateInput) (*Account, error) {
	account, err := s.store.ByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Nothing to change is a valid request, not a store round trip.
	if input.FullName == "" && input.ImagePath == "" {
		return account.Sanitized(), nil
	}

	patch := &Account{ID: account.ID}

	if input.FullName != "" {
		patch.FullName = input.FullName
	}

	if input.ImagePath != "" {
		if s.storage == nil {
			return nil, errors.New("no object storage configured for profile images", errors.CategoryInternal)
		}

		image, err := s.storage.Upload(ctx, input.ImagePath, AvatarTransform)
		if err != nil {
			// Old avatar stays untouched; the whole update aborts.
			return nil, errors.Wrap(err, errors.CategoryInternal, "file not uploaded, please try again")
		}

		if prev := account.AvatarStorageID; prev != "" && prev != NormalizeEmail(account.Email) {
			if err := s.storage.Delete(ctx, prev); err != nil {
				s.logger.Warn("failed to delete previous avatar storage_id=%s error=%v", prev, err)
			}
		}

		s.removeStagedFile(input.ImagePath)
		patch.SetAvatar(Avatar{StorageID: image.StorageID, URL: image.URL})
	}

	updated, err := s.store.UpdateProfile(ctx, patch)
	if err != nil {
		return nil, err
	}

	return updated.Sanitized(), nil
}

func (s *IdentityService) removeStagedFile(path string) {
	if err := removeFile(path); err != nil {
		s.logger.Warn("failed to remove staged file path=%s error=%v", path, err)
	}
}
