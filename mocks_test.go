package identity_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	identity "github.com/coursekit/go-identity"
)

// memoryStore is an in-memory CredentialStore with the same observable
// behavior as the bun-backed one: copies in, copies out, unique email.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*identity.Account
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[uuid.UUID]*identity.Account{}}
}

func clone(a *identity.Account) *identity.Account {
	cp := *a
	if a.ResetExpiresAt != nil {
		t := *a.ResetExpiresAt
		cp.ResetExpiresAt = &t
	}
	return &cp
}

func (s *memoryStore) ByID(ctx context.Context, id uuid.UUID) (*identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accounts[id]; ok {
		return clone(a), nil
	}
	return nil, identity.ErrAccountNotFound
}

func (s *memoryStore) ByEmail(ctx context.Context, email string) (*identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = identity.NormalizeEmail(email)
	for _, a := range s.accounts {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, identity.ErrAccountNotFound
}

func (s *memoryStore) ByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.ResetTokenHash == tokenHash && a.ResetExpiresAt != nil && a.ResetExpiresAt.After(now) {
			return clone(a), nil
		}
	}
	return nil, identity.ErrResetTokenInvalid
}

func (s *memoryStore) Create(ctx context.Context, record *identity.Account) (*identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := identity.NormalizeEmail(record.Email)
	for _, a := range s.accounts {
		if a.Email == email {
			return nil, identity.ErrAccountExists
		}
	}

	cp := clone(record)
	cp.Email = email
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.Role == "" {
		cp.Role = identity.RoleLearner
	}
	if cp.AvatarStorageID == "" || cp.AvatarURL == "" {
		cp.SetAvatar(identity.PlaceholderAvatar(email))
	}

	s.accounts[cp.ID] = cp
	return clone(cp), nil
}

func (s *memoryStore) UpdateProfile(ctx context.Context, record *identity.Account) (*identity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[record.ID]
	if !ok {
		return nil, identity.ErrAccountNotFound
	}

	if record.FullName != "" {
		a.FullName = record.FullName
	}
	if record.Email != "" {
		a.Email = identity.NormalizeEmail(record.Email)
	}
	if record.AvatarStorageID != "" {
		a.AvatarStorageID = record.AvatarStorageID
	}
	if record.AvatarURL != "" {
		a.AvatarURL = record.AvatarURL
	}

	return clone(a), nil
}

func (s *memoryStore) UpdateAvatar(ctx context.Context, id uuid.UUID, avatar identity.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return identity.ErrAccountNotFound
	}
	a.SetAvatar(avatar)
	return nil
}

func (s *memoryStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return identity.ErrAccountNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (s *memoryStore) SetResetState(ctx context.Context, id uuid.UUID, state identity.ResetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return identity.ErrAccountNotFound
	}
	exp := state.ExpiresAt
	a.ResetTokenHash = state.TokenHash
	a.ResetExpiresAt = &exp
	return nil
}

func (s *memoryStore) ClearResetState(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return identity.ErrAccountNotFound
	}
	a.ResetTokenHash = ""
	a.ResetExpiresAt = nil
	return nil
}

func (s *memoryStore) CompletePasswordReset(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return identity.ErrAccountNotFound
	}
	a.PasswordHash = passwordHash
	a.ResetTokenHash = ""
	a.ResetExpiresAt = nil
	return nil
}

// raw returns the stored record without the copy, for assertions on
// persisted state.
func (s *memoryStore) raw(id uuid.UUID) *identity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

var _ identity.CredentialStore = (*memoryStore)(nil)

// plainHasher avoids bcrypt's cost in flow tests.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", identity.ErrNoEmptyString
	}
	return "hashed$" + password, nil
}

func (plainHasher) ComparePasswordAndHash(password, hash string) error {
	if hash != "hashed$"+password {
		return identity.ErrMismatchedHashAndPassword
	}
	return nil
}

// recordLogger captures log lines for assertions.
type recordLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordLogger) log(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordLogger) Debug(format string, args ...any) { l.log(format, args...) }
func (l *recordLogger) Info(format string, args ...any)  { l.log(format, args...) }
func (l *recordLogger) Warn(format string, args ...any)  { l.log(format, args...) }
func (l *recordLogger) Error(format string, args ...any) { l.log(format, args...) }

func (l *recordLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// MockMailer implements identity.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.Error(0)
}

// MockStorage implements identity.ObjectStorage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Upload(ctx context.Context, localPath string, opts identity.UploadOptions) (*identity.StoredImage, error) {
	args := m.Called(ctx, localPath, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.StoredImage), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, storageID string) error {
	args := m.Called(ctx, storageID)
	return args.Error(0)
}
