package identity_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	identity "github.com/coursekit/go-identity"
)

func stageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.jpg")
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o600))
	return path
}

func seedAccount(t *testing.T, store *memoryStore) *identity.Account {
	t.Helper()
	account, err := store.Create(context.Background(), &identity.Account{
		FullName:     "Worker Test",
		Email:        "worker@example.com",
		PasswordHash: "hashed$password123",
	})
	require.NoError(t, err)
	return account
}

func TestAvatarIngestionWorker(t *testing.T) {
	t.Run("Successful ingestion patches avatar and removes file", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store)
		staged := stageFile(t)

		storage := new(MockStorage)
		storage.On("Upload", mock.Anything, staged, identity.AvatarTransform).
			Return(&identity.StoredImage{StorageID: "lms/done", URL: "https://cdn.test/lms/done"}, nil).Once()

		worker := identity.NewAvatarIngestionWorker(store, storage)
		worker.Enqueue(account.ID, staged)
		worker.Wait()

		stored := store.raw(account.ID)
		assert.Equal(t, "lms/done", stored.AvatarStorageID)
		assert.Equal(t, "https://cdn.test/lms/done", stored.AvatarURL)
		assert.NoFileExists(t, staged)
		storage.AssertExpectations(t)
	})

	t.Run("Failed ingestion leaves placeholder and removes file", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store)
		staged := stageFile(t)

		storage := new(MockStorage)
		storage.On("Upload", mock.Anything, staged, identity.AvatarTransform).
			Return(nil, goerrors.New("bucket down", goerrors.CategoryInternal)).Once()

		worker := identity.NewAvatarIngestionWorker(store, storage).
			WithRetry(1, time.Second)
		worker.Enqueue(account.ID, staged)
		worker.Wait()

		stored := store.raw(account.ID)
		assert.Equal(t, identity.DefaultAvatarURL, stored.AvatarURL)
		assert.Equal(t, "worker@example.com", stored.AvatarStorageID)
		assert.NoFileExists(t, staged)
		storage.AssertExpectations(t)
	})

	t.Run("Retries until an attempt succeeds", func(t *testing.T) {
		store := newMemoryStore()
		account := seedAccount(t, store)
		staged := stageFile(t)

		storage := new(MockStorage)
		storage.On("Upload", mock.Anything, staged, identity.AvatarTransform).
			Return(nil, goerrors.New("transient", goerrors.CategoryInternal)).Once()
		storage.On("Upload", mock.Anything, staged, identity.AvatarTransform).
			Return(&identity.StoredImage{StorageID: "lms/retry", URL: "https://cdn.test/lms/retry"}, nil).Once()

		worker := identity.NewAvatarIngestionWorker(store, storage).
			WithRetry(2, time.Second)
		worker.Enqueue(account.ID, staged)
		worker.Wait()

		stored := store.raw(account.ID)
		assert.Equal(t, "lms/retry", stored.AvatarStorageID)
		storage.AssertExpectations(t)
	})
}
