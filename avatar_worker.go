package identity

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AvatarIngestionWorker uploads staged avatar files to object storage and
// patches the account record afterwards, detached from the request that
// enqueued it. Its only observable effects are the partial avatar update
// and the staged file cleanup; failures never reach the original caller.
type AvatarIngestionWorker struct {
	store    CredentialStore
	storage  ObjectStorage
	logger   Logger
	attempts int
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewAvatarIngestionWorker creates a worker with bounded retries and a
// per-attempt upload timeout.
func NewAvatarIngestionWorker(store CredentialStore, storage ObjectStorage) *AvatarIngestionWorker {
	return &AvatarIngestionWorker{
		store:    store,
		storage:  storage,
		logger:   defLogger{},
		attempts: 3,
		timeout:  60 * time.Second,
	}
}

func (w *AvatarIngestionWorker) WithLogger(logger Logger) *AvatarIngestionWorker {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// WithRetry overrides the attempt count and per-attempt timeout.
func (w *AvatarIngestionWorker) WithRetry(attempts int, timeout time.Duration) *AvatarIngestionWorker {
	if attempts > 0 {
		w.attempts = attempts
	}
	if timeout > 0 {
		w.timeout = timeout
	}
	return w
}

// Enqueue spawns the ingestion as a detached unit of work. It returns
// immediately; there is no handle, no cancellation hook, and the task is
// allowed to complete after the originating response has been sent.
func (w *AvatarIngestionWorker) Enqueue(accountID uuid.UUID, localPath string) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(accountID, localPath)
	}()
}

// Wait blocks until every enqueued task has finished. Only the shutdown
// path uses it; request handlers never do.
func (w *AvatarIngestionWorker) Wait() {
	w.wg.Wait()
}

func (w *AvatarIngestionWorker) run(accountID uuid.UUID, localPath string) {
	// The staged file goes away on every outcome, success or failure.
	defer w.cleanup(localPath)

	image, err := w.upload(localPath)
	if err != nil {
		w.logger.Error("avatar ingestion upload failed account=%s path=%s error=%v", accountID, localPath, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.store.UpdateAvatar(ctx, accountID, Avatar{
		StorageID: image.StorageID,
		URL:       image.URL,
	}); err != nil {
		w.logger.Error("avatar ingestion patch failed account=%s storage_id=%s error=%v", accountID, image.StorageID, err)
		return
	}

	w.logger.Info("avatar ingested account=%s storage_id=%s", accountID, image.StorageID)
}

func (w *AvatarIngestionWorker) upload(localPath string) (*StoredImage, error) {
	var lastErr error

	for attempt := 1; attempt <= w.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		image, err := w.storage.Upload(ctx, localPath, AvatarTransform)
		cancel()

		if err == nil {
			return image, nil
		}

		lastErr = err
		w.logger.Warn("avatar upload attempt %d/%d failed path=%s error=%v", attempt, w.attempts, localPath, err)

		if attempt < w.attempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return nil, lastErr
}

func (w *AvatarIngestionWorker) cleanup(localPath string) {
	if localPath == "" {
		return
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("failed to remove staged avatar file path=%s error=%v", localPath, err)
	}
}
