package identity

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// UploadOptions are transform hints passed through to the object storage
// collaborator. The storage service (or a CDN in front of it) applies them;
// this package only carries them.
type UploadOptions struct {
	Folder  string
	Width   int
	Height  int
	Crop    string
	Gravity string
}

// AvatarTransform is the transform profile applied to every avatar upload.
var AvatarTransform = UploadOptions{
	Folder:  "lms",
	Width:   250,
	Height:  250,
	Crop:    "fill",
	Gravity: "faces",
}

// StoredImage is the reference pair returned by the object storage
// collaborator after a successful upload.
type StoredImage struct {
	StorageID string `json:"storage_id"`
	URL       string `json:"url"`
}

// ObjectStorage uploads locally staged files and deletes stored objects.
type ObjectStorage interface {
	Upload(ctx context.Context, localPath string, opts UploadOptions) (*StoredImage, error)
	Delete(ctx context.Context, storageID string) error
}

// Mailer delivers transactional email. Implementations live outside this
// package; mailer/smtp ships a plain SMTP one.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
