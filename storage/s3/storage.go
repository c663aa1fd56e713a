// Package s3 provides an object storage backend for profile images on any
// S3-compatible service (AWS, MinIO, DigitalOcean Spaces).
package s3

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	identity "github.com/coursekit/go-identity"
)

// Config holds the connection settings for the S3-compatible backend.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// BaseEndpoint overrides the AWS endpoint, e.g. http://127.0.0.1:9000
	// for a local MinIO.
	BaseEndpoint string
	// PublicBaseURL is the address clients fetch objects from; object keys
	// are appended to it to build the stored URL.
	PublicBaseURL string
}

// Storage implements identity.ObjectStorage on top of an S3 bucket.
type Storage struct {
	client        *awss3.Client
	bucket        string
	publicBaseURL string
}

// New builds the S3 client. Static credentials keep the setup portable
// across MinIO and real AWS.
func New(ctx context.Context, conf Config) (*Storage, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(conf.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			conf.AccessKey,
			conf.SecretKey,
			"",
		)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load object storage config")
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if conf.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(conf.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &Storage{
		client:        client,
		bucket:        conf.Bucket,
		publicBaseURL: strings.TrimRight(conf.PublicBaseURL, "/"),
	}, nil
}

// Upload pushes a staged local file into the bucket and returns its storage
// identity. The transform options only influence the key layout here; the
// CDN in front of the bucket applies the sizing.
func (s *Storage) Upload(ctx context.Context, localPath string, opts identity.UploadOptions) (*identity.StoredImage, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open staged file")
	}
	defer file.Close()

	key := objectKey(opts.Folder, localPath)

	input := &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	}

	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to upload object").
			WithMetadata(map[string]any{"key": key})
	}

	return &identity.StoredImage{
		StorageID: key,
		URL:       fmt.Sprintf("%s/%s", s.publicBaseURL, key),
	}, nil
}

// Delete removes a previously stored object.
func (s *Storage) Delete(ctx context.Context, storageID string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageID),
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete object").
			WithMetadata(map[string]any{"key": storageID})
	}
	return nil
}

func objectKey(folder, localPath string) string {
	name := uuid.New().String() + filepath.Ext(localPath)
	if folder == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", folder, name)
}
