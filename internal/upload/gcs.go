// Package upload stores product images in Google Cloud Storage.
package upload

import (
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrUnavailable is returned when no image store is configured.
var ErrUnavailable = errors.New("image uploads are not configured")

// ImageStore saves uploaded images and returns their public URL.
type ImageStore interface {
	// Save writes the image and returns the URL it is served from. The
	// original filename is only used for its extension.
	Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}

var _ ImageStore = (*GCSStore)(nil)

// GCSStore uploads images to a public GCS bucket. Object names are prefixed
// with a random UUID so uploads never collide.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store writing to the named bucket.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create storage client")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Save uploads the image and returns its public URL.
func (s *GCSStore) Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	name := uuid.New().String() + path.Ext(filename)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"

	if _, err := io.Copy(w, r); err != nil {
		w.Close() //nolint:errcheck // write already failed
		return "", errors.Wrap(err, "write object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "close object writer")
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name), nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ ImageStore = Disabled{}

// Disabled rejects all uploads. Used when no bucket is configured.
type Disabled struct{}

func (Disabled) Save(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrUnavailable
}
