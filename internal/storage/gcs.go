// Google Cloud Storage store.
//
// GCS is the lowest-priority provider: the selector only reaches it when
// nothing else is configured or the request names it explicitly.
// Credentials resolve via Application Default Credentials.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSAPI defines the subset of GCS operations the store uses. This allows
// mocking in tests.
type GCSAPI interface {
	// Attrs returns the size of the object, or gcs.ErrObjectNotExist.
	Attrs(ctx context.Context, object string) (int64, error)
	// Upload writes the payload with the given content type.
	Upload(ctx context.Context, object string, data []byte, contentType string) error
	// List returns objects under prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// realGCSClient wraps the official GCS client to satisfy GCSAPI.
type realGCSClient struct {
	client *gcs.Client
	bucket string
}

func (c *realGCSClient) Attrs(ctx context.Context, object string) (int64, error) {
	attrs, err := c.client.Bucket(c.bucket).Object(object).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (c *realGCSClient) Upload(ctx context.Context, object string, data []byte, contentType string) error {
	w := c.client.Bucket(c.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (c *realGCSClient) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	it := c.client.Bucket(c.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, ObjectInfo{Key: attrs.Name, Size: attrs.Size})
	}
	return infos, nil
}

// GCSStore implements ObjectStore against a GCS bucket.
type GCSStore struct {
	// Bucket is the bucket name.
	Bucket string
	// PublicURL, when set, overrides URL construction.
	PublicURL string

	client GCSAPI
}

// NewGCSStore creates a GCSStore using Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, publicURL string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return &GCSStore{
		Bucket:    bucket,
		PublicURL: publicURL,
		client:    &realGCSClient{client: client, bucket: bucket},
	}, nil
}

// NewGCSStoreWithClient creates a GCSStore with a pre-configured client.
// Primarily used for testing with mocks.
func NewGCSStoreWithClient(bucket, publicURL string, client GCSAPI) *GCSStore {
	return &GCSStore{Bucket: bucket, PublicURL: publicURL, client: client}
}

// Exists checks object attributes. ErrObjectNotExist maps to (false,
// nil); other failures propagate.
func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Attrs(ctx, key)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking object existence in GCS: %w", err)
	}
	return true, nil
}

// Put uploads the payload. GCS object writes overwrite silently.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.client.Upload(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("uploading to GCS: %w", err)
	}
	return nil
}

// URLFor builds the public URL: configured override, or the standard GCS
// public URL.
func (s *GCSStore) URLFor(key string) string {
	if s.PublicURL != "" {
		return strings.TrimSuffix(s.PublicURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.Bucket, key)
}

// List returns all objects under prefix.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	infos, err := s.client.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing objects in GCS: %w", err)
	}
	return infos, nil
}

// HealthCheck probes the bucket with a bounded listing.
func (s *GCSStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.List(ctx, ".healthcheck")
	return err
}

// Name identifies the provider.
func (s *GCSStore) Name() string { return "gcs" }

// Ensure GCSStore implements ObjectStore at compile time.
var _ ObjectStore = (*GCSStore)(nil)
