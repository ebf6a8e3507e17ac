package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// exportCacheControl lets viewers cache an exported photo; a re-export under
// the same name only happens after the filter changes.
const exportCacheControl = "public, max-age=3600"

// GCSUploader writes exported photos to a Google Cloud Storage bucket.
type GCSUploader struct {
	client  *storage.Client
	bucket  string
	signTTL time.Duration
}

// NewGCSUploader creates a GCSUploader for bucket. Uploads return URLs signed
// for signTTL, or the public object URL when signTTL is zero. opts are passed
// through to the GCS client.
func NewGCSUploader(ctx context.Context, bucket string, signTTL time.Duration, opts ...option.ClientOption) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create GCS client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket, signTTL: signTTL}, nil
}

// Upload writes the photo and its metadata to the bucket
func (u *GCSUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	name, err := cleanObjectName(req.ObjectName)
	if err != nil {
		return nil, err
	}

	bucket := u.client.Bucket(u.bucket)
	w := bucket.Object(name).NewWriter(ctx)
	w.ContentType = req.ContentType
	w.CacheControl = exportCacheControl
	w.Metadata = req.Metadata

	if _, err := io.Copy(w, req.Content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("storage: upload of %q to bucket %s failed: %w", name, u.bucket, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("storage: upload of %q to bucket %s failed: %w", name, u.bucket, err)
	}

	res := &UploadResult{ObjectName: name}
	if u.signTTL <= 0 {
		res.URL = publicObjectURL(u.bucket, name)
		return res, nil
	}

	res.ExpiresAt = time.Now().Add(u.signTTL)
	res.URL, err = bucket.SignedURL(name, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: res.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to sign URL for %q: %w", name, err)
	}
	return res, nil
}

// Close releases the GCS client
func (u *GCSUploader) Close() error {
	return u.client.Close()
}

func publicObjectURL(bucket, name string) string {
	return (&url.URL{
		Scheme: "https",
		Host:   "storage.googleapis.com",
		Path:   "/" + bucket + "/" + name,
	}).String()
}
