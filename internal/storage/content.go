package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"
)

var (
	defaultOwnerID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	defaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// ContentUploader stores exported images as content in a simple-content service
type ContentUploader struct {
	service  simplecontent.Service
	ownerID  uuid.UUID
	tenantID uuid.UUID
	tags     []string
}

// NewContentUploader wraps an existing simple-content service
func NewContentUploader(service simplecontent.Service) *ContentUploader {
	return &ContentUploader{
		service:  service,
		ownerID:  defaultOwnerID,
		tenantID: defaultTenantID,
		tags:     []string{"photo-pipeline", "sepia"},
	}
}

// NewDevContentUploader starts an embedded simple-content service (in-memory
// repository, filesystem blobs under dir). The returned cleanup must be called
// when the uploader is no longer needed.
func NewDevContentUploader(dir string) (*ContentUploader, func(), error) {
	svc, cleanup, err := presets.NewDevelopment(
		presets.WithDevStorage(dir),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: failed to initialize simple-content service: %w", err)
	}
	return NewContentUploader(svc), cleanup, nil
}

// Upload creates a content record holding the image. The URL is the content id.
func (u *ContentUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	content, err := u.service.UploadContent(ctx, simplecontent.UploadContentRequest{
		OwnerID:      u.ownerID,
		TenantID:     u.tenantID,
		Name:         req.ObjectName,
		DocumentType: req.ContentType,
		Reader:       req.Content,
		FileName:     path.Base(req.ObjectName),
		Tags:         u.tags,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to upload content %q: %w", req.ObjectName, err)
	}

	return &UploadResult{
		ObjectName: req.ObjectName,
		URL:        "content://" + content.ID.String(),
	}, nil
}
