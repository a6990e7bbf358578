package storage

import (
	"context"
)

// ImageUploader stores user images and hands back their public URL.
// Handlers depend on this so tests can swap in a fake.
type ImageUploader interface {
	UploadImage(ctx context.Context, data []byte, kind ImageKind, userID string) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
}

// Ensure S3Uploader implements ImageUploader
var _ ImageUploader = (*S3Uploader)(nil)
