package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// MaxImageBytes caps avatars and post images
const MaxImageBytes = 5 << 20

// ImageKind picks the key prefix an image is stored under
type ImageKind string

const (
	ImageKindAvatar ImageKind = "avatars"
	ImageKindPost   ImageKind = "post-images"
)

var (
	ErrImageTooLarge    = errors.New("image exceeds 5MB")
	ErrUnsupportedImage = errors.New("image must be jpg, png, webp or gif")
	ErrEmptyImage       = errors.New("image is empty")
)

// allowedImageTypes maps sniffed content types to the stored extension
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// DetectImage sniffs data and returns its content type and extension.
// The declared filename is ignored; only the bytes decide.
func DetectImage(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return "", "", ErrImageTooLarge
	}
	contentType = http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	return contentType, ext, nil
}

// ReadImage reads a multipart upload, enforcing the size cap before
// buffering the whole body
func ReadImage(header *multipart.FileHeader) ([]byte, error) {
	if header.Size > MaxImageBytes {
		return nil, ErrImageTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	if _, _, err := DetectImage(data); err != nil {
		return nil, err
	}
	return data, nil
}
