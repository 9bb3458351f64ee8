// Package imagehost stores note images with an external provider.
package imagehost

import (
	"context"
	"errors"
	"io"
)

// ErrDisabled is returned by Disabled for every upload.
var ErrDisabled = errors.New("image uploads are disabled")

// Upload is an image to be stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Image is a stored image reference.
type Image struct {
	URL      string
	PublicID string
}

// Host uploads and deletes images.
type Host interface {
	Upload(ctx context.Context, u Upload) (Image, error)
	Delete(ctx context.Context, publicID string) error
}

// Disabled is the Host used when no provider is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, Upload) (Image, error) { return Image{}, ErrDisabled }

func (Disabled) Delete(context.Context, string) error { return nil }

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AllowedContentType reports whether ct is an accepted image type.
func AllowedContentType(ct string) bool {
	return allowedTypes[ct]
}
