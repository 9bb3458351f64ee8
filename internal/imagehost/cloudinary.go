package imagehost

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// Cloudinary stores images in a Cloudinary folder.
type Cloudinary struct {
	api    cloudinaryAPI
	folder string
	log    *zap.Logger
}

func NewCloudinary(cloudName, apiKey, apiSecret, folder string, log *zap.Logger) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return newCloudinary(&cld.Upload, folder, log), nil
}

func newCloudinary(api cloudinaryAPI, folder string, log *zap.Logger) *Cloudinary {
	return &Cloudinary{api: api, folder: folder, log: log.Named("cloudinary")}
}

func (c *Cloudinary) Upload(ctx context.Context, u Upload) (Image, error) {
	res, err := c.api.Upload(ctx, u.Body, uploader.UploadParams{
		Folder:       c.folder,
		ResourceType: "image",
	})
	if err != nil {
		return Image{}, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return Image{}, fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return Image{}, errors.New("cloudinary returned no URL")
	}

	c.log.Debug("image uploaded", zap.String("public_id", res.PublicID), zap.Int("bytes", res.Bytes))
	return Image{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	res, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: "image"})
	if err != nil {
		return fmt.Errorf("failed to delete %s from Cloudinary: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", publicID, res.Error.Message)
	}
	return nil
}
