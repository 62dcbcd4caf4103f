package storage

import (
	"context"
	"errors"
	"io"

	"github.com/bwise1/outpost/config"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned by uploads when no Cloudinary credentials were set.
var ErrNotConfigured = errors.New("image storage is not configured")

// Upload folders.
const (
	GroupImageFolder    = "outpost/group_messages"
	LocationImageFolder = "outpost/locations"
)

type Cloudinary struct {
	CLD *cloudinary.Cloudinary
}

// NewCloudinary returns nil when credentials are missing so the rest of the
// server can start without image uploads.
func NewCloudinary(cfg *config.Config) *Cloudinary {
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		log.Warn().Msg("cloudinary credentials missing, image uploads disabled")
		return nil
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize cloudinary")
		return nil
	}

	return &Cloudinary{CLD: cld}
}

// UploadImage streams file into folder and returns its secure URL.
func (c *Cloudinary) UploadImage(ctx context.Context, file io.Reader, folder string) (string, error) {
	if c == nil || c.CLD == nil {
		return "", ErrNotConfigured
	}

	resp, err := c.CLD.Upload.Upload(ctx, file, uploader.UploadParams{Folder: folder})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}
	return resp.SecureURL, nil
}
