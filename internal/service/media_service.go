package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/magazine-cms/internal/storage"
	"github.com/rs/zerolog"
)

const imagePrefix = "/storage/images/"

var allowedImageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

type mediaService struct {
	images storage.ImageStore
	log    zerolog.Logger
}

func newMediaService(images storage.ImageStore, log zerolog.Logger) *mediaService {
	return &mediaService{
		images: images,
		log:    log.With().Str("service", "media").Logger(),
	}
}

// UploadImage stores a featured image under a random name and returns the
// reference to put in an article's featured_image
func (s *mediaService) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !allowedImageExt[ext] {
		return "", fmt.Errorf("%w: unsupported image type %q", ErrValidation, ext)
	}

	ref := imagePrefix + uuid.New().String() + ext
	if err := s.images.Put(ref, r); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	s.log.Info().Str("image", ref).Str("original_name", filename).Msg("Image stored")
	return ref, nil
}
