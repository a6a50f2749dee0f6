// Package storage stores uploaded product images on local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/kumamontessori/kuma/internal/catalog"
)

const MaxImageSize = 5 << 20

var (
	ErrMissingImage  = errors.New("No se proporcionó una imagen válida")
	ErrNotImage      = errors.New("El archivo debe ser una imagen (PNG, JPEG, GIF o WebP)")
	ErrImageTooLarge = errors.New("La imagen no puede superar los 5 MB")
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type ImageStore interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Image is an upload that passed validation.
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ReadImage reads at most MaxImageSize bytes and sniffs the content type.
// The client supplied content type is not trusted.
func ReadImage(r io.Reader, filename string) (*Image, error) {
	if r == nil {
		return nil, ErrMissingImage
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrMissingImage
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	if _, ok := imageExtensions[contentType]; !ok {
		return nil, ErrNotImage
	}
	return &Image{Data: data, ContentType: contentType, Filename: filename}, nil
}

// Key builds a unique object key under products/ from the original file name.
func (img *Image) Key(now time.Time) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(img.Filename, "\\", "/")), path.Ext(img.Filename))
	name := catalog.Slugify(base)
	if name == "" {
		name = "imagen"
	}
	return fmt.Sprintf("products/%d-%s%s", now.UnixMilli(), name, imageExtensions[img.ContentType])
}
