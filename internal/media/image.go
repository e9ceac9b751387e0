package media

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when downloaded content does not decode as a supported image.
var ErrNotImage = errors.New("media: content is not an image")

// Kind describes a decoded image header.
type Kind struct {
	Format      string
	Ext         string
	ContentType string
	Width       int
	Height      int
}

// Sniff reads the image header from r. Only the config is decoded, not the pixels.
func Sniff(r io.Reader) (Kind, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Kind{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	k := Kind{Format: format, Width: cfg.Width, Height: cfg.Height}
	switch format {
	case "jpeg":
		k.Ext, k.ContentType = "jpg", "image/jpeg"
	case "png":
		k.Ext, k.ContentType = "png", "image/png"
	case "gif":
		k.Ext, k.ContentType = "gif", "image/gif"
	case "webp":
		k.Ext, k.ContentType = "webp", "image/webp"
	default:
		return Kind{}, fmt.Errorf("%w: unsupported format %q", ErrNotImage, format)
	}
	return k, nil
}
