// Package photo turns phone camera uploads into upright, bounded JPEGs.
package photo

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxSide bounds the longest edge of a stored photo.
	MaxSide = 1600
	// Quality is the JPEG quality of stored photos.
	Quality = 82
	// ContentType of every normalised photo.
	ContentType = "image/jpeg"
)

// ErrUnsupported is returned for bytes that do not decode as an image.
var ErrUnsupported = errors.New("unsupported image")

// Meta describes the uploaded image before normalisation.
type Meta struct {
	Width  int
	Height int
	Format string
}

// Normalize decodes an upload, applies its EXIF orientation, fits it inside
// MaxSide×MaxSide and re-encodes it as JPEG.
func Normalize(data []byte) ([]byte, Meta, error) {
	img, format, err := decode(data)
	if err != nil {
		return nil, Meta{}, err
	}
	b := img.Bounds()
	meta := Meta{Width: b.Dx(), Height: b.Dy(), Format: format}

	if b.Dx() > MaxSide || b.Dy() > MaxSide {
		img = imaging.Fit(img, MaxSide, MaxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, Meta{}, err
	}
	return buf.Bytes(), meta, nil
}

// IsImage sniffs the first bytes of data.
func IsImage(data []byte) bool {
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	return strings.HasPrefix(http.DetectContentType(sample), "image/")
}

func decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrUnsupported
	}
	if !strings.EqualFold(format, "jpeg") {
		return img, format, nil
	}

	// Only JPEGs carry EXIF here; a missing or broken tag leaves the image as is.
	ex, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return img, format, nil
	}
	tag, err := ex.Get(exif.Orientation)
	if err != nil {
		return img, format, nil
	}
	orient, err := tag.Int(0)
	if err != nil {
		return img, format, nil
	}
	return orientate(img, orient), format, nil
}

func orientate(img image.Image, orient int) image.Image {
	switch orient {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}
