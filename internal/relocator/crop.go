package relocator

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"latex-camera-ready/internal/logger"
)

// ErrUnsupportedFormat is returned when a resource cannot be cropped and
// should be copied unchanged instead.
var ErrUnsupportedFormat = errors.New("format does not support cropping")

var bitmapExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsBitmap reports whether path has a raster image extension.
func IsBitmap(path string) bool {
	return bitmapExtensions[strings.ToLower(filepath.Ext(path))]
}

// CropRect converts trim margins in points into the pixel rectangle that
// remains of bounds at the given resolution (margin = points × dpi / 72).
// The result is not canonicalized: margins that overlap yield an empty
// rectangle.
func CropRect(bounds image.Rectangle, trim Trim, dpiX, dpiY float64) image.Rectangle {
	px := func(points, dpi float64) int {
		return int(math.Round(points * dpi / 72))
	}
	return image.Rectangle{
		Min: image.Pt(bounds.Min.X+px(trim.Left, dpiX), bounds.Min.Y+px(trim.Top, dpiY)),
		Max: image.Pt(bounds.Max.X-px(trim.Right, dpiX), bounds.Max.Y-px(trim.Bottom, dpiY)),
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CropBitmap writes the trimmed copy of the bitmap src to dst in the same
// format and returns the cropped size.
func CropBitmap(src, dst string, trim Trim, jpegQuality int) (image.Point, error) {
	in, err := os.Open(src)
	if err != nil {
		return image.Point{}, fmt.Errorf("failed to open bitmap: %w", err)
	}
	defer in.Close()

	img, format, err := image.Decode(in)
	if err != nil {
		return image.Point{}, fmt.Errorf("failed to decode bitmap: %w", err)
	}
	if format == "webp" {
		return image.Point{}, ErrUnsupportedFormat
	}

	dpiX, dpiY, ok := ReadDPI(src)
	if !ok {
		dpiX, dpiY = DefaultDPI, DefaultDPI
	}

	rect := CropRect(img.Bounds(), trim, dpiX, dpiY)
	if rect.Empty() {
		return image.Point{}, fmt.Errorf("trim %v removes the whole %dx%d image", trim, img.Bounds().Dx(), img.Bounds().Dy())
	}

	var cropped image.Image
	if si, ok := img.(subImager); ok {
		cropped = si.SubImage(rect)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, rect.Min, draw.Src)
		cropped = rgba
	}

	logger.Debug("cropping bitmap",
		logger.String("src", src),
		logger.String("format", format),
		logger.Float64("dpiX", dpiX),
		logger.Float64("dpiY", dpiY),
		logger.Int("width", rect.Dx()),
		logger.Int("height", rect.Dy()))

	out, err := os.Create(dst)
	if err != nil {
		return image.Point{}, fmt.Errorf("failed to create cropped bitmap: %w", err)
	}
	if err := encode(out, cropped, format, jpegQuality); err != nil {
		out.Close()
		return image.Point{}, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if err := out.Close(); err != nil {
		return image.Point{}, err
	}
	return rect.Size(), nil
}

func encode(w io.Writer, img image.Image, format string, jpegQuality int) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return ErrUnsupportedFormat
	}
}
