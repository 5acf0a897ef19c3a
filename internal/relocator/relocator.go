// Package relocator copies referenced resources into the output tree,
// cropping trimmed figures when asked to.
package relocator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"latex-camera-ready/internal/logger"
)

// Options configures a Relocator.
type Options struct {
	// Crop applies trim= margins of \includegraphics to the copied file.
	Crop bool
	// JPEGQuality is used when re-encoding cropped JPEGs.
	JPEGQuality int
	// CountPages records the page count of relocated PDFs.
	CountPages bool
}

// Relocator copies or crops one resource at a time.
type Relocator struct {
	opts Options
}

// New creates a Relocator.
func New(opts Options) *Relocator {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 95
	}
	return &Relocator{opts: opts}
}

// Request describes one resource to relocate.
type Request struct {
	Src     string
	Dst     string
	Command string
	Params  string
}

// Result describes what Relocate did. Params is the option text to write back
// into the inclusion command.
type Result struct {
	Params  string
	Missing bool
	Cropped bool
	Bytes   int64
	Pages   int
}

// Relocate copies req.Src to req.Dst, creating parent directories. A missing
// source is not an error: the result is marked Missing and nothing is written.
func (r *Relocator) Relocate(req Request) (Result, error) {
	res := Result{Params: req.Params}

	if err := os.MkdirAll(filepath.Dir(req.Dst), 0755); err != nil {
		return res, fmt.Errorf("failed to create resource directory: %w", err)
	}

	info, err := os.Stat(req.Src)
	if err != nil || info.IsDir() {
		res.Missing = true
		return res, nil
	}

	if r.shouldCrop(req) {
		cropped, err := r.crop(req)
		switch {
		case err == nil && cropped:
			res.Cropped = true
			res.Params = StripTrim(req.Params)
		case err != nil:
			logger.Warn("cropping failed, copying original",
				logger.String("src", req.Src),
				logger.Err(err))
		}
	}

	if !res.Cropped {
		if err := CopyFile(req.Src, req.Dst); err != nil {
			return res, fmt.Errorf("failed to copy %s: %w", req.Src, err)
		}
	}

	if out, err := os.Stat(req.Dst); err == nil {
		res.Bytes = out.Size()
	}

	if r.opts.CountPages && IsPDF(req.Dst) {
		if pages, err := PageCount(req.Dst); err == nil {
			res.Pages = pages
		} else {
			logger.Debug("could not count pdf pages", logger.String("path", req.Dst), logger.Err(err))
		}
	}

	return res, nil
}

func (r *Relocator) shouldCrop(req Request) bool {
	if !r.opts.Crop || req.Command != "includegraphics" {
		return false
	}
	return IsBitmap(req.Src) || IsPDF(req.Src)
}

// crop reports false without error when the options carry no usable trim
// or all margins are zero.
func (r *Relocator) crop(req Request) (bool, error) {
	trim, ok := ParseTrim(req.Params)
	if !ok || trim.IsZero() {
		return false, nil
	}

	if IsPDF(req.Src) {
		if err := CropPDF(req.Src, req.Dst, trim); err != nil {
			return false, err
		}
		return true, nil
	}

	size, err := CropBitmap(req.Src, req.Dst, trim, r.opts.JPEGQuality)
	if errors.Is(err, ErrUnsupportedFormat) {
		logger.Info("bitmap format cannot be re-encoded, keeping trim options", logger.String("src", req.Src))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logger.Debug("bitmap cropped",
		logger.String("dst", req.Dst),
		logger.Int("width", size.X),
		logger.Int("height", size.Y))
	return true, nil
}

// CopyFile copies src to dst byte for byte.
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}
	return destFile.Close()
}
