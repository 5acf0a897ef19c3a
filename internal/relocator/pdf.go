package relocator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ledongthucpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"latex-camera-ready/internal/logger"
)

func init() {
	// Keep pdfcpu from creating a config directory in the user's home.
	api.DisableConfigDir()
}

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// pdfMargins renders trim margins in pdfcpu's box notation (top right bottom left).
func pdfMargins(trim Trim) string {
	return fmt.Sprintf("%g %g %g %g", trim.Top, trim.Right, trim.Bottom, trim.Left)
}

// CropPDF writes a copy of src to dst with the crop box of every page shrunk
// by the trim margins (in points).
func CropPDF(src, dst string, trim Trim) error {
	box, err := pdfCropBox(src, trim)
	if err != nil {
		return err
	}

	logger.Debug("cropping pdf",
		logger.String("src", src),
		logger.String("margins", pdfMargins(trim)))

	if err := api.CropFile(src, dst, nil, box, nil); err != nil {
		return fmt.Errorf("failed to crop pdf: %w", err)
	}
	return nil
}

// pdfCropBox resolves trim against the media box as an absolute rectangle.
// pdfcpu reads a left margin between -1 and 1 as a fraction of the page, so
// margin notation is only used for documents whose pages differ in size.
func pdfCropBox(src string, trim Trim) (*model.Box, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	boxes, err := api.Boxes(f, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read page boxes: %w", err)
	}
	if len(boxes) == 0 || boxes[0].MediaBox() == nil {
		return nil, errors.New("pdf has no media box")
	}

	media := *boxes[0].MediaBox()
	for _, pb := range boxes[1:] {
		if m := pb.MediaBox(); m == nil || *m != media {
			if trim.Left > 0 && trim.Left < 1 {
				return nil, fmt.Errorf("left trim %g on pages of differing size", trim.Left)
			}
			box, err := api.Box(pdfMargins(trim), types.POINTS)
			if err != nil {
				return nil, fmt.Errorf("invalid crop box: %w", err)
			}
			return box, nil
		}
	}

	x1, y1 := media.LL.X+trim.Left, media.LL.Y+trim.Bottom
	x2, y2 := media.UR.X-trim.Right, media.UR.Y-trim.Top
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("trim %v removes the whole %gx%g page", trim, media.Width(), media.Height())
	}
	box, err := api.Box(fmt.Sprintf("[%g %g %g %g]", x1, y1, x2, y2), types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("invalid crop box: %w", err)
	}
	return box, nil
}

// PageCount returns the number of pages of a PDF, trying pdfcpu first and
// ledongthuc/pdf for files pdfcpu refuses.
func PageCount(path string) (int, error) {
	ctx, err := api.ReadContextFile(path)
	if err == nil {
		return ctx.PageCount, nil
	}
	logger.Debug("pdfcpu could not read pdf, trying fallback", logger.String("path", path), logger.Err(err))

	f, r, ferr := ledongthucpdf.Open(path)
	if ferr != nil {
		return 0, fmt.Errorf("failed to read pdf: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}
