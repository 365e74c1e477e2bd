package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidthMM  = 210.0
	pageHeightMM = 297.0
	marginMM     = 10.0
)

// Page is one image rendered onto its own PDF page.
type Page struct {
	Data        []byte
	ContentType string
}

// PDFExporter renders flipbook pages into a single PDF document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out pages in order, one image per A4 page, scaled to fit and
// centred. The page orientation follows the image aspect ratio.
func (e *PDFExporter) Render(title string, pages []Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf requires at least one page")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(false, 0)
	if title != "" {
		pdf.SetTitle(title, true)
	}

	for i, page := range pages {
		data, imageType, err := normalise(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		name := "page-" + strconv.Itoa(i)
		opts := gofpdf.ImageOptions{ImageType: imageType}
		info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: register image: %w", i+1, err)
		}

		orientation := "P"
		pw, ph := pageWidthMM, pageHeightMM
		if info.Width() > info.Height() {
			orientation = "L"
			pw, ph = pageHeightMM, pageWidthMM
		}
		pdf.AddPageFormat(orientation, gofpdf.SizeType{Wd: pageWidthMM, Ht: pageHeightMM})

		w, h := fit(info.Width(), info.Height(), pw-2*marginMM, ph-2*marginMM)
		pdf.ImageOptions(name, (pw-w)/2, (ph-h)/2, w, h, false, opts, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// normalise passes JPEG and PNG through and re-encodes other raster formats as JPEG.
func normalise(page Page) ([]byte, string, error) {
	switch strings.ToLower(page.ContentType) {
	case "image/jpeg", "image/jpg":
		return page.Data, "JPG", nil
	case "image/png":
		return page.Data, "PNG", nil
	}
	img, err := imaging.Decode(bytes.NewReader(page.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", page.ContentType, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "JPG", nil
}

func fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := maxW / w
	if h*scale > maxH {
		scale = maxH / h
	}
	return w * scale, h * scale
}
