package compressor

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

const outputContentType = "image/jpeg"

// Options tunes the size budget search.
type Options struct {
	TargetBytes    int
	MaxWidth       int
	InitialQuality int
	QualityStep    int
	MinQuality     int
}

// DefaultOptions returns a 400 KB budget, 1920 px max width and qualities 85 down to 20 in steps of 5.
func DefaultOptions() Options {
	return Options{
		TargetBytes:    400 * 1024,
		MaxWidth:       1920,
		InitialQuality: 85,
		QualityStep:    5,
		MinQuality:     20,
	}
}

// Result is the outcome of Compress. When Compressed is false Data is the input slice.
type Result struct {
	Data        []byte
	FileName    string
	ContentType string
	Quality     int
	Compressed  bool
}

// Compressor re-encodes oversized raster images as JPEG under a byte budget.
// It holds no mutable state and is safe for concurrent use.
type Compressor struct {
	opts Options
}

// New builds a Compressor, filling unset options from DefaultOptions.
func New(opts Options) *Compressor {
	def := DefaultOptions()
	if opts.TargetBytes <= 0 {
		opts.TargetBytes = def.TargetBytes
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.InitialQuality <= 0 || opts.InitialQuality > 100 {
		opts.InitialQuality = def.InitialQuality
	}
	if opts.QualityStep <= 0 {
		opts.QualityStep = def.QualityStep
	}
	if opts.MinQuality <= 0 || opts.MinQuality > opts.InitialQuality {
		opts.MinQuality = def.MinQuality
		if opts.MinQuality > opts.InitialQuality {
			opts.MinQuality = opts.InitialQuality
		}
	}
	return &Compressor{opts: opts}
}

// Options returns the effective options.
func (c *Compressor) Options() Options {
	return c.opts
}

// Compress returns data unchanged when it already fits the budget, is not a
// raster image or cannot be decoded. Otherwise the image is flattened to RGB,
// narrowed to MaxWidth and encoded as JPEG with decreasing quality until it
// fits or MinQuality is reached.
func (c *Compressor) Compress(data []byte, fileName, contentType string) Result {
	res := Result{Data: data, FileName: fileName, ContentType: contentType}

	var detected *mimetype.MIME
	if res.ContentType == "" || res.ContentType == "application/octet-stream" {
		detected = mimetype.Detect(data)
		res.ContentType = detected.String()
	}

	if len(data) <= c.opts.TargetBytes {
		return res
	}

	if detected == nil {
		detected = mimetype.Detect(data)
	}
	if !strings.HasPrefix(detected.String(), "image/") {
		return res
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return res
	}

	img = flatten(img)
	if img.Bounds().Dx() > c.opts.MaxWidth {
		img = imaging.Resize(img, c.opts.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	quality := c.opts.InitialQuality
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return res
		}
		if buf.Len() <= c.opts.TargetBytes || quality == c.opts.MinQuality {
			break
		}
		quality -= c.opts.QualityStep
		if quality < c.opts.MinQuality {
			quality = c.opts.MinQuality
		}
	}

	return Result{
		Data:        bytes.Clone(buf.Bytes()),
		FileName:    JPEGName(fileName),
		ContentType: outputContentType,
		Quality:     quality,
		Compressed:  true,
	}
}

// JPEGName swaps the extension of name for ".jpg".
func JPEGName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "image"
	}
	return stem + ".jpg"
}

// flatten draws img over an opaque white canvas, dropping alpha and palette.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
