package export

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h), nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h)))
	return buf.Bytes()
}

func encodeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, solid(w, h), nil))
	return buf.Bytes()
}

func TestPDFExporterRendersOnePagePerImage(t *testing.T) {
	exporter := NewPDFExporter()
	out, err := exporter.Render("Wedding", []Page{
		{Data: encodeJPEG(t, 60, 80), ContentType: "image/jpeg"},
		{Data: encodePNG(t, 120, 40), ContentType: "image/png"},
		{Data: encodeGIF(t, 30, 30), ContentType: "image/gif"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, 3, bytes.Count(out, []byte("<</Type /Page\n")))
}

func TestPDFExporterRequiresPages(t *testing.T) {
	_, err := NewPDFExporter().Render("empty", nil)
	require.Error(t, err)
}

func TestPDFExporterRejectsUndecodableImage(t *testing.T) {
	_, err := NewPDFExporter().Render("", []Page{{Data: []byte("nope"), ContentType: "image/webp"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 1")
}

func TestFitKeepsAspectRatio(t *testing.T) {
	w, h := fit(200, 100, 190, 277)
	assert.InDelta(t, 190, w, 0.001)
	assert.InDelta(t, 95, h, 0.001)

	w, h = fit(100, 400, 190, 277)
	assert.InDelta(t, 69.25, w, 0.001)
	assert.InDelta(t, 277, h, 0.001)
}
