package compressor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisyPNG(t *testing.T, w, h int, alpha uint8) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8((x * 255) / w),
				B: uint8((y * 255) / h),
				A: alpha,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressPassesThroughWithinBudget(t *testing.T) {
	c := New(DefaultOptions())
	data := noisyPNG(t, 40, 30, 255)
	require.Less(t, len(data), DefaultOptions().TargetBytes)

	res := c.Compress(data, "front_a.png", "image/png")
	assert.False(t, res.Compressed)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, "front_a.png", res.FileName)
	assert.Equal(t, "image/png", res.ContentType)
}

func TestCompressReencodesOversizedImage(t *testing.T) {
	c := New(DefaultOptions())
	data := noisyPNG(t, 2400, 1200, 255)
	require.Greater(t, len(data), DefaultOptions().TargetBytes)

	res := c.Compress(data, "middle_b.png", "image/png")
	require.True(t, res.Compressed)
	assert.Equal(t, "middle_b.jpg", res.FileName)
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.True(t, len(res.Data) <= DefaultOptions().TargetBytes || res.Quality == DefaultOptions().MinQuality)

	decoded, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 1920, decoded.Bounds().Dx())
	assert.Equal(t, 960, decoded.Bounds().Dy())
}

func TestCompressStopsAtQualityFloor(t *testing.T) {
	c := New(Options{TargetBytes: 1024, MaxWidth: 1920, InitialQuality: 85, QualityStep: 5, MinQuality: 20})
	data := noisyPNG(t, 400, 300, 255)

	res := c.Compress(data, "scan.png", "image/png")
	require.True(t, res.Compressed)
	assert.Equal(t, 20, res.Quality)
	assert.Greater(t, len(res.Data), 1024)
}

func TestCompressClampsUnevenStepsToFloor(t *testing.T) {
	c := New(Options{TargetBytes: 1024, InitialQuality: 90, QualityStep: 30, MinQuality: 25})
	data := noisyPNG(t, 300, 200, 255)

	res := c.Compress(data, "scan.png", "")
	require.True(t, res.Compressed)
	assert.Equal(t, 25, res.Quality)
}

func TestCompressFlattensAlpha(t *testing.T) {
	c := New(Options{TargetBytes: 1024})
	data := noisyPNG(t, 200, 200, 0)

	res := c.Compress(data, "logo.png", "image/png")
	require.True(t, res.Compressed)

	decoded, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(100, 100).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Greater(t, g>>8, uint32(200))
	assert.Greater(t, b>>8, uint32(200))
}

func TestCompressLeavesNonImagesUntouched(t *testing.T) {
	c := New(DefaultOptions())
	data := bytes.Repeat([]byte("not an image at all "), 30000)

	res := c.Compress(data, "notes.txt", "text/plain")
	assert.False(t, res.Compressed)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, "notes.txt", res.FileName)
}

func TestCompressLeavesCorruptImagesUntouched(t *testing.T) {
	c := New(DefaultOptions())
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0xAB}, 500*1024)...)

	res := c.Compress(data, "broken.png", "image/png")
	assert.False(t, res.Compressed)
	assert.Equal(t, data, res.Data)
}

func TestCompressSniffsMissingContentType(t *testing.T) {
	c := New(DefaultOptions())
	data := noisyPNG(t, 10, 10, 255)

	res := c.Compress(data, "tiny", "")
	assert.Equal(t, "image/png", res.ContentType)
}

func TestJPEGName(t *testing.T) {
	assert.Equal(t, "photo.jpg", JPEGName("photo.PNG"))
	assert.Equal(t, "archive.tar.jpg", JPEGName("archive.tar.gz"))
	assert.Equal(t, "image.jpg", JPEGName(""))
	assert.Equal(t, "noext.jpg", JPEGName("noext"))
}
