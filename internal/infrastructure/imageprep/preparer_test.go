package imageprep

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreparer_SmallImageUnchanged(t *testing.T) {
	p := NewPreparer(100, zap.NewNop())
	content := pngBytes(t, 80, 40)

	out, mimeType, err := p.Prepare(content, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, content, out)
}

func TestPreparer_DownscalesLargeImage(t *testing.T) {
	p := NewPreparer(100, zap.NewNop())

	out, mimeType, err := p.Prepare(pngBytes(t, 400, 200), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestPreparer_UnknownFormatPassesThrough(t *testing.T) {
	p := NewPreparer(0, zap.NewNop())
	content := []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")

	out, mimeType, err := p.Prepare(content, "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mimeType)
	assert.Equal(t, content, out)
	assert.Equal(t, DefaultMaxDimension, p.maxDimension)
}

func TestPreparer_CorruptImage(t *testing.T) {
	p := NewPreparer(100, zap.NewNop())
	content := pngBytes(t, 400, 200)[:30]

	_, _, err := p.Prepare(content, "image/png")
	assert.Error(t, err)
}
