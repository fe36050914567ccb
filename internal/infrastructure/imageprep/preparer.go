package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
)

// DefaultMaxDimension bounds the longest side sent to the extraction engine
const DefaultMaxDimension = 2048

const jpegQuality = 85

// Preparer downscales oversized images before they are embedded in a data URL
type Preparer struct {
	maxDimension int
	logger       *zap.Logger
}

// NewPreparer creates a preparer; maxDimension <= 0 selects DefaultMaxDimension
func NewPreparer(maxDimension int, logger *zap.Logger) *Preparer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Preparer{maxDimension: maxDimension, logger: logger}
}

// Prepare returns the content unchanged when it already fits, otherwise a
// Lanczos-downscaled JPEG. Formats the decoder does not know (webp, heic)
// pass through untouched and are left to the engine.
func (p *Preparer) Prepare(content []byte, mimeType string) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if errors.Is(err, image.ErrFormat) {
		p.logger.Debug("Image format not decodable, sending as is", zap.String("mime_type", mimeType))
		return content, mimeType, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}

	if cfg.Width <= p.maxDimension && cfg.Height <= p.maxDimension {
		return content, mimeType, nil
	}

	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	resized := imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}

	p.logger.Debug("Downscaled image",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("new_width", resized.Bounds().Dx()),
		zap.Int("new_height", resized.Bounds().Dy()),
		zap.Int("size", buf.Len()))

	return buf.Bytes(), "image/jpeg", nil
}

var _ port.ImagePreparer = (*Preparer)(nil)
