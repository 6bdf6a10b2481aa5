// Package service contains the business logic layer.
//
// This file implements X-ray normalization before upload to the model.
package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/domain"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// NormalizedJPEGQuality is the JPEG quality used when an X-ray is re-encoded.
const NormalizedJPEGQuality = 90

// MaxImagePixels bounds width*height of an image before it is decoded.
// The encoded size limit does not bound this for well-compressed images.
const MaxImagePixels = 50_000_000

// =============================================================================
// Interface Definition
// =============================================================================

// ImageNormalizer prepares uploaded X-rays for analysis and storage.
type ImageNormalizer interface {
	// Normalize returns img unchanged when its longest edge is within the
	// limit, or a downscaled JPEG copy when it is not.
	Normalize(img *ai.Image) (*ai.Image, error)

	// JPEG returns the image as JPEG bytes, re-encoding when needed.
	JPEG(img *ai.Image) ([]byte, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingNormalizer implements ImageNormalizer using the imaging library.
type imagingNormalizer struct {
	maxDimension int
}

// NewImageNormalizer creates a normalizer that limits the longest edge to
// maxDimension pixels. Zero disables resizing.
func NewImageNormalizer(maxDimension int) ImageNormalizer {
	return &imagingNormalizer{maxDimension: maxDimension}
}

// Normalize decodes the image to validate it and downscales it with a
// Lanczos filter when it is too large.
func (p *imagingNormalizer) Normalize(img *ai.Image) (*ai.Image, error) {
	const op = "image.normalize"

	data, err := img.Bytes()
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Image data is not valid base64")
	}

	cfg, err := decodeConfig(op, data)
	if err != nil {
		return nil, err
	}

	if p.maxDimension <= 0 || (cfg.Width <= p.maxDimension && cfg.Height <= p.maxDimension) {
		return img, nil
	}

	decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Image could not be decoded")
	}

	// imaging.Fit keeps the aspect ratio within the bounding box
	resized := imaging.Fit(decoded, p.maxDimension, p.maxDimension, imaging.Lanczos)

	out, err := encodeJPEG(resized)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode resized image")
	}
	return ai.NewImage("image/jpeg", out), nil
}

// JPEG returns JPEG bytes for storage alongside the report.
func (p *imagingNormalizer) JPEG(img *ai.Image) ([]byte, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}
	if img.MediaType == "image/jpeg" {
		return data, nil
	}
	if _, err := decodeConfig("image.jpeg", data); err != nil {
		return nil, err
	}

	decoded, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return encodeJPEG(decoded)
}

// decodeConfig reads the image header and rejects images whose pixel count
// exceeds MaxImagePixels.
func decodeConfig(op string, data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, domain.Wrap(err, domain.EINVALID, op, "Image could not be decoded")
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxImagePixels {
		return image.Config{}, domain.Errorf(domain.ETOOLARGE, op,
			"Image is %dx%d pixels; the limit is %d megapixels", cfg.Width, cfg.Height, MaxImagePixels/1_000_000)
	}
	return cfg, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(NormalizedJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
