package service

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"testing"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageNormalizer_PassesSmallImagesThrough(t *testing.T) {
	img, err := ai.ParseDataURI(pngDataURI(t, 40, 20))
	require.NoError(t, err)

	out, err := NewImageNormalizer(64).Normalize(img)
	require.NoError(t, err)

	assert.Same(t, img, out)
}

func TestImageNormalizer_DownscalesLargeImages(t *testing.T) {
	img, err := ai.ParseDataURI(pngDataURI(t, 200, 100))
	require.NoError(t, err)

	out, err := NewImageNormalizer(64).Normalize(img)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", out.MediaType)
	data, err := out.Bytes()
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
}

func TestImageNormalizer_ZeroDisablesResize(t *testing.T) {
	img, err := ai.ParseDataURI(pngDataURI(t, 200, 100))
	require.NoError(t, err)

	out, err := NewImageNormalizer(0).Normalize(img)
	require.NoError(t, err)
	assert.Same(t, img, out)
}

func TestImageNormalizer_RejectsGarbage(t *testing.T) {
	_, err := NewImageNormalizer(64).Normalize(&ai.Image{MediaType: "image/png", Data: "%%%"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = NewImageNormalizer(64).Normalize(ai.NewImage("image/png", []byte("not a png")))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

// pngHeaderOnly returns a PNG with a valid IHDR chunk for the given size and
// no pixel data. Decoding the header succeeds; decoding the pixels does not.
func pngHeaderOnly(width, height uint32) []byte {
	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr[:]...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestImageNormalizer_RejectsOversizedPixelCount(t *testing.T) {
	data := pngHeaderOnly(10000, 10000)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 10000, cfg.Width)

	img := ai.NewImage("image/png", data)

	tests := []struct {
		name         string
		maxDimension int
	}{
		{"resize enabled", 2048},
		{"resize disabled", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImageNormalizer(tt.maxDimension).Normalize(img)
			assert.Equal(t, domain.ETOOLARGE, domain.ErrorCode(err))
		})
	}

	_, err = NewImageNormalizer(0).JPEG(img)
	assert.Equal(t, domain.ETOOLARGE, domain.ErrorCode(err))
}

func TestImageNormalizer_JPEG(t *testing.T) {
	img, err := ai.ParseDataURI(pngDataURI(t, 10, 10))
	require.NoError(t, err)

	data, err := NewImageNormalizer(64).JPEG(img)
	require.NoError(t, err)

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}
