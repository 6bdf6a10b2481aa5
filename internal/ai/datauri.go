package ai

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SupportedImageTypes lists the media types accepted for analysis
var SupportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// MaxImageSize is the maximum decoded image size in bytes (20MB)
const MaxImageSize = 20 * 1024 * 1024

// Image is an X-ray carried as a base64 data URI.
type Image struct {
	MediaType string // e.g. "image/jpeg"
	Data      string // Base64 payload with the data URI prefix stripped
}

// ParseDataURI splits "data:image/<type>;base64,<payload>" into its media
// type and payload.
func ParseDataURI(uri string) (*Image, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: image is empty", EAIInvalidImage)
	}
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data URI", EAIInvalidImage)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URI has no payload", EAIInvalidImage)
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, fmt.Errorf("%w: data URI is not base64 encoded", EAIInvalidImage)
	}
	mediaType = strings.ToLower(mediaType)
	if !SupportedImageTypes[mediaType] {
		return nil, fmt.Errorf("%w: unsupported content type %q", EAIInvalidImage, mediaType)
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: image is empty", EAIInvalidImage)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize {
		return nil, fmt.Errorf("%w: image exceeds maximum size of %d bytes", EAIInvalidImage, MaxImageSize)
	}
	return &Image{MediaType: mediaType, Data: payload}, nil
}

// NewImage encodes raw bytes as an Image.
func NewImage(mediaType string, data []byte) *Image {
	return &Image{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}
}

// Bytes decodes the base64 payload.
func (i *Image) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(i.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", EAIInvalidImage, err)
	}
	return b, nil
}

// DataURI reassembles the image as a data URI.
func (i *Image) DataURI() string {
	return "data:" + i.MediaType + ";base64," + i.Data
}
