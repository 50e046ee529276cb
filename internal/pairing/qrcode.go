// Package pairing renders login QR codes issued by the protocol stack.
package pairing

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 512

// ErrEmptyCode is returned when there is nothing to encode.
var ErrEmptyCode = errors.New("empty QR payload")

// QRRenderer turns login QR payloads into images.
type QRRenderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewQRRenderer creates a renderer producing size x size images. Sizes
// below 128 fall back to DefaultSize.
func NewQRRenderer(size int) *QRRenderer {
	if size < 128 {
		size = DefaultSize
	}
	return &QRRenderer{size: size, level: qrcode.Medium}
}

// PNG renders code as a PNG image.
func (r *QRRenderer) PNG(code string) ([]byte, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	return qrcode.Encode(code, r.level, r.size)
}
