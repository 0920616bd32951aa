// Package qrcode renders provisioning URIs and generated passwords as PNG
// QR codes. It knows nothing about credentials; it encodes strings.
package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent       = errors.New("content cannot be empty")
	ErrFailedToGenerateQR = errors.New("failed to generate QR code")
)

// DefaultSize is the image side in pixels used when size <= 0.
const DefaultSize = 256

// Generate encodes content into a PNG image of size x size pixels.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerateQR, err)
	}
	return png, nil
}

// GenerateBase64 returns the PNG as standard base64, the format the web
// front end embeds into data:image/png URLs.
func GenerateBase64(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
