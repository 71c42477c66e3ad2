package processing

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrNotDataURL is returned when a string is not a base64 data URL.
var ErrNotDataURL = errors.New("not a base64 data URL")

// EncodeDataURL wraps data in a data: URL.
func EncodeDataURL(data []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL extracts the payload and MIME type from a base64 data URL.
func DecodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, "", ErrNotDataURL
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", ErrNotDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}

// DecodeImageDataURL decodes a data URL into an image.
// A bare base64 string without the data: prefix is accepted too.
func (p *Processor) DecodeImageDataURL(s string) (image.Image, error) {
	data, _, err := DecodeDataURL(s)
	if errors.Is(err, ErrNotDataURL) {
		data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	}
	if err != nil {
		return nil, err
	}
	return p.DecodeImage(data)
}
