// Package assets stores uploaded images (profile pictures, message
// attachments) in an S3-compatible object store and returns public URLs.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Uploader stores raw image data and returns the public URL of the asset.
type Uploader interface {
	Upload(ctx context.Context, data string) (string, error)
}

// decodeDataURI splits a base64 data URI ("data:image/png;base64,...") into
// its content type and decoded bytes. Bare base64 payloads are accepted and
// default to image/png.
func decodeDataURI(data string) (string, []byte, error) {
	contentType := "image/png"
	payload := data

	if strings.HasPrefix(data, "data:") {
		meta, rest, ok := strings.Cut(data[len("data:"):], ",")
		if !ok {
			return "", nil, fmt.Errorf("malformed data URI")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return "", nil, fmt.Errorf("unsupported data URI encoding")
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		payload = rest
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode image data: %w", err)
	}
	if len(raw) == 0 {
		return "", nil, fmt.Errorf("empty image data")
	}

	return contentType, raw, nil
}

// extensionFor maps a content type to a file extension for the storage key.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
