package catalog

import (
	"encoding/base64"
	"errors"
	"strings"
)

var (
	ErrImageTooLarge = errors.New("image too large")
	ErrInvalidImage  = errors.New("invalid image")
)

// ValidateImages checks that every image is base64 (optionally a data URL)
// and decodes to at most maxBytes. maxBytes <= 0 disables the size check.
func ValidateImages(images []string, maxBytes int) error {
	for _, img := range images {
		if err := validateImage(img, maxBytes); err != nil {
			return err
		}
	}
	return nil
}

func validateImage(img string, maxBytes int) error {
	payload := img
	if strings.HasPrefix(payload, "data:") {
		_, after, ok := strings.Cut(payload, ",")
		if !ok {
			return ErrInvalidImage
		}
		payload = after
	}

	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+2 {
		return ErrImageTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ErrInvalidImage
	}
	if maxBytes > 0 && len(raw) > maxBytes {
		return ErrImageTooLarge
	}
	return nil
}
