package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes defines the MIME types accepted as payment proof.
// Proofs are screenshots, scans or bank exports, so only images and a few
// document formats make sense.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,

	"application/pdf": true,
	"text/csv":        true,
}

// ValidateContentType checks if the content type is allowed for proofs.
func ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// GetAllowedContentTypes returns a list of allowed content types.
// Useful for frontend validation.
func GetAllowedContentTypes() []string {
	types := make([]string, 0, len(AllowedContentTypes))
	for ct := range AllowedContentTypes {
		types = append(types, ct)
	}
	return types
}

// IsImageContentType checks if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
