package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix is the namespace product images are stored under.
const KeyPrefix = "products"

// legacyURLMarker separates the host from the key in URLs written by the
// previous backend, e.g. https://bucket.s3.region.amazonaws.com/<key>.
const legacyURLMarker = ".com/"

// ImageStore is the object store holding product images.
type ImageStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	// URL returns the external reference recorded alongside the key.
	URL(key string) string
}

// NewImageKey returns a collision-resistant key for an uploaded file.
func NewImageKey(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "image"
	}
	return fmt.Sprintf("%s/%s-%s", KeyPrefix, uuid.NewString(), name)
}

// KeyFromURL recovers the storage key from a legacy image URL. It returns an
// empty string when the URL does not have the expected shape.
func KeyFromURL(rawURL string) string {
	idx := strings.Index(rawURL, legacyURLMarker)
	if idx < 0 {
		return ""
	}
	return rawURL[idx+len(legacyURLMarker):]
}
