// Package uploads implements the request-scoped file pipeline: multipart
// staging to scratch storage, per-field validation, concurrent transfer to
// the remote media store, and guaranteed local cleanup.
package uploads

import (
	"fmt"

	"github.com/clipstream/backend/internal/storage"
)

// DefaultMaxImageBytes and DefaultMaxVideoBytes cap upload sizes per kind.
const (
	DefaultMaxImageBytes int64 = 2 << 20
	DefaultMaxVideoBytes int64 = 100 << 20
)

var imageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

var videoTypes = map[string]struct{}{
	"video/mp4":        {},
	"video/x-msvideo":  {},
	"video/x-matroska": {},
	"video/quicktime":  {},
	"video/x-ms-wmv":   {},
}

// Rule validates one multipart field. Fields without a rule are ignored by
// the stager.
type Rule struct {
	Kind     storage.Kind
	Required bool
	MaxBytes int64
}

// ImageRule builds the filter for an image field.
func ImageRule(required bool, maxBytes int64) Rule {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return Rule{Kind: storage.KindImage, Required: required, MaxBytes: maxBytes}
}

// VideoRule builds the filter for a video field.
func VideoRule(required bool, maxBytes int64) Rule {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxVideoBytes
	}
	return Rule{Kind: storage.KindVideo, Required: required, MaxBytes: maxBytes}
}

// check validates a declared content type and size against the rule,
// returning a message naming the offending field and limit.
func (r Rule) check(field, contentType string, size int64) error {
	allowed := imageTypes
	if r.Kind == storage.KindVideo {
		allowed = videoTypes
	}
	if _, ok := allowed[contentType]; !ok {
		return fmt.Errorf("field %q: unsupported %s type %q", field, r.Kind, contentType)
	}
	if size > r.MaxBytes {
		return fmt.Errorf("field %q: file exceeds the %d byte limit", field, r.MaxBytes)
	}
	return nil
}
