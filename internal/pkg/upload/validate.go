package upload

import (
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is how many leading bytes are inspected.
const SniffLen = 3072

var (
	ErrNotImage   = errors.New("File must be an image")
	ErrScriptable = errors.New("SVG/XML images are not supported")
)

// blocked lists image/* types that can carry script
var blocked = map[string]bool{
	"image/svg+xml": true,
}

// ValidateImageBySniff checks the first bytes of an upload (head) and returns
// the detected MIME type and a canonical extension. The declared filename and
// Content-Type are never trusted.
func ValidateImageBySniff(head []byte) (string, string, error) {
	detected := mimetype.Detect(head)
	mime := detected.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	if blocked[mime] {
		return "", "", ErrScriptable
	}
	// Block obvious scriptable types regardless of what the client claims
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/html") || m.Is("text/xml") {
			return "", "", ErrScriptable
		}
	}

	if !strings.HasPrefix(mime, "image/") {
		return "", "", ErrNotImage
	}

	return mime, detected.Extension(), nil
}
