package blobstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("blob not found")

// Object describes one stored upload.
type Object struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Store is the narrow surface the handlers and the cleanup sweep need from
// the object store.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*Object, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(rawURL string) (string, bool)
}

// NewUploadKey returns a randomized key under UploadPrefix that keeps the
// original (lowercased) file extension.
func NewUploadKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, "/\\?#") {
		ext = ""
	}
	return UploadPrefix + uuid.New().String() + ext
}

// ExtensionForContentType is used when the client did not send a filename.
func ExtensionForContentType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/avif":
		return ".avif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	case "image/heic":
		return ".heic"
	default:
		return ""
	}
}
