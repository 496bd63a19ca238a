package metadata

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxHashPixels bounds full decodes done only for the perceptual hash.
const maxHashPixels = 40_000_000

// fileFacts fills the File section and returns the sniffed MIME type.
func fileFacts(fileName string, data []byte, r *Report) string {
	f := &r.File
	setString(&f.FileName, fileName)
	f.FileSize = int64(len(data))

	sum := sha256.Sum256(data)
	f.SHA256 = hex.EncodeToString(sum[:])

	mt := mimetype.Detect(data)
	mime := mt.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	f.MIMEType = mime
	if ext := strings.TrimPrefix(mt.Extension(), "."); ext != "" {
		f.FileTypeExtension = ext
		f.FileType = fileTypeName(ext)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return mime
	}
	f.ImageWidth = cfg.Width
	f.ImageHeight = cfg.Height

	if cfg.Width*cfg.Height > 0 && cfg.Width*cfg.Height <= maxHashPixels {
		if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
			if hash, err := goimagehash.DifferenceHash(img); err == nil {
				f.PerceptualHash = hash.ToString()
			}
		}
	}
	return mime
}

func fileTypeName(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "JPEG"
	case "tif", "tiff":
		return "TIFF"
	}
	return strings.ToUpper(ext)
}
