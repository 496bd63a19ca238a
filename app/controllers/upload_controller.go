package controllers

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/blobstore"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/metrics/counter"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/upload"
)

var (
	errNoFile   = errors.New("no file provided")
	errTooLarge = errors.New("file too large")
)

// HandleUpload stores an image in the blob store and returns its public URL.
// Accepts multipart/form-data (field "file") or a raw body with ?filename=.
func (a *APIController) HandleUpload(c *fiber.Ctx) error {
	fileName, data, err := a.readUpload(c)
	switch {
	case errors.Is(err, errNoFile):
		return respondError(c, fiber.StatusBadRequest, "No file provided")
	case errors.Is(err, errTooLarge):
		return respondError(c, fiber.StatusRequestEntityTooLarge, "File too large")
	case err != nil:
		fiberlog.Errorf("[Upload] Reading request body: %v", err)
		return respondError(c, fiber.StatusBadRequest, "No file provided")
	}

	head := data
	if len(head) > upload.SniffLen {
		head = head[:upload.SniffLen]
	}
	mime, ext, err := upload.ValidateImageBySniff(head)
	if err != nil {
		fiberlog.Infof("[Upload] Rejected %q from %s: %v", fileName, GetClientIP(c), err)
		a.count(counter.EventUploadRejected, 1)
		return respondError(c, fiber.StatusBadRequest, upload.ErrNotImage.Error())
	}

	if a.Store == nil {
		fiberlog.Error("[Upload] No blob store configured")
		return respondError(c, fiber.StatusInternalServerError, "Error uploading file")
	}

	// Keep the client's extension when it has one, otherwise use the sniffed one
	name := fileName
	if filepath.Ext(name) == "" {
		name += ext
	}
	key := blobstore.NewUploadKey(name)

	obj, err := a.Store.Put(c.UserContext(), key, bytes.NewReader(data), int64(len(data)), mime)
	if err != nil {
		fiberlog.Errorf("[Upload] Storing %s failed: %v", key, err)
		return respondError(c, fiber.StatusInternalServerError, "Error uploading file")
	}

	fiberlog.Infof("[Upload] Stored %s (%s, %d bytes)", obj.Key, mime, len(data))
	a.count(counter.EventUpload, 1)
	return c.JSON(fiber.Map{"url": obj.URL, "success": true})
}

func (a *APIController) readUpload(c *fiber.Ctx) (string, []byte, error) {
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", nil, errNoFile
		}
		if fh.Size > a.MaxUploadBytes {
			return "", nil, errTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, a.MaxUploadBytes+1))
		if err != nil {
			return "", nil, err
		}
		if len(data) == 0 {
			return "", nil, errNoFile
		}
		if int64(len(data)) > a.MaxUploadBytes {
			return "", nil, errTooLarge
		}
		return filepath.Base(fh.Filename), data, nil
	}

	body := c.Body()
	if len(body) == 0 {
		return "", nil, errNoFile
	}
	if int64(len(body)) > a.MaxUploadBytes {
		return "", nil, errTooLarge
	}
	// fasthttp reuses the body buffer after the handler returns
	data := append([]byte(nil), body...)
	return filepath.Base(c.Query("filename", "upload")), data, nil
}
