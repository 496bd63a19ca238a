package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/fetch"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/metadata"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/metrics/counter"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/turnstile"
)

const reportCachePrefix = "metadata:v1:"

type metadataRequest struct {
	URL            string `json:"url"`
	TurnstileToken string `json:"turnstileToken"`
	// CaptchaToken is accepted from older front ends
	CaptchaToken string `json:"captchaToken"`
}

func (r metadataRequest) token() string {
	if t := strings.TrimSpace(r.TurnstileToken); t != "" {
		return t
	}
	return strings.TrimSpace(r.CaptchaToken)
}

// HandleMetadata verifies the CAPTCHA, downloads the image and returns its
// metadata report. Each check below ends the request on failure, in order.
func (a *APIController) HandleMetadata(c *fiber.Ctx) error {
	var req metadataRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return respondError(c, fiber.StatusBadRequest, "URL is required")
	}
	if err := a.validate.Var(req.URL, "http_url"); err != nil {
		return respondError(c, fiber.StatusBadRequest, "URL must be an absolute http(s) URL")
	}

	token := req.token()
	if token == "" {
		return respondError(c, fiber.StatusBadRequest, "CAPTCHA token is required")
	}

	ctx := c.UserContext()
	if err := a.Verifier.Verify(ctx, token, GetClientIP(c)); err != nil {
		if errors.Is(err, turnstile.ErrMissingSecret) {
			fiberlog.Error("[Metadata] TURNSTILE_SECRET_KEY is not configured")
		} else {
			fiberlog.Infof("[Metadata] CAPTCHA rejected for %s: %v", GetClientIP(c), err)
		}
		a.count(counter.EventCaptchaRejected, 1)
		details := turnstile.ErrorCodes(err)
		if details == nil {
			details = []string{"verification-failed"}
		}
		return respondErrorDetails(c, fiber.StatusBadRequest, "Invalid CAPTCHA", details)
	}

	img, err := a.Fetcher.Fetch(ctx, req.URL)
	if err != nil {
		if errors.Is(err, fetch.ErrTooLarge) {
			return respondError(c, fiber.StatusRequestEntityTooLarge, "Image exceeds size limit")
		}
		fiberlog.Infof("[Metadata] Fetch %s failed: %v", req.URL, err)
		reason := fetch.Reason(err)
		if reason == "" {
			reason = fetch.ReasonUnreachable
		}
		return respondErrorDetails(c, fiber.StatusNotFound, "Image not found", reason)
	}

	sum := sha256.Sum256(img.Data)
	cacheKey := reportCachePrefix + hex.EncodeToString(sum[:])
	if report := a.cachedReport(cacheKey); report != nil {
		report.File.FileName = img.FileName
		a.count(counter.EventExtractionCache, 1)
		a.releaseUpload(ctx, req.URL)
		return c.JSON(report)
	}

	report, err := a.Extractor.Extract(ctx, img.FileName, img.Data)
	if err != nil {
		a.count(counter.EventExtractionFail, 1)
		if errors.Is(err, metadata.ErrTimeout) {
			return respondError(c, fiber.StatusRequestTimeout, "Metadata extraction timed out")
		}
		fiberlog.Errorf("[Metadata] Extraction of %s failed: %v", req.URL, err)
		return respondError(c, fiber.StatusInternalServerError, "Request failed")
	}

	a.count(counter.EventExtraction, 1)
	a.storeReport(cacheKey, report)
	a.releaseUpload(ctx, req.URL)
	return c.JSON(report)
}

func (a *APIController) cachedReport(key string) *metadata.Report {
	if a.Cache == nil {
		return nil
	}
	raw, err := a.Cache.Get(key)
	if err != nil || raw == "" {
		return nil
	}
	var report metadata.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		fiberlog.Warnf("[Metadata] Dropping unreadable cache entry %s: %v", key, err)
		return nil
	}
	if report.SchemaVersion != metadata.SchemaVersion {
		return nil
	}
	return &report
}

func (a *APIController) storeReport(key string, report *metadata.Report) {
	if a.Cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := a.Cache.Set(key, raw, a.CacheTTL); err != nil {
		fiberlog.Warnf("[Metadata] Caching report failed: %v", err)
	}
}

// releaseUpload removes our own uploads once they were read. The job queue
// does it in the background; without one the object is deleted inline.
func (a *APIController) releaseUpload(ctx context.Context, rawURL string) {
	if a.Store == nil {
		return
	}
	key, ok := a.Store.KeyFromURL(rawURL)
	if !ok {
		return
	}

	if a.Jobs != nil {
		err := a.Jobs.ScheduleBlobDelete(ctx, key)
		if err == nil {
			return
		}
		fiberlog.Warnf("[Metadata] Queueing delete of %s failed, deleting inline: %v", key, err)
	}

	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.Store.Delete(delCtx, key); err != nil {
		fiberlog.Warnf("[Metadata] Deleting %s failed, left for the sweep: %v", key, err)
	}
}
