package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

const DefaultTimeout = 20 * time.Second

// ErrTimeout is returned when extraction does not finish within the pipeline timeout.
var ErrTimeout = errors.New("metadata extraction timed out")

// Extractor turns raw image bytes into a Report.
type Extractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (*Report, error)
}

// Pipeline is the in-process Extractor.
type Pipeline struct {
	Timeout time.Duration
}

var _ Extractor = (*Pipeline)(nil)

func NewPipeline() *Pipeline {
	return &Pipeline{Timeout: env.GetDuration("EXTRACT_TIMEOUT", DefaultTimeout)}
}

type extractResult struct {
	report *Report
	err    error
}

// Extract runs all stages in a goroutine raced against the timeout. A stage
// failing leaves its section at the placeholders.
func (p *Pipeline) Extract(ctx context.Context, fileName string, data []byte) (*Report, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan extractResult, 1)
	go func() {
		r, err := p.run(ctx, fileName, data)
		done <- extractResult{report: r, err: err}
	}()

	select {
	case res := <-done:
		if errors.Is(res.err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return res.report, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warnf("[Metadata] Extraction of %s exceeded %s", fileName, timeout)
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func (p *Pipeline) run(ctx context.Context, fileName string, data []byte) (*Report, error) {
	r := NewReport()
	var mime string

	stages := []struct {
		name string
		fn   func() error
	}{
		{"file", func() error {
			mime = fileFacts(fileName, data, r)
			return nil
		}},
		{"exif", func() error {
			exifErr := decodeEXIF(data, r)
			if exifErr != nil {
				log.Debugf("[Metadata] goexif: %v, falling back to imagemeta", exifErr)
			}
			return embeddedTags(data, imagemetaFormat(mime), r, exifErr != nil)
		}},
		{"icc", func() error {
			profile, err := jpegICCProfile(data)
			if errors.Is(err, errNoICC) {
				return nil
			}
			if err != nil {
				return err
			}
			return parseICC(profile, &r.ICCProfile)
		}},
		{"composite", func() error {
			deriveComposite(r)
			return nil
		}},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := runStage(s.name, s.fn); err != nil {
			log.Debugf("[Metadata] Stage %s on %s: %v", s.name, fileName, err)
		}
	}
	return r, nil
}

func runStage(name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("[Metadata] Stage %s panicked: %v", name, rec)
			err = fmt.Errorf("stage %s panicked: %v", name, rec)
		}
	}()
	return fn()
}
