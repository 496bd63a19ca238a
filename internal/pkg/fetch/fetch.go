package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxBytes  = 25 << 20
	defaultUserAgent = "Mozilla/5.0 (compatible; ImageDataExtract/1.0)"
)

var (
	// ErrNotFound covers every reason a source image could not be retrieved:
	// non-2xx, timeout, DNS or connection failures.
	ErrNotFound = errors.New("image not found")
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrBlockedAddress rejects loopback, private, link-local and
	// unspecified destinations, redirects included.
	ErrBlockedAddress = errors.New("destination address is not public")
)

// Reasons reported to clients when a fetch fails. The underlying error
// text stays in the logs.
const (
	ReasonInvalidURL     = "invalid-url"
	ReasonBlockedAddress = "blocked-address"
	ReasonTimeout        = "timeout"
	ReasonUpstreamStatus = "upstream-status"
	ReasonUnreachable    = "unreachable"
)

// NotFoundError is an ErrNotFound carrying a client-safe reason code.
type NotFoundError struct {
	Reason string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrNotFound, e.Reason, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Reason returns the reason code of a fetch failure, or "" when err is not one.
func Reason(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Reason
	}
	return ""
}

func notFound(reason string, err error) error {
	return &NotFoundError{Reason: reason, Err: err}
}

// transportFailure classifies an error from the client or the body read.
func transportFailure(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrBlockedAddress):
		return notFound(ReasonBlockedAddress, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return notFound(ReasonTimeout, err)
	}
	return notFound(ReasonUnreachable, err)
}

// Result holds downloaded image data.
type Result struct {
	Data        []byte
	ContentType string
	FileName    string
}

// Fetcher retrieves source images for extraction.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// HTTPFetcher downloads images over HTTP(S). A nil Client is replaced by one
// that only dials public addresses unless AllowPrivateNetworks is set.
type HTTPFetcher struct {
	Client               *http.Client
	Timeout              time.Duration
	MaxBytes             int64
	UserAgent            string
	AllowPrivateNetworks bool

	once    sync.Once
	guarded *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher() *HTTPFetcher {
	timeout := env.GetDuration("FETCH_TIMEOUT", DefaultTimeout)
	allowPrivate := env.GetBool("FETCH_ALLOW_PRIVATE", false)
	if allowPrivate {
		log.Warn("[Fetch] FETCH_ALLOW_PRIVATE is set, internal addresses are reachable")
	}
	return &HTTPFetcher{
		Client:               newClient(timeout, allowPrivate),
		Timeout:              timeout,
		MaxBytes:             env.GetInt64("FETCH_MAX_BYTES", DefaultMaxBytes),
		UserAgent:            defaultUserAgent,
		AllowPrivateNetworks: allowPrivate,
	}
}

func newClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = rejectNonPublic
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			// no proxy: the dialer check has to see the real destination
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			const maxRedirects = 3
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// rejectNonPublic runs after DNS resolution, once per dialed address.
func rejectNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !IsPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// IsPublicIP reports whether ip is routable on the public internet.
func IsPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}

func (f *HTTPFetcher) client(timeout time.Duration) *http.Client {
	if f.Client != nil {
		return f.Client
	}
	f.once.Do(func() {
		f.guarded = newClient(timeout, f.AllowPrivateNetworks)
	})
	return f.guarded
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, notFound(ReasonInvalidURL, err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := f.client(timeout).Do(req)
	if err != nil {
		return nil, transportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, notFound(ReasonUpstreamStatus, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, transportFailure(err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}

	ct := resp.Header.Get("Content-Type")
	// Strip MIME parameters: "image/jpeg; charset=utf-8" -> "image/jpeg"
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}

	return &Result{Data: data, ContentType: ct, FileName: fileNameFromURL(resp.Request.URL.Path)}, nil
}

func fileNameFromURL(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return "image"
	}
	return path
}
