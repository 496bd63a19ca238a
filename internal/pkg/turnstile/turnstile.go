package turnstile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var (
	ErrMissingToken  = errors.New("turnstile token is empty")
	ErrMissingSecret = errors.New("turnstile secret is not set")
	ErrInvalidToken  = errors.New("turnstile validation failed")
)

// Verifier checks a CAPTCHA token issued to the browser.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// VerifyError carries the error codes siteverify returned for a rejected token.
type VerifyError struct {
	Codes []string
}

func (e *VerifyError) Error() string {
	if len(e.Codes) == 0 {
		return ErrInvalidToken.Error()
	}
	return ErrInvalidToken.Error() + ": " + strings.Join(e.Codes, ", ")
}

func (e *VerifyError) Unwrap() error { return ErrInvalidToken }

// ErrorCodes returns the siteverify codes wrapped in err, if any.
func ErrorCodes(err error) []string {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Codes
	}
	return nil
}

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
	Action      string   `json:"action"`
}

type Client struct {
	Secret     string
	VerifyURL  string
	HTTPClient *http.Client
}

var _ Verifier = (*Client)(nil)

func NewClient(secret string) *Client {
	return &Client{
		Secret:     secret,
		VerifyURL:  DefaultVerifyURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientFromEnv reads TURNSTILE_SECRET_KEY and the optional TURNSTILE_VERIFY_URL.
func NewClientFromEnv() *Client {
	c := NewClient(env.GetEnv("TURNSTILE_SECRET_KEY", ""))
	c.VerifyURL = env.GetEnv("TURNSTILE_VERIFY_URL", DefaultVerifyURL)
	return c
}

// Verify fails closed: any transport or decoding problem is an error.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return ErrMissingToken
	}
	if c.Secret == "" {
		return ErrMissingSecret
	}

	payload := map[string]string{
		"secret":   c.Secret,
		"response": token,
	}
	if remoteIP != "" {
		payload["remoteip"] = remoteIP
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode turnstile request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.VerifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build turnstile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to turnstile API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("turnstile API returned status %d", resp.StatusCode)
	}

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode turnstile API response: %w", err)
	}

	if !response.Success {
		return &VerifyError{Codes: response.ErrorCodes}
	}

	return nil
}
