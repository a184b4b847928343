package imagevendor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mueck/internal/domain"
	"mueck/internal/infra"
)

// StatusError reports a non-2xx vendor response.
type StatusError struct {
	Vendor Kind
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Vendor, e.Code, e.Body)
}

// notSentError marks failures that happened before the request left the process.
type notSentError struct{ err error }

func (e *notSentError) Error() string { return e.err.Error() }
func (e *notSentError) Unwrap() error { return e.err }

// NotCreated reports whether a Submit error proves the vendor created no job: the request
// was never sent, or the vendor answered with a status that rules one out. Transport
// failures, timeouts and gateway errors leave the outcome unknown.
func NotCreated(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrEmptyPrompt) || errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	var ns *notSentError
	if errors.As(err, &ns) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code != http.StatusBadGateway && se.Code != http.StatusGatewayTimeout
	}
	return false
}

// ClientOptions is shared by the HTTP vendors.
type ClientOptions struct {
	Endpoint       string
	APIKey         string
	HTTPClient     *http.Client
	Limiter        *rate.Limiter
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// jsonClient paces and authenticates JSON calls to one vendor.
type jsonClient struct {
	kind       Kind
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *infra.Logger
}

func newJSONClient(kind Kind, opts ClientOptions) *jsonClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &jsonClient{
		kind:       kind,
		endpoint:   strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: httpClient,
		limiter:    opts.Limiter,
		logger:     logger,
	}
}

// NewLimiter builds the per-vendor pacing limiter. rps <= 0 disables pacing.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (c *jsonClient) hasCredentials() bool {
	return c.apiKey != ""
}

// do sends body (if any) as JSON and returns the raw response body.
func (c *jsonClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &notSentError{fmt.Errorf("%s: rate limit: %w", c.kind, err)}
		}
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &notSentError{fmt.Errorf("%s: encode request: %w", c.kind, err)}
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, &notSentError{fmt.Errorf("%s: build request: %w", c.kind, err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", c.kind, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.kind, err)
	}
	c.logger.Debug().
		Str("vendor", string(c.kind)).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(started)).
		Msg("imagevendor: call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Vendor: c.kind, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: response is not json", c.kind)
	}
	return json.RawMessage(data), nil
}

// IsStatus reports whether err is a vendor StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
