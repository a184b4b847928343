package slack

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
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mueck/internal/domain"
	"mueck/internal/infra"
)

// Target addresses an in-thread reply.
type Target struct {
	Channel  string
	ThreadTS string
	Token    string
}

// NotifierConfig configures the chat.postMessage client.
type NotifierConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	Logger     *infra.Logger
}

// Notifier posts job progress into the originating thread.
type Notifier struct {
	baseURL    string
	retryLimit int
	client     *http.Client
	logger     *infra.Logger
}

// NewNotifier builds a Notifier with defaults for missing fields.
func NewNotifier(cfg NotifierConfig) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://slack.com/api"
	}
	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Notifier{
		baseURL:    base,
		retryLimit: retries,
		client:     hc,
		logger:     logger,
	}
}

// StatusChanged reports a new job status.
func (n *Notifier) StatusChanged(ctx context.Context, target Target, status domain.Status) error {
	return n.post(ctx, target, "Status: "+title(string(status)))
}

// Completed lists the stored artifacts.
func (n *Notifier) Completed(ctx context.Context, target Target, images []domain.GeneratedImage) error {
	var text strings.Builder
	fmt.Fprintf(&text, "%s: %d image(s)", title(string(domain.StatusComplete)), len(images))
	for _, img := range images {
		text.WriteString("\n")
		text.WriteString(img.SourceURL)
		if img.Seed != 0 {
			fmt.Fprintf(&text, " (seed %d)", img.Seed)
		}
	}
	return n.post(ctx, target, text.String())
}

// Failed reports a job that cannot complete.
func (n *Notifier) Failed(ctx context.Context, target Target, reason string) error {
	return n.post(ctx, target, title(string(domain.StatusError))+": "+reason)
}

// title uses a fresh Caser per call; Casers are stateful.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

type postMessage struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Text     string `json:"text"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (n *Notifier) post(ctx context.Context, target Target, text string) error {
	if target.Channel == "" {
		return errors.New("slack: channel is required")
	}
	if target.Token == "" {
		return errors.New("slack: access token is required")
	}
	body, err := json.Marshal(postMessage{Channel: target.Channel, ThreadTS: target.ThreadTS, Text: text})
	if err != nil {
		return fmt.Errorf("slack: encode message: %w", err)
	}

	attempts := n.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		lastErr = n.send(ctx, target.Token, body)
		if lastErr == nil {
			return nil
		}
		if attempt < attempts-1 {
			timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	n.logger.Warn().Err(lastErr).Str("channel", target.Channel).Msg("slack: post message failed")
	return lastErr
}

func (n *Notifier) send(ctx context.Context, token string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out apiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("slack: decode response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("slack: api error: %s", out.Error)
	}
	return nil
}
