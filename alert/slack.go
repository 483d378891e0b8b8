package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/sentinel/codec"
)

// SlackSink posts events to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	client     *http.Client
	codec      codec.Codec
	// onlyFailures suppresses alerts for passing runs.
	onlyFailures bool
}

// SlackOption configures a SlackSink.
type SlackOption func(*SlackSink)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackSink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithAlwaysNotify also posts passing runs.
func WithAlwaysNotify() SlackOption {
	return func(s *SlackSink) {
		s.onlyFailures = false
	}
}

// NewSlackSink creates a sink posting to webhookURL.
// By default only failing runs are posted.
func NewSlackSink(webhookURL string, opts ...SlackOption) *SlackSink {
	s := &SlackSink{
		webhookURL:   webhookURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		codec:        codec.Default,
		onlyFailures: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type slackMessage struct {
	Text string `json:"text"`
}

// Send implements Sink.
func (s *SlackSink) Send(ctx context.Context, e Event) error {
	if e.Passed && s.onlyFailures {
		return nil
	}

	body, err := s.codec.Marshal(slackMessage{Text: e.Summary()})
	if err != nil {
		return fmt.Errorf("slack: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack: unexpected status %d", resp.StatusCode)
	}
	return nil
}
