// Package notify posts operator messages about resources that could not be
// classified.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Sink delivers a message to operators. Delivery failures are logged by the
// sink and never returned.
type Sink interface {
	Notify(ctx context.Context, msg string)
}

// LogSink writes messages to the log. It stands in when no chat channel is
// configured.
type LogSink struct{}

// Notify logs msg.
func (LogSink) Notify(_ context.Context, msg string) {
	zap.L().Info("[instead of slack] " + msg)
}

// messagePrefix marks every message posted by the detector.
const messagePrefix = "[PCode BOT] "

const defaultSlackURL = "https://slack.com/api"

// SlackSink posts messages to a Slack channel with chat.postMessage.
type SlackSink struct {
	token   string
	channel string
	baseURL string
	client  *http.Client
}

// NewSlackSink creates a SlackSink. An empty baseURL uses the public API.
func NewSlackSink(token, channel, baseURL string) *SlackSink {
	if baseURL == "" {
		baseURL = defaultSlackURL
	}
	return &SlackSink{
		token:   token,
		channel: channel,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// New returns a SlackSink when a token is configured and a LogSink otherwise.
func New(token, channel, baseURL string) Sink {
	if token == "" {
		return LogSink{}
	}
	return NewSlackSink(token, channel, baseURL)
}

// Notify posts msg to the channel.
func (s *SlackSink) Notify(ctx context.Context, msg string) {
	if err := s.post(ctx, messagePrefix+msg); err != nil {
		zap.L().Error("notify: slack delivery failed",
			zap.String("channel", s.channel),
			zap.Error(err),
		)
	}
}

func (s *SlackSink) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"channel": s.channel, "text": text})
	if err != nil {
		return eris.Wrap(err, "notify: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: post message")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: slack returned status %d", resp.StatusCode)
	}

	// Slack reports API errors in the body with a 200 status.
	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return eris.Wrap(err, "notify: decode slack response")
	}
	if !body.OK {
		return eris.Errorf("notify: slack error %q", body.Error)
	}
	return nil
}
