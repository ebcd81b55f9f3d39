package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Slack posts alerts to an incoming webhook as a header block plus an
// mrkdwn section. The plain text field is kept for notifications.
type Slack struct {
	WebhookURL string
	Client     *http.Client
}

// NewSlack returns nil when no webhook is configured so callers can
// skip adding the channel.
func NewSlack(webhookURL string) *Slack {
	if webhookURL == "" {
		return nil
	}
	return &Slack{WebhookURL: webhookURL, Client: &http.Client{Timeout: 10 * time.Second}}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

// header blocks reject text over 150 chars.
const slackHeaderMax = 150

func slackMessageFor(title, text string) slackMessage {
	m := slackMessage{Text: text}
	if title == "" {
		return m
	}
	m.Text = title + ": " + text
	if len(title) > slackHeaderMax {
		title = title[:slackHeaderMax-3] + "..."
	}
	m.Blocks = []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: title}},
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}},
	}
	return m
}

func (s *Slack) Enabled() bool { return s != nil && s.WebhookURL != "" }

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	payload, err := json.Marshal(slackMessageFor(title, text))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	reason, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("slack: status %d: %s", resp.StatusCode, bytes.TrimSpace(reason))
}

func (s *Slack) Status() ChannelStatus {
	return ChannelStatus{Channel: "slack", Enabled: s.Enabled(), Configured: s.Enabled()}
}
