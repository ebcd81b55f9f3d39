package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// Telegram posts Markdown messages through the Bot API.
type Telegram struct {
	BotToken string
	ChatID   string
	On       bool
	BaseURL  string
	Client   *http.Client
}

func NewTelegram(enabled bool, botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: strings.TrimSpace(botToken),
		ChatID:   strings.TrimSpace(chatID),
		On:       enabled,
		BaseURL:  telegramAPI,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) configured() bool {
	return t != nil && t.BotToken != "" && t.ChatID != ""
}

func (t *Telegram) Enabled() bool { return t != nil && t.On && t.configured() }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, title, text string) error {
	if !t.Enabled() {
		return ErrDisabled
	}
	msg := text
	if title != "" {
		msg = "*" + title + "*\n\n" + text
	}
	body, _ := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       msg,
		"parse_mode": "Markdown",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req)
}

// CheckConnection calls getMe to verify the bot token.
func (t *Telegram) CheckConnection(ctx context.Context) error {
	if !t.configured() {
		return ErrDisabled
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getMe"), nil)
	if err != nil {
		return err
	}
	return t.do(req)
}

func (t *Telegram) Status() ChannelStatus {
	st := ChannelStatus{Channel: "telegram", Enabled: t != nil && t.On, Configured: t.configured()}
	if t == nil {
		return st
	}
	st.Masked = map[string]string{}
	if t.BotToken != "" {
		st.Masked["bot_token"] = mask(t.BotToken, 10, 0)
	}
	if t.ChatID != "" {
		st.Masked["chat_id"] = mask(t.ChatID, 3, 2)
	}
	return st
}

func (t *Telegram) endpoint(method string) string {
	return strings.TrimRight(t.BaseURL, "/") + "/bot" + t.BotToken + "/" + method
}

func (t *Telegram) do(req *http.Request) error {
	resp, err := t.Client.Do(req)
	if err != nil {
		// the URL carries the token
		return fmt.Errorf("telegram request failed: %s", redact(err.Error(), t.BotToken))
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var out telegramResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode >= 400 || !out.OK {
		if out.Description != "" {
			return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, out.Description)
		}
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<token>")
}
