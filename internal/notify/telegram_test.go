package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type tgRequest struct {
	path string
	body map[string]any
}

func telegramServer(t *testing.T, status int, reply string) (*httptest.Server, *[]tgRequest) {
	t.Helper()
	var reqs []tgRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := tgRequest{path: r.URL.Path}
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		reqs = append(reqs, rec)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)
	return ts, &reqs
}

func TestTelegram_SendMessage(t *testing.T) {
	ts, reqs := telegramServer(t, 200, `{"ok":true}`)
	tg := NewTelegram(true, "123456:ABCDEF", "-100777")
	tg.BaseURL = ts.URL

	require.NoError(t, tg.Send(context.Background(), "Title", "Body"))
	require.Len(t, *reqs, 1)

	got := (*reqs)[0]
	require.Equal(t, "/bot123456:ABCDEF/sendMessage", got.path)
	require.Equal(t, "-100777", got.body["chat_id"])
	require.Equal(t, "Markdown", got.body["parse_mode"])
	require.Equal(t, "*Title*\n\nBody", got.body["text"])
}

func TestTelegram_ErrorDescription(t *testing.T) {
	ts, _ := telegramServer(t, 400, `{"ok":false,"description":"Bad Request: chat not found"}`)
	tg := NewTelegram(true, "123456:ABCDEF", "-1")
	tg.BaseURL = ts.URL

	err := tg.Send(context.Background(), "", "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "chat not found")
}

func TestTelegram_DisabledOrBlankCredentials(t *testing.T) {
	ts, reqs := telegramServer(t, 200, `{"ok":true}`)

	for _, tg := range []*Telegram{
		NewTelegram(false, "123456:ABCDEF", "-1"),
		NewTelegram(true, "", "-1"),
		NewTelegram(true, "123456:ABCDEF", "  "),
	} {
		tg.BaseURL = ts.URL
		require.False(t, tg.Enabled())
		require.ErrorIs(t, tg.Send(context.Background(), "t", "x"), ErrDisabled)
	}
	require.Empty(t, *reqs)
}

func TestTelegram_CheckConnection(t *testing.T) {
	ts, reqs := telegramServer(t, 200, `{"ok":true,"result":{"id":1}}`)
	tg := NewTelegram(false, "123456:ABCDEF", "-1")
	tg.BaseURL = ts.URL

	require.NoError(t, tg.CheckConnection(context.Background()))
	require.Equal(t, "/bot123456:ABCDEF/getMe", (*reqs)[0].path)
}

func TestTelegram_TransportErrorHidesToken(t *testing.T) {
	tg := NewTelegram(true, "123456:SECRET", "-1")
	tg.BaseURL = "http://127.0.0.1:1"

	err := tg.Send(context.Background(), "", "x")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "SECRET")
}

func TestTelegram_StatusMasksCredentials(t *testing.T) {
	st := NewTelegram(true, "1234567890:ABCDEFGHIJ", "-100123456").Status()

	require.True(t, st.Enabled)
	require.True(t, st.Configured)
	require.Equal(t, "1234567890...", st.Masked["bot_token"])
	require.Equal(t, "-10...56", st.Masked["chat_id"])
	for _, v := range st.Masked {
		require.False(t, strings.Contains(v, "ABCDEFGHIJ"))
	}
}
