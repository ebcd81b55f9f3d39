package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail_Enabled(t *testing.T) {
	require.False(t, NewEmail(false, "smtp.local", 25, "", "", "a@x", []string{"b@x"}).Enabled())
	require.False(t, NewEmail(true, "", 25, "", "", "a@x", []string{"b@x"}).Enabled())
	require.False(t, NewEmail(true, "smtp.local", 25, "", "", "a@x", nil).Enabled())
	require.True(t, NewEmail(true, "smtp.local", 25, "", "", "a@x", []string{"b@x"}).Enabled())
}

func TestEmail_DisabledSendIsNoop(t *testing.T) {
	e := NewEmail(false, "smtp.local", 25, "", "", "a@x", []string{"b@x"})
	require.ErrorIs(t, e.Send(context.Background(), "t", "x"), ErrDisabled)
}

func TestEmail_MessageStripsMarkdown(t *testing.T) {
	e := NewEmail(true, "smtp.local", 25, "", "", "alerts@example.com", []string{"ops@example.com"})
	m := e.message(titleFailure, "🔸 *api*\n   URL: https://example.com/a_b")

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "To: ops@example.com")
	require.Contains(t, out, "From: alerts@example.com")
	require.NotContains(t, out, "*api*")
	require.Contains(t, out, "a_b")
}
