package notify

import (
	"context"
	"errors"

	"go.uber.org/multierr"
)

var ErrDisabled = errors.New("notifier disabled")

// Notifier is an outbound alert channel.
type Notifier interface {
	Send(ctx context.Context, title, text string) error
	// Enabled is false when the channel is switched off or lacks credentials.
	Enabled() bool
}

// ChannelStatus describes a channel without leaking its credentials.
type ChannelStatus struct {
	Channel    string            `json:"channel"`
	Enabled    bool              `json:"enabled"`
	Configured bool              `json:"configured"`
	Masked     map[string]string `json:"masked,omitempty"`
}

type statuser interface {
	Status() ChannelStatus
}

// Multi fans out to every enabled notifier and combines their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil || !n.Enabled() {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

func (m Multi) Enabled() bool {
	for _, n := range m {
		if n != nil && n.Enabled() {
			return true
		}
	}
	return false
}

func (m Multi) statuses() []ChannelStatus {
	var out []ChannelStatus
	for _, n := range m {
		if s, ok := n.(statuser); ok {
			out = append(out, s.Status())
		}
	}
	return out
}

// mask keeps the first keep runes of s and, when tail > 0, its last tail runes.
func mask(s string, keep, tail int) string {
	r := []rune(s)
	if len(r) <= keep+tail {
		return "***"
	}
	out := string(r[:keep]) + "..."
	if tail > 0 {
		out += string(r[len(r)-tail:])
	}
	return out
}
