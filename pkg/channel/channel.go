package channel

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"concierge/pkg/bus"
)

// Handler processes one inbound channel message and returns an outbound reply.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one external transport (for example WhatsApp) into the concierge.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

// ReplyText picks the text an adapter should send for a handler result.
// An empty string means nothing is sent. Handler errors are never shown to
// guests; only Content or the guest-facing Error text is.
func ReplyText(out bus.OutboundMessage) string {
	if text := strings.TrimSpace(out.Content); text != "" {
		return text
	}

	return strings.TrimSpace(out.Error)
}

// AllowList holds the sender IDs permitted to talk to a channel. An empty
// list permits everyone.
type AllowList map[string]struct{}

// NewAllowList normalizes allow_from values into a lookup set.
func NewAllowList(allowFrom []string) AllowList {
	ids := lo.Compact(lo.Map(allowFrom, func(value string, _ int) string {
		return strings.TrimSpace(value)
	}))
	if len(ids) == 0 {
		return nil
	}

	return lo.Keyify(ids)
}

// Allows reports whether senderID may use the channel.
func (a AllowList) Allows(senderID string) bool {
	if len(a) == 0 {
		return true
	}

	_, ok := a[strings.TrimSpace(senderID)]
	return ok
}
