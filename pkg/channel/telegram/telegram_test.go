package telegram

import (
	"testing"

	"github.com/mymmrac/telego"

	"concierge/pkg/config"
)

func newTestAdapter(t *testing.T, allowFrom ...string) *Adapter {
	t.Helper()

	adapter, err := NewAdapter(config.TelegramConfig{Token: "123:abc", AllowFrom: allowFrom}, nil)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	return adapter
}

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(config.TelegramConfig{Token: "  "}, nil); err == nil {
		t.Fatal("expected error when token is missing")
	}
}

func TestInboundBuildsGuestMessage(t *testing.T) {
	adapter := newTestAdapter(t)

	got, ok := adapter.inbound(telego.Update{
		UpdateID: 7,
		Message: &telego.Message{
			MessageID: 99,
			From:      &telego.User{ID: 42},
			Chat:      telego.Chat{ID: -100},
			Text:      "  Menú del día ",
		},
	})
	if !ok {
		t.Fatal("expected message to be accepted")
	}
	if got.Channel != channelName || got.SenderID != "42" || got.ChatID != "-100" || got.MessageID != "99" {
		t.Fatalf("unexpected identifiers: %+v", got)
	}
	if got.Content != "Menú del día" {
		t.Fatalf("Content = %q, want trimmed text", got.Content)
	}
	if got.Metadata["update_id"] != "7" {
		t.Fatalf("update_id = %q, want 7", got.Metadata["update_id"])
	}
}

func TestInboundSkipsUnroutableUpdates(t *testing.T) {
	adapter := newTestAdapter(t, "1")

	tests := map[string]telego.Update{
		"no message":         {UpdateID: 1},
		"no text":            {Message: &telego.Message{From: &telego.User{ID: 1}, Caption: "foto"}},
		"no sender":          {Message: &telego.Message{Text: "hola"}},
		"unauthorized guest": {Message: &telego.Message{From: &telego.User{ID: 2}, Text: "hola"}},
	}

	for name, update := range tests {
		if _, ok := adapter.inbound(update); ok {
			t.Fatalf("%s: expected update to be skipped", name)
		}
	}
}

func TestName(t *testing.T) {
	if got := newTestAdapter(t).Name(); got != "telegram" {
		t.Fatalf("Name() = %q, want telegram", got)
	}
}
