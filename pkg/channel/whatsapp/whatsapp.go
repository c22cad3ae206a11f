// Package whatsapp connects the concierge to WhatsApp as a linked
// multi-device client. The device session lives in a local SQLite store;
// the first run prints a pairing QR code to the terminal.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"github.com/patrickmn/go-cache"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"concierge/pkg/bus"
	"concierge/pkg/channel"
	"concierge/pkg/config"
	"concierge/pkg/logger"
)

const (
	channelName         = "whatsapp"
	messagePreviewLimit = 240
	dedupWindow         = 10 * time.Minute
	replyTimeout        = 2 * time.Minute
)

// messenger is the part of the whatsmeow client used to answer a guest.
type messenger interface {
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	SendChatPresence(ctx context.Context, jid types.JID, state types.ChatPresence, media types.ChatPresenceMedia) error
}

// Adapter answers guests who write to the hotel's WhatsApp number.
type Adapter struct {
	cfg       config.WhatsAppConfig
	allowFrom channel.AllowList
	seen      *cache.Cache
	qrOut     io.Writer
	log       *slog.Logger

	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup
}

// NewAdapter validates WhatsApp configuration and constructs an adapter instance.
func NewAdapter(cfg config.WhatsAppConfig, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.StorePath) == "" {
		return nil, errors.New("channels.whatsapp.store_path is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: channel.NewAllowList(cfg.AllowFrom),
		seen:      cache.New(dedupWindow, 2*dedupWindow),
		qrOut:     os.Stdout,
		log:       log.With("component", "channel.whatsapp"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run opens the device store, pairs if needed and serves messages until ctx
// is canceled. In-flight replies are allowed to finish before Run returns.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	container, err := sqlstore.New(ctx, "sqlite3", storeDSN(a.cfg.StorePath), newLogger(a.log, "store"))
	if err != nil {
		return fmt.Errorf("open whatsapp store: %w", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			a.log.Warn("Failed to close whatsapp store", "error", err)
		}
	}()

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load whatsapp device: %w", err)
	}

	client := whatsmeow.NewClient(device, newLogger(a.log, "client"))
	client.AddEventHandler(func(evt any) {
		switch v := evt.(type) {
		case *events.Message:
			a.dispatch(ctx, client, v, handler)
		case *events.Connected:
			a.log.Info("WhatsApp channel connected")
		case *events.LoggedOut:
			a.log.Warn("WhatsApp device was logged out; remove the store to pair again", "reason", v.Reason.String())
		}
	})

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("request pairing code: %w", err)
		}
		if err := client.Connect(); err != nil {
			return fmt.Errorf("connect whatsapp: %w", err)
		}
		go a.printPairingCodes(qrChan)
	} else if err := client.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp: %w", err)
	}

	a.log.Info("WhatsApp channel started", "store_path", a.cfg.StorePath)

	<-ctx.Done()
	a.drain()
	client.Disconnect()
	a.log.Info("WhatsApp channel stopped")
	return nil
}

// drain stops accepting new messages and waits for in-flight replies.
func (a *Adapter) drain() {
	a.mu.Lock()
	a.stopping = true
	a.mu.Unlock()

	a.inflight.Wait()
}

// dispatch answers a message on its own goroutine so a slow completion does
// not hold up the event stream.
func (a *Adapter) dispatch(ctx context.Context, client messenger, evt *events.Message, handler channel.Handler) {
	inbound, ok := a.inbound(evt)
	if !ok {
		return
	}
	if !a.firstDelivery(inbound.MessageID) {
		a.log.Debug("Ignoring redelivered message", "message_id", inbound.MessageID)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopping {
		return
	}

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.reply(ctx, client, evt.Info.Chat, inbound, handler)
	}()
}

func (a *Adapter) reply(ctx context.Context, client messenger, chat types.JID, inbound bus.InboundMessage, handler channel.Handler) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()

	a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", inbound.SenderID, "content", logger.Preview(inbound.Content, messagePreviewLimit))

	if err := client.SendChatPresence(ctx, chat, types.ChatPresenceComposing, types.ChatPresenceMediaText); err != nil {
		a.log.Debug("Failed to send typing indicator", "chat_id", inbound.ChatID, "error", err)
	}

	outbound, err := handler(ctx, inbound)
	if err != nil {
		a.log.Error("Failed to process inbound message", "chat_id", inbound.ChatID, "error", err)
	}

	if err := client.SendChatPresence(ctx, chat, types.ChatPresencePaused, types.ChatPresenceMediaText); err != nil {
		a.log.Debug("Failed to clear typing indicator", "chat_id", inbound.ChatID, "error", err)
	}

	responseText := channel.ReplyText(outbound)
	if responseText == "" {
		return
	}
	a.log.Info("Sending message", "chat_id", inbound.ChatID, "flow", outbound.Flow, "content", logger.Preview(responseText, messagePreviewLimit))

	if _, err := client.SendMessage(ctx, chat, &waE2E.Message{Conversation: &responseText}); err != nil {
		a.log.Error("Failed to send whatsapp message", "chat_id", inbound.ChatID, "error", err)
	}
}

// inbound converts a whatsmeow message event into a guest message. Own
// messages, groups, broadcasts and non-text messages are skipped.
func (a *Adapter) inbound(evt *events.Message) (bus.InboundMessage, bool) {
	if evt == nil || evt.Message == nil {
		return bus.InboundMessage{}, false
	}

	info := evt.Info
	if info.IsFromMe || info.IsGroup || info.Chat.Server == types.BroadcastServer {
		return bus.InboundMessage{}, false
	}

	text, ok := messageText(evt.Message)
	if !ok {
		return bus.InboundMessage{}, false
	}

	senderID := info.Sender.User
	if !a.allowFrom.Allows(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return bus.InboundMessage{}, false
	}

	return bus.InboundMessage{
		Channel:   channelName,
		SenderID:  senderID,
		ChatID:    info.Chat.String(),
		MessageID: info.ID,
		Content:   strings.TrimSpace(text),
		Metadata: map[string]string{
			"push_name": info.PushName,
		},
	}, true
}

// firstDelivery records id and reports whether it had not been seen within
// the dedup window.
func (a *Adapter) firstDelivery(id string) bool {
	if id == "" {
		return true
	}

	return a.seen.Add(id, struct{}{}, cache.DefaultExpiration) == nil
}

func (a *Adapter) printPairingCodes(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			a.log.Info("Scan the QR code with WhatsApp > Linked devices to pair the concierge")
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, a.qrOut)
		case "success":
			a.log.Info("WhatsApp device paired")
		case "timeout":
			a.log.Warn("WhatsApp pairing timed out; restart to get a new code")
		default:
			if item.Error != nil {
				a.log.Error("WhatsApp pairing failed", "event", item.Event, "error", item.Error)
			}
		}
	}
}

func messageText(message *waE2E.Message) (string, bool) {
	if text := message.GetConversation(); text != "" {
		return text, true
	}
	if extended := message.GetExtendedTextMessage(); extended != nil {
		return extended.GetText(), true
	}

	return "", false
}

func storeDSN(path string) string {
	return "file:" + strings.TrimSpace(path) + "?_foreign_keys=on"
}
