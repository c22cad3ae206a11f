package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"concierge/pkg/bus"
	"concierge/pkg/catalog"
	"concierge/pkg/completion"
	"concierge/pkg/config"
	"concierge/pkg/flow"
	"concierge/pkg/logger"
	"concierge/pkg/ui/chat"
	"concierge/pkg/weather"
)

// app holds the collaborators shared by every command: one catalog, one
// event bus and the dispatcher that routes guest text.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	catalog    *catalog.Catalog
	events     *bus.Bus
	dispatcher *flow.Dispatcher
}

func newApp(component string) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return buildApp(cfg, appLogger.With("component", component))
}

func buildApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	completer, err := completion.New(cfg.Completion)
	if err != nil {
		return nil, fmt.Errorf("initialize completion client: %w", err)
	}

	return buildAppWith(cfg, log, completer)
}

func buildAppWith(cfg *config.Config, log *slog.Logger, completer completion.Completer) (*app, error) {
	content := catalog.NewFromConfig(cfg.Hotel)

	hotel, err := flow.NewHotel(cfg.Hotel.Name, content, weather.NewStatic(cfg.Hotel.WeatherSummary), completer)
	if err != nil {
		return nil, fmt.Errorf("configure hotel flows: %w", err)
	}

	dispatcher, err := flow.NewHotelDispatcher(hotel)
	if err != nil {
		return nil, fmt.Errorf("configure dispatcher: %w", err)
	}

	return &app{
		cfg:        cfg,
		log:        log,
		catalog:    content,
		events:     bus.New(),
		dispatcher: dispatcher,
	}, nil
}

// reply routes one line typed at the terminal, as if a guest had sent it.
func (a *app) reply(ctx context.Context, text string) (chat.Answer, error) {
	reply, err := a.dispatcher.Handle(ctx, flow.Message{Text: text, Channel: consoleChannelName, ChatID: consoleChannelName})
	if err != nil {
		return chat.Answer{Flow: reply.Flow}, err
	}

	answer := chat.Answer{Text: reply.Text, Flow: reply.Flow}
	if result := reply.Completion; result != nil {
		answer.Fallback = result.Fallback
		answer.PromptTokens = result.Usage.PromptTokens
		answer.CompletionTokens = result.Usage.CompletionTokens
	}

	return answer, nil
}

func (a *app) runtimeInfo() chat.RuntimeInfo {
	return chat.RuntimeInfo{
		HotelName: a.cfg.Hotel.Name,
		Model:     a.cfg.Completion.Model,
		Channel:   consoleChannelName,
	}
}

// logEvent writes one bus event to the process log.
func logEvent(log *slog.Logger, event bus.Event) {
	attrs := []any{"event", event.Type, "request_id", event.RequestID}
	if event.Channel != "" {
		attrs = append(attrs, "channel", event.Channel)
	}
	for key, value := range event.Payload {
		attrs = append(attrs, key, value)
	}

	switch event.Type {
	case bus.EventReplyFailed:
		log.Error("Reply failed", append(attrs, "error", event.Error)...)
	case bus.EventMessageReceived:
		log.Debug("Message received", attrs...)
	default:
		log.Info("Concierge event", attrs...)
	}
}

func watchEvents(ctx context.Context, events *bus.Bus, log *slog.Logger) {
	stream, unsubscribe := events.Subscribe(ctx, eventLogBuffer)
	go func() {
		defer unsubscribe()
		for event := range stream {
			logEvent(log, event)
		}
	}()
}
