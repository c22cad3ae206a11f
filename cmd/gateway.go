package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"concierge/pkg/admin"
	"concierge/pkg/channel"
	"concierge/pkg/channel/telegram"
	"concierge/pkg/channel/whatsapp"
	"concierge/pkg/config"
	"concierge/pkg/gateway"
	"concierge/pkg/metrics"

	"github.com/spf13/cobra"
)

const (
	telegramChannelName = "telegram"
	whatsappChannelName = "whatsapp"
	eventLogBuffer      = 128
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the concierge on every enabled channel",
	Long:  "Runs the enabled guest channels, the status server and, unless disabled, the admin panel in one process so they share the catalog.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("cmd.gateway")
		if err != nil {
			return err
		}
		defer a.events.Close()

		adapters, err := enabledAdapters(a.cfg, a.log)
		if err != nil {
			a.log.Error("Gateway configuration invalid", "error", err)
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := gateway.Options{
			Address:    a.cfg.Gateway.Address(),
			Dispatcher: a.dispatcher,
			Channels:   adapters,
			Events:     a.events,
			Metrics:    metrics.New(),
			Log:        a.log,
		}
		if a.cfg.Admin.IsEnabled() {
			panel, err := admin.New(a.cfg.Admin.Address(), a.cfg.Hotel.Name, a.catalog, a.events, a.log)
			if err != nil {
				return fmt.Errorf("configure admin panel: %w", err)
			}
			opts.Admin = panel
		}

		svc, err := gateway.NewService(opts)
		if err != nil {
			a.log.Error("Failed to initialize gateway service", "error", err)
			return err
		}

		watchEvents(runCtx, a.events, a.log)

		a.log.Info("Gateway started",
			"hotel", a.cfg.Hotel.Name,
			"channels", enabledChannelNames(adapters),
			"model", a.cfg.Completion.Model,
			"admin", a.cfg.Admin.IsEnabled(),
		)
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("Gateway runtime failed", "error", err)
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 2)

	if cfg.Channels.WhatsApp.Enabled {
		adapter, err := whatsapp.NewAdapter(cfg.Channels.WhatsApp, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", whatsappChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
