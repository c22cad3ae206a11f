package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"concierge/pkg/admin"

	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Run only the staff admin panel",
	Long:  "Serves the admin panel without any guest channel. Menu changes made here only reach guests when the gateway runs in the same process.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("cmd.admin")
		if err != nil {
			return err
		}
		defer a.events.Close()

		panel, err := admin.New(a.cfg.Admin.Address(), a.cfg.Hotel.Name, a.catalog, a.events, a.log)
		if err != nil {
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watchEvents(runCtx, a.events, a.log)
		return panel.Run(runCtx)
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
}
