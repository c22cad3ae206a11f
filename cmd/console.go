package cmd

import (
	"concierge/pkg/ui/chat"

	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the concierge from the terminal",
	Long:  "Starts an interactive terminal chat that routes every line through the same flows guests reach over WhatsApp.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("cmd.console")
		if err != nil {
			return err
		}
		defer a.events.Close()

		return chat.RunInteractive(cmd.Context(), a.reply, a.runtimeInfo())
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
