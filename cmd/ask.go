package cmd

import (
	"fmt"
	"strings"

	"concierge/pkg/ui/chat"

	"github.com/spf13/cobra"
)

const consoleChannelName = "console"

var (
	askText  string
	askPlain bool
)

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Send one guest message and print the reply",
	Long:  "Routes one message through the keyword flows and the LLM concierge exactly as a guest message would be, then prints the reply.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("cmd.ask")
		if err != nil {
			return err
		}
		defer a.events.Close()

		text := resolveText(args)
		if !askPlain {
			return chat.RunOneShot(cmd.Context(), a.reply, text, a.runtimeInfo())
		}

		answer, err := a.reply(cmd.Context(), text)
		if err != nil {
			return fmt.Errorf("flow %s failed: %w", answer.Flow, err)
		}

		printConciergeMessage(answer.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askText, "text", "t", "", "message text to send")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "print the reply without the terminal UI")
}

// resolveText prefers --text over positional args. An empty result is a
// valid guest message and gets the welcome flow.
func resolveText(args []string) string {
	if value := strings.TrimSpace(askText); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func printConciergeMessage(message string) {
	lines := conciergeLines(message)
	for _, line := range lines {
		fmt.Printf("🛎️  %s\n", line)
	}
	if len(lines) > 0 {
		fmt.Println()
	}
}

func conciergeLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}
