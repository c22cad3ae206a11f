package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Answer is one concierge reply as shown in the console.
type Answer struct {
	Text             string
	Flow             string
	Fallback         bool
	PromptTokens     int64
	CompletionTokens int64
}

// ReplyFunc routes one guest line through the concierge flows.
type ReplyFunc func(ctx context.Context, text string) (Answer, error)

// RuntimeInfo is displayed in the console header.
type RuntimeInfo struct {
	HotelName string
	Model     string
	Channel   string
}

func RunInteractive(ctx context.Context, replyFn ReplyFunc, info RuntimeInfo) error {
	model := newModel(ctx, replyFn, modeInteractive, "", info)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner(info.HotelName))
	return nil
}

func RunOneShot(ctx context.Context, replyFn ReplyFunc, text string, info RuntimeInfo) error {
	model := newModel(ctx, replyFn, modeOneShot, text, info)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

func renderGoodbyeBanner(hotelName string) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("24")).
		Padding(1, 2)

	return style.Render(fmt.Sprintf("🛎️  Gracias por su visita a %s", displayOrNA(hotelName)))
}
