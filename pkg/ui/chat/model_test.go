package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func scrollableModel() *model {
	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{})
	m.viewport.Width = 40
	m.viewport.Height = 5
	m.viewport.SetContent(strings.Repeat("line\n", 40))
	m.viewport.GotoBottom()
	return m
}

func TestHandleViewportMouseWheelUpDisablesFollowLog(t *testing.T) {
	t.Parallel()

	m := scrollableModel()
	m.followLog = true

	previousOffset := m.viewport.YOffset
	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	if !handled {
		t.Fatal("expected wheel-up mouse event to be handled")
	}
	if m.followLog {
		t.Fatal("expected followLog to be disabled after wheel-up scroll")
	}
	if m.viewport.YOffset >= previousOffset {
		t.Fatalf("expected YOffset to decrease after wheel-up scroll, got %d want < %d", m.viewport.YOffset, previousOffset)
	}
}

func TestHandleViewportMouseWheelDownAtBottomEnablesFollowLog(t *testing.T) {
	t.Parallel()

	m := scrollableModel()
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	m.viewport.SetYOffset(max(0, maxOffset-1))
	m.followLog = false

	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	if !handled {
		t.Fatal("expected wheel-down mouse event to be handled")
	}
	if !m.viewport.AtBottom() {
		t.Fatalf("expected viewport to reach bottom, got YOffset=%d", m.viewport.YOffset)
	}
	if !m.followLog {
		t.Fatal("expected followLog to re-enable when wheel-down reaches bottom")
	}
}

func TestHandleViewportMouseIgnoresNonWheelEvents(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{})
	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if handled {
		t.Fatal("expected non-wheel mouse event to be ignored")
	}
}

func TestReceiveTracksTokensAndFallbacks(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{HotelName: "Hotel Paradise"})
	m.isLoading = true
	m.booting = false

	m.receive(answerMsg{answer: Answer{Text: "Tenemos spa", Flow: "concierge", PromptTokens: 40, CompletionTokens: 8}})
	m.receive(answerMsg{answer: Answer{Text: "Lo siento", Flow: "concierge", Fallback: true}})

	require.False(t, m.isLoading)
	require.Equal(t, int64(40), m.promptTokens)
	require.Equal(t, int64(8), m.completionTokens)
	require.Equal(t, 1, m.fallbacks)
	require.Len(t, m.messages, 2)
	require.Equal(t, roleConcierge, m.messages[1].role)
	require.Contains(t, m.View(), "respaldos:1")
}

func TestReceiveErrorShowsErrorCard(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{})
	m.receive(answerMsg{err: errors.New("flow weather: boom")})

	require.Equal(t, "flow weather: boom", m.lastErr)
	require.Equal(t, roleError, m.messages[0].role)
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	m := newModel(context.Background(), nil, modeInteractive, "", RuntimeInfo{})

	m.input.SetValue("   ")
	require.Nil(t, m.submit())
	require.Empty(t, m.messages)

	m.input.SetValue("salir")
	cmd := m.submit()
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())

	m.input.SetValue("menu")
	require.NotNil(t, m.submit())
	require.True(t, m.isLoading)
	require.Empty(t, m.input.Value())
	require.Equal(t, chatMessage{role: roleGuest, content: "menu"}, m.messages[0])

	m.input.SetValue("clima")
	require.Nil(t, m.submit(), "a second message waits for the pending reply")
}

func TestReplyCmdCallsReplyFunc(t *testing.T) {
	t.Parallel()

	var got string
	replyFn := func(_ context.Context, text string) (Answer, error) {
		got = text
		return Answer{Text: "ok", Flow: "menu"}, nil
	}

	msg := replyCmd(context.Background(), replyFn, "menu")()
	require.Equal(t, "menu", got)
	require.Equal(t, answerMsg{answer: Answer{Text: "ok", Flow: "menu"}}, msg)
}

func TestAnswerFooter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		answer Answer
		want   string
	}{
		{answer: Answer{Flow: "meals"}, want: "flujo: meals"},
		{answer: Answer{}, want: "flujo: n/a"},
		{answer: Answer{Flow: "concierge", Fallback: true}, want: "flujo: concierge · respuesta de respaldo"},
		{answer: Answer{Flow: "concierge", PromptTokens: 12, CompletionTokens: 3}, want: "flujo: concierge · tokens in/out: 12/3"},
	}

	for _, tt := range tests {
		if got := answerFooter(tt.answer); got != tt.want {
			t.Fatalf("answerFooter(%+v) = %q, want %q", tt.answer, got, tt.want)
		}
	}
}

func TestIsExitCommand(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"exit", " SALIR ", ":q", "/exit"} {
		require.True(t, isExitCommand(input), input)
	}
	for _, input := range []string{"menu", "salir a cenar"} {
		require.False(t, isExitCommand(input), input)
	}
}
