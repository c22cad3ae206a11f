package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type mode int

const (
	modeInteractive mode = iota
	modeOneShot
)

const (
	roleGuest     = "guest"
	roleConcierge = "concierge"
	roleError     = "error"
)

type chatMessage struct {
	role    string
	content string
	answer  *Answer
}

type answerMsg struct {
	answer Answer
	err    error
}

type bootTickMsg struct{}

type model struct {
	ctx       context.Context
	replyFn   ReplyFunc
	mode      mode
	oneShot   string
	runtime   RuntimeInfo
	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	messages  []chatMessage
	width     int
	height    int
	isReady   bool
	isLoading bool
	lastErr   string
	booting   bool
	bootStep  int
	followLog bool

	promptTokens     int64
	completionTokens int64
	fallbacks        int
}

func newModel(ctx context.Context, replyFn ReplyFunc, runMode mode, text string, info RuntimeInfo) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("179"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Escriba *menu* o haga una pregunta..."
	in.Focus()
	in.CharLimit = 1000

	return &model{
		ctx:       ctx,
		replyFn:   replyFn,
		mode:      runMode,
		oneShot:   strings.TrimSpace(text),
		runtime:   info,
		theme:     defaultTheme(),
		spinner:   spin,
		input:     in,
		viewport:  viewport.New(80, 12),
		width:     100,
		height:    28,
		booting:   runMode == modeInteractive,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	if m.mode == modeOneShot {
		return m.send(m.oneShot)
	}

	return bootTickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case bootTickMsg:
		if !m.booting {
			return m, nil
		}
		m.bootStep++
		if m.bootStep <= len(bootScriptLines()) {
			return m, bootTickCmd()
		}
		m.booting = false
		return m, textinput.Blink
	case tea.MouseMsg:
		if m.mode == modeInteractive && !m.booting {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case answerMsg:
		m.receive(typed)
		if m.mode == modeOneShot {
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}
		if m.booting || m.mode == modeOneShot {
			return m, nil
		}
		if m.handleViewportKey(typed) {
			return m, nil
		}
		if typed.String() == "enter" {
			return m, m.submit()
		}
	}

	if m.mode != modeInteractive {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) submit() tea.Cmd {
	if m.isLoading {
		return nil
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if isExitCommand(text) {
		return tea.Quit
	}

	m.input.SetValue("")
	m.followLog = true
	return m.send(text)
}

func (m *model) send(text string) tea.Cmd {
	m.lastErr = ""
	m.messages = append(m.messages, chatMessage{role: roleGuest, content: text})
	m.isLoading = true
	m.refreshViewport(true)
	return tea.Batch(m.spinner.Tick, replyCmd(m.ctx, m.replyFn, text))
}

func (m *model) receive(msg answerMsg) {
	m.isLoading = false
	if msg.err != nil {
		m.lastErr = msg.err.Error()
		m.messages = append(m.messages, chatMessage{role: roleError, content: m.lastErr})
		m.refreshViewport(false)
		return
	}

	answer := msg.answer
	m.lastErr = ""
	m.messages = append(m.messages, chatMessage{role: roleConcierge, content: answer.Text, answer: &answer})
	m.promptTokens += answer.PromptTokens
	m.completionTokens += answer.CompletionTokens
	if answer.Fallback {
		m.fallbacks++
	}
	m.refreshViewport(false)
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.mode == modeOneShot {
		return m.oneShotView()
	}

	header := m.theme.header.Width(m.width - 2).Render("🛎️  " + displayOrNA(m.runtime.HotelName) + " · Conserjería")
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("─", max(8, m.width-2)))
	if m.booting {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.theme.headerMeta.Render("abriendo recepción"), line, m.bootView())
	}

	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"canal:%s · modelo:%s · mensajes:%d · respaldos:%d · tokens(in/out):%d/%d",
		displayOrNA(m.runtime.Channel),
		displayOrNA(m.runtime.Model),
		guestTurns(m.messages),
		m.fallbacks,
		m.promptTokens,
		m.completionTokens,
	))

	status := m.theme.status.Render("Enter enviar · PgUp/PgDn desplazar · End último · Ctrl+C/Esc salir")
	if m.isLoading {
		status = m.theme.statusBusy.Render(m.spinner.View() + " preparando respuesta...")
	}
	if m.lastErr != "" {
		status = m.theme.statusErr.Render("la última consulta falló, intente de nuevo")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("Huésped")+" "+m.theme.hint.Render("(salir, exit o :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	h := m.height - 10
	if m.mode == modeOneShot {
		h = m.height - 6
	}

	m.viewport.Width = max(50, m.width-6)
	m.viewport.Height = max(8, h)
	m.input.Width = m.viewport.Width - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset

	sections := make([]string, 0, len(m.messages))
	for _, item := range m.messages {
		sections = append(sections, m.renderMessage(item, m.viewport.Width))
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderMessage(item chatMessage, width int) string {
	switch item.role {
	case roleGuest:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.guestTitle.Render("Huésped"),
			m.theme.guestBox.Width(width).Render(strings.TrimSpace(item.content)),
		)
	case roleConcierge:
		body := strings.TrimSpace(item.content)
		if item.answer != nil {
			body += "\n\n" + m.theme.hint.Render(answerFooter(*item.answer))
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.conciergeTitle.Render("Conserje"),
			m.theme.conciergeBox.Width(width).Render(body),
		)
	default:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.errorTitle.Render("Error"),
			m.theme.errorBox.Width(width).Render(strings.TrimSpace(item.content)),
		)
	}
}

func (m *model) oneShotView() string {
	width := max(40, m.width-6)
	parts := make([]string, 0, 2)
	for _, item := range m.messages {
		parts = append(parts, m.renderMessage(item, width))
	}
	if m.isLoading {
		parts = append(parts, m.theme.statusBusy.Render(m.spinner.View()+" preparando respuesta..."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m *model) bootView() string {
	script := bootScriptLines()
	count := min(m.bootStep, len(script))

	visible := make([]string, 0, count+1)
	for _, line := range script[:count] {
		visible = append(visible, m.theme.bootLine.Render(line))
	}
	if m.bootStep >= len(script) {
		visible = append(visible, m.theme.bootDone.Render("recepción abierta"))
	}

	return m.theme.viewport.Width(m.width - 2).Render(strings.Join(visible, "\n"))
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		m.followLog = m.viewport.AtBottom()
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
	default:
		return false
	}

	return true
}

// handleViewportMouse scrolls on wheel events and ignores everything else.
func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
		m.followLog = false
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
		m.followLog = m.viewport.AtBottom()
	default:
		return false
	}

	return true
}

func bootTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return bootTickMsg{}
	})
}

func bootScriptLines() []string {
	return []string{
		"cargando menú del día",
		"revisando actividades y restaurantes",
		"consultando el clima",
		"llamando al conserje",
	}
}

func replyCmd(ctx context.Context, replyFn ReplyFunc, text string) tea.Cmd {
	return func() tea.Msg {
		answer, err := replyFn(ctx, text)
		return answerMsg{answer: answer, err: err}
	}
}

func answerFooter(answer Answer) string {
	footer := "flujo: " + displayOrNA(answer.Flow)
	if answer.Fallback {
		footer += " · respuesta de respaldo"
	}
	if answer.PromptTokens > 0 || answer.CompletionTokens > 0 {
		footer += fmt.Sprintf(" · tokens in/out: %d/%d", answer.PromptTokens, answer.CompletionTokens)
	}

	return footer
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func guestTurns(messages []chatMessage) int {
	count := 0
	for _, message := range messages {
		if message.role == roleGuest {
			count++
		}
	}

	return count
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", "salir", ":q":
		return true
	default:
		return false
	}
}
