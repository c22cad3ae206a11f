package chat

import "github.com/charmbracelet/lipgloss"

type theme struct {
	header         lipgloss.Style
	headerMeta     lipgloss.Style
	divider        lipgloss.Style
	bootLine       lipgloss.Style
	bootDone       lipgloss.Style
	guestBox       lipgloss.Style
	guestTitle     lipgloss.Style
	conciergeBox   lipgloss.Style
	conciergeTitle lipgloss.Style
	errorBox       lipgloss.Style
	errorTitle     lipgloss.Style
	status         lipgloss.Style
	statusBusy     lipgloss.Style
	statusErr      lipgloss.Style
	hint           lipgloss.Style
	inputLabel     lipgloss.Style
	input          lipgloss.Style
	viewport       lipgloss.Style
}

// defaultTheme is the lobby palette: navy and brass with a soft error red.
func defaultTheme() theme {
	title := func(bg string) lipgloss.Style {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color(bg)).
			Padding(0, 1)
	}
	box := func(border string) lipgloss.Style {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(border)).
			Padding(0, 1)
	}

	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24")),
		headerMeta:     lipgloss.NewStyle().Foreground(lipgloss.Color("187")),
		divider:        lipgloss.NewStyle().Foreground(lipgloss.Color("179")),
		bootLine:       lipgloss.NewStyle().Foreground(lipgloss.Color("180")),
		bootDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true),
		guestBox:       box("179"),
		guestTitle:     title("179"),
		conciergeBox:   box("67"),
		conciergeTitle: title("67"),
		errorBox:       box("203").Foreground(lipgloss.Color("203")),
		errorTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Padding(0, 1),
		status:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		statusBusy: lipgloss.NewStyle().Foreground(lipgloss.Color("222")).Bold(true),
		statusErr:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		hint:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		inputLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		input:      box("173"),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("24")).
			Padding(0, 1),
	}
}
