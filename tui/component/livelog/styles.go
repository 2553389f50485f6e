package livelog

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
)

var (
	colorGreen   = lipgloss.Color("#6BCB77")
	colorRed     = lipgloss.Color("#E74C3C")
	colorAmber   = lipgloss.Color("#F0AD4E")
	colorViolet  = lipgloss.Color("#9B59B6")
	colorWhite   = lipgloss.Color("#ECF0F1")
	colorDim     = lipgloss.Color("#7F8C8D")
	colorBg      = lipgloss.Color("#1E1E2E")

	headerStyle = lipgloss.NewStyle().
			Background(colorBg).
			Foreground(colorWhite).
			Bold(true).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Background(colorBg).
			Foreground(colorDim).
			Padding(0, 1)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorDim).
			Padding(0, 1)

	sidebarLabelStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	sidebarValueStyle = lipgloss.NewStyle().
				Foreground(colorWhite).
				Bold(true)

	sidebarHeaderStyle = lipgloss.NewStyle().
				Foreground(colorWhite).
				Bold(true).
				Underline(true)

	recordTimeStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	pauseIndicatorStyle = lipgloss.NewStyle().
				Foreground(colorAmber).
				Bold(true)

	scrollLockStyle = lipgloss.NewStyle().
			Foreground(colorViolet).
			Bold(true)

	helpOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorViolet).
				Padding(1, 2).
				Foreground(colorWhite)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorAmber).
			Bold(true).
			Width(12)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorWhite)
)

type verdictStyle struct {
	symbol string
	color  lipgloss.Color
}

var verdictStyles = map[gatekeeper.VerdictKind]verdictStyle{
	gatekeeper.VerdictAllow:      {symbol: "+", color: colorGreen},
	gatekeeper.VerdictBlock:      {symbol: "x", color: colorRed},
	gatekeeper.VerdictReportOnly: {symbol: "!", color: colorAmber},
}

func verdictStyleFor(verdict gatekeeper.VerdictKind) verdictStyle {
	if s, ok := verdictStyles[verdict]; ok {
		return s
	}
	return verdictStyle{symbol: "?", color: colorDim}
}

func resultStyleFor(result audit.Result) lipgloss.Style {
	switch result {
	case audit.ResultSuccess:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case audit.ResultError:
		return lipgloss.NewStyle().Foreground(colorRed)
	case audit.ResultSkipped:
		return lipgloss.NewStyle().Foreground(colorDim)
	default:
		return lipgloss.NewStyle().Foreground(colorDim)
	}
}
