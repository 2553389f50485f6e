package livelog

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/safedep/gatekeeper/core/gatekeeper"
)

// verdictKeys binds the number keys to the verdicts they isolate. Allowed
// joins are never audited, so only block and report are listed.
var verdictKeys = []struct {
	key     string
	verdict gatekeeper.VerdictKind
	label   string
}{
	{"1", gatekeeper.VerdictBlock, "blocked joins"},
	{"2", gatekeeper.VerdictReportOnly, "report only joins"},
}

func verdictForKey(key string) (gatekeeper.VerdictKind, bool) {
	for _, vk := range verdictKeys {
		if vk.key == key {
			return vk.verdict, true
		}
	}
	return "", false
}

type helpBinding struct {
	key  string
	desc string
}

var helpGroups = []struct {
	title    string
	bindings []helpBinding
}{
	{"Audit trail", []helpBinding{
		{"p / Space", "Pause or resume polling"},
		{"c", "Clear the record list"},
		{"s", "Show or hide guild stats"},
	}},
	{"Scrolling", []helpBinding{
		{"Up / k", "Older record"},
		{"Down / j", "Newer record"},
		{"PgUp/PgDn", "Page"},
		{"g / Home", "Oldest kept record"},
		{"G / End", "Follow new records"},
	}},
	{"General", []helpBinding{
		{"?", "Close help"},
		{"q / Ctrl+C", "Quit"},
	}},
}

type helpModel struct {
	visible bool
}

func newHelpModel() helpModel {
	return helpModel{}
}

func (h *helpModel) toggle() {
	h.visible = !h.visible
}

func (h helpModel) view(width, height int, shown map[gatekeeper.VerdictKind]bool, guild string) string {
	if !h.visible {
		return ""
	}

	title := lipgloss.NewStyle().Foreground(colorWhite).Bold(true)

	var b strings.Builder
	b.WriteString(title.Render("Verdict filters"))
	b.WriteByte('\n')
	for _, vk := range verdictKeys {
		mark := "[ ] "
		if shown[vk.verdict] {
			mark = "[x] "
		}
		b.WriteString(helpKeyStyle.Render(vk.key))
		b.WriteString(helpDescStyle.Render(mark + "only " + vk.label))
		b.WriteByte('\n')
	}
	b.WriteString(helpKeyStyle.Render("0"))
	b.WriteString(helpDescStyle.Render("Show every verdict"))
	b.WriteByte('\n')
	if guild != "" {
		b.WriteString(helpDescStyle.Render("Guild " + guild + " only (--guild)"))
		b.WriteByte('\n')
	}

	for _, group := range helpGroups {
		b.WriteByte('\n')
		b.WriteString(title.Render(group.title))
		b.WriteByte('\n')
		for _, bind := range group.bindings {
			b.WriteString(helpKeyStyle.Render(bind.key))
			b.WriteString(helpDescStyle.Render(bind.desc))
			b.WriteByte('\n')
		}
	}

	overlay := helpOverlayStyle.Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
}
