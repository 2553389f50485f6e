package livelog

import (
	"strings"

	"github.com/safedep/gatekeeper/core/gatekeeper"
)

// footerModel is the bottom status line. It names what the record list
// is narrowed to so a quiet stream is not mistaken for a quiet guild.
type footerModel struct {
	guild      string
	verdicts   []gatekeeper.VerdictKind
	paused     bool
	scrollLock bool
	lastError  string
}

func newFooterModel(guild string) footerModel {
	return footerModel{guild: guild}
}

func (f footerModel) view(width int) string {
	pause := "p pause"
	if f.paused {
		pause = "p resume"
	}
	parts := []string{" q quit", pause, "1/2/0 verdicts", "? help"}

	if len(f.verdicts) > 0 {
		names := make([]string, 0, len(f.verdicts))
		for _, v := range f.verdicts {
			names = append(names, string(v))
		}
		parts = append(parts, "showing "+strings.Join(names, "+"))
	}
	if f.guild != "" {
		parts = append(parts, "guild "+f.guild)
	}
	if f.paused {
		parts = append(parts, pauseIndicatorStyle.Render("PAUSED"))
	}
	if f.scrollLock {
		parts = append(parts, scrollLockStyle.Render("SCROLL"))
	}
	if f.lastError != "" {
		parts = append(parts, "poll failed: "+f.lastError)
	}

	return footerStyle.Width(width).Render(strings.Join(parts, "  "))
}
