package livelog

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/tui"
)

const (
	colTimeWidth    = 8  // "15:04:05"
	colIconWidth    = 1  // single symbol
	colGuildWidth   = 10 // trailing digits of a snowflake
	colVerdictWidth = 6  // "report"
	colActionWidth  = 6  // "kick  "
	colSpacing      = 6
	colMinDetail    = 15
	colMaxDetail    = 120
)

func fixedColumnsWidth() int {
	return colTimeWidth + colIconWidth + colGuildWidth + colVerdictWidth + colActionWidth + colSpacing
}

func detailWidth(streamWidth int) int {
	avail := streamWidth - fixedColumnsWidth()
	if avail < colMinDetail {
		return colMinDetail
	}
	if avail > colMaxDetail {
		return colMaxDetail
	}
	return avail
}

func formatRecord(r *audit.Record, width int) string {
	vs := verdictStyleFor(r.Verdict)
	iconStyle := lipgloss.NewStyle().Foreground(vs.color)

	ts := recordTimeStyle.Render(tui.FormatTimeShort(r.Timestamp.Local()))
	icon := iconStyle.Render(vs.symbol)
	guild := lipgloss.NewStyle().Foreground(colorDim).Render(fmt.Sprintf("%-*s", colGuildWidth, shortGuild(r.GuildID)))
	verdict := iconStyle.Render(fmt.Sprintf("%-*s", colVerdictWidth, string(r.Verdict)))
	action := fmt.Sprintf("%-*s", colActionWidth, string(r.Action))

	detail := tui.TruncateString(recordDetail(r), detailWidth(width))

	var resultSuffix string
	if r.Result != audit.ResultSuccess {
		resultSuffix = " " + resultStyleFor(r.Result).Render(string(r.Result))
	}

	return fmt.Sprintf("%s %s %s %s %s %s%s", ts, icon, guild, verdict, action, detail, resultSuffix)
}

func recordDetail(r *audit.Record) string {
	who := r.Username
	if who == "" {
		who = r.MemberID
	}

	if r.CheckKey != "" {
		return fmt.Sprintf("%s  %s: %s", who, r.CheckKey, r.Reason)
	}
	if len(r.Reports) > 0 {
		first := r.Reports[0]
		if len(r.Reports) == 1 {
			return fmt.Sprintf("%s  %s: %s", who, first.CheckKey, first.Message)
		}
		return fmt.Sprintf("%s  %s: %s (+%d)", who, first.CheckKey, first.Message, len(r.Reports)-1)
	}
	return who
}

func shortGuild(id string) string {
	if len(id) <= colGuildWidth {
		return id
	}
	return id[len(id)-colGuildWidth:]
}
