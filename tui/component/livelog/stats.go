package livelog

import (
	"fmt"
	"strings"
	"time"

	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
)

const sidebarWidth = 22

type statsModel struct {
	total       int
	byVerdict   map[gatekeeper.VerdictKind]int
	byResult    map[audit.Result]int
	byCheck     map[string]int
	guilds      map[string]bool
	recentTimes []time.Time
}

func newStatsModel() statsModel {
	return statsModel{
		byVerdict: make(map[gatekeeper.VerdictKind]int),
		byResult:  make(map[audit.Result]int),
		byCheck:   make(map[string]int),
		guilds:    make(map[string]bool),
	}
}

func (s *statsModel) record(r *audit.Record) {
	s.total++
	s.byVerdict[r.Verdict]++
	s.byResult[r.Result]++
	if r.CheckKey != "" {
		s.byCheck[r.CheckKey]++
	}
	s.guilds[r.GuildID] = true
	s.recentTimes = append(s.recentTimes, r.Timestamp)
	if len(s.recentTimes) > 120 {
		s.recentTimes = s.recentTimes[1:]
	}
}

func (s *statsModel) perMinute() int {
	if len(s.recentTimes) < 2 {
		return 0
	}
	first := s.recentTimes[0]
	last := s.recentTimes[len(s.recentTimes)-1]
	dur := last.Sub(first)
	if dur < time.Second {
		return 0
	}
	return int(float64(len(s.recentTimes)) / dur.Minutes())
}

func (s statsModel) view(height int) string {
	var b strings.Builder

	b.WriteString(sidebarHeaderStyle.Render("Stats"))
	b.WriteByte('\n')
	b.WriteString(fmt.Sprintf(" Records: %s\n", sidebarValueStyle.Render(fmt.Sprintf("%d", s.total))))
	b.WriteString(fmt.Sprintf(" Rate:    %s\n", sidebarValueStyle.Render(fmt.Sprintf("%d/min", s.perMinute()))))
	b.WriteByte('\n')

	b.WriteString(sidebarHeaderStyle.Render("By Verdict"))
	b.WriteByte('\n')
	for _, v := range []gatekeeper.VerdictKind{gatekeeper.VerdictBlock, gatekeeper.VerdictReportOnly} {
		if count := s.byVerdict[v]; count > 0 {
			vs := verdictStyleFor(v)
			label := fmt.Sprintf(" %s %-8s", vs.symbol, string(v))
			b.WriteString(fmt.Sprintf("%s %s\n",
				sidebarLabelStyle.Render(label),
				sidebarValueStyle.Render(fmt.Sprintf("%d", count))))
		}
	}
	b.WriteByte('\n')

	b.WriteString(sidebarHeaderStyle.Render("By Result"))
	b.WriteByte('\n')
	for _, r := range []audit.Result{audit.ResultSuccess, audit.ResultError, audit.ResultSkipped} {
		if count := s.byResult[r]; count > 0 {
			styled := resultStyleFor(r).Render(fmt.Sprintf("%-8s", string(r)))
			b.WriteString(fmt.Sprintf(" %s %s\n", styled, sidebarValueStyle.Render(fmt.Sprintf("%d", count))))
		}
	}

	if len(s.byCheck) > 0 {
		b.WriteByte('\n')
		b.WriteString(sidebarHeaderStyle.Render("Blocking Checks"))
		b.WriteByte('\n')
		for key, count := range s.byCheck {
			b.WriteString(fmt.Sprintf(" %s %s\n",
				sidebarLabelStyle.Render(fmt.Sprintf("%-14s", key)),
				sidebarValueStyle.Render(fmt.Sprintf("%d", count))))
		}
	}

	return sidebarStyle.Width(sidebarWidth).Height(height).Render(b.String())
}
