// Package livelog is a live terminal view of the audit trail.
package livelog

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Model struct {
	opts   Options
	width  int
	height int

	header     headerModel
	footer     footerModel
	stats      statsModel
	recordList recordListModel
	help       helpModel

	showSidebar bool
	paused      bool
	cursor      cursor
	ready       bool
}

func New(opts Options) Model {
	return Model{
		opts:        opts,
		header:      newHeaderModel(opts.GuildFilter),
		footer:      newFooterModel(opts.GuildFilter),
		stats:       newStatsModel(),
		recordList:  newRecordListModel(),
		help:        newHelpModel(),
		showSidebar: true,
	}
}

func (m Model) Init() tea.Cmd {
	since := m.opts.Since
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	return tea.Batch(
		loadInitialRecords(m.opts.Store, since, m.opts.GuildFilter, m.opts.initialLimit()),
		schedulePoll(m.opts.pollInterval()),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case newRecordsMsg:
		for _, r := range msg.records {
			m.stats.record(r)
		}
		m.recordList.append(msg.records, m.streamWidth())
		m.header.guildCount = len(m.stats.guilds)
		if msg.next != nil {
			m.cursor = *msg.next
		}
		if m.cursor.at.IsZero() {
			m.cursor.at = time.Now()
		}
		m.footer.lastError = ""
		return m, nil

	case tickMsg:
		if m.paused {
			return m, schedulePoll(m.opts.pollInterval())
		}
		return m, tea.Batch(
			pollRecords(m.opts.Store, m.cursor, m.opts.GuildFilter),
			schedulePoll(m.opts.pollInterval()),
		)

	case pollErrorMsg:
		m.footer.lastError = msg.err.Error()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "p", " ":
		m.paused = !m.paused
		m.footer.paused = m.paused
		return m, nil

	case "?":
		m.help.toggle()
		return m, nil

	case "up", "k":
		m.recordList.scrollUp(1)
		m.footer.scrollLock = !m.recordList.autoScroll
		return m, nil

	case "down", "j":
		m.recordList.scrollDown(1, m.streamHeight())
		m.footer.scrollLock = !m.recordList.autoScroll
		return m, nil

	case "pgup":
		m.recordList.scrollUp(m.streamHeight())
		m.footer.scrollLock = !m.recordList.autoScroll
		return m, nil

	case "pgdown":
		m.recordList.scrollDown(m.streamHeight(), m.streamHeight())
		m.footer.scrollLock = !m.recordList.autoScroll
		return m, nil

	case "G", "end":
		m.recordList.jumpToBottom(m.streamHeight())
		m.footer.scrollLock = false
		return m, nil

	case "g", "home":
		m.recordList.jumpToTop()
		m.footer.scrollLock = true
		return m, nil

	case "0":
		m.recordList.clearFilters()
		m.footer.verdicts = nil
		return m, nil

	case "c":
		m.recordList.clear()
		return m, nil

	case "s":
		m.showSidebar = !m.showSidebar
		return m, nil
	}

	if verdict, ok := verdictForKey(msg.String()); ok {
		m.recordList.toggleFilter(verdict)
		m.footer.verdicts = m.recordList.shownVerdicts()
	}

	return m, nil
}

func (m Model) sidebarVisible() bool {
	return m.showSidebar && m.width >= 90
}

func (m Model) streamWidth() int {
	if m.sidebarVisible() {
		return m.width - sidebarWidth
	}
	return m.width
}

func (m Model) streamHeight() int {
	return m.height - 2 // header + footer
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.header.view(m.width)
	footer := m.footer.view(m.width)

	contentHeight := m.height - 2

	if m.help.visible {
		helpOverlay := m.help.view(m.width, contentHeight, m.recordList.filters, m.opts.GuildFilter)
		return lipgloss.JoinVertical(lipgloss.Left, header, helpOverlay, footer)
	}

	streamW := m.streamWidth()
	stream := lipgloss.NewStyle().Width(streamW).Render(
		m.recordList.view(contentHeight),
	)

	var content string
	if m.sidebarVisible() {
		sidebar := m.stats.view(contentHeight)
		content = lipgloss.JoinHorizontal(lipgloss.Top, stream, sidebar)
	} else {
		content = stream
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}
