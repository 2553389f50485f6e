package livelog

import (
	"strings"

	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
)

const maxRecords = 1000

type recordListModel struct {
	items      []*audit.Record
	lines      []string
	offset     int
	autoScroll bool
	filters    map[gatekeeper.VerdictKind]bool
}

func newRecordListModel() recordListModel {
	return recordListModel{
		autoScroll: true,
		filters:    make(map[gatekeeper.VerdictKind]bool),
	}
}

func (m *recordListModel) append(records []*audit.Record, width int) {
	for _, r := range records {
		m.items = append(m.items, r)
		m.lines = append(m.lines, formatRecord(r, width))
	}
	if len(m.items) > maxRecords {
		drop := len(m.items) - maxRecords
		m.items = m.items[drop:]
		m.lines = m.lines[drop:]
		m.offset -= drop
		if m.offset < 0 {
			m.offset = 0
		}
	}
}

func (m *recordListModel) clear() {
	m.items = nil
	m.lines = nil
	m.offset = 0
	m.autoScroll = true
}

func (m *recordListModel) toggleFilter(verdict gatekeeper.VerdictKind) {
	if m.filters[verdict] {
		delete(m.filters, verdict)
	} else {
		m.filters[verdict] = true
	}
}

func (m *recordListModel) clearFilters() {
	m.filters = make(map[gatekeeper.VerdictKind]bool)
}

// shownVerdicts lists the active verdict filters in key order.
func (m recordListModel) shownVerdicts() []gatekeeper.VerdictKind {
	var shown []gatekeeper.VerdictKind
	for _, vk := range verdictKeys {
		if m.filters[vk.verdict] {
			shown = append(shown, vk.verdict)
		}
	}
	return shown
}

func (m *recordListModel) hasFilters() bool {
	return len(m.filters) > 0
}

func (m recordListModel) filteredLines() []string {
	if !m.hasFilters() {
		return m.lines
	}
	var result []string
	for i, r := range m.items {
		if m.filters[r.Verdict] {
			result = append(result, m.lines[i])
		}
	}
	return result
}

func (m *recordListModel) scrollUp(n int) {
	m.autoScroll = false
	m.offset -= n
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m *recordListModel) scrollDown(n int, viewHeight int) {
	lines := m.filteredLines()
	m.offset += n
	maxOffset := len(lines) - viewHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.offset >= maxOffset {
		m.offset = maxOffset
		m.autoScroll = true
	}
}

func (m *recordListModel) jumpToBottom(viewHeight int) {
	lines := m.filteredLines()
	m.offset = len(lines) - viewHeight
	if m.offset < 0 {
		m.offset = 0
	}
	m.autoScroll = true
}

func (m *recordListModel) jumpToTop() {
	m.offset = 0
	m.autoScroll = false
}

func (m recordListModel) view(height int) string {
	lines := m.filteredLines()

	var visible []string
	if m.autoScroll {
		start := len(lines) - height
		if start < 0 {
			start = 0
		}
		visible = lines[start:]
	} else {
		end := m.offset + height
		if end > len(lines) {
			end = len(lines)
		}
		start := m.offset
		if start > end {
			start = end
		}
		visible = lines[start:end]
	}

	if len(visible) < height {
		padded := make([]string, 0, height)
		padded = append(padded, visible...)
		for len(padded) < height {
			padded = append(padded, "")
		}
		visible = padded
	}

	return strings.Join(visible, "\n")
}
