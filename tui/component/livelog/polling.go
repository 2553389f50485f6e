package livelog

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/safedep/gatekeeper/core/audit"
)

const pollLimit = 100

// cursor is the position of the newest record shown.
type cursor struct {
	at time.Time
	id uuid.UUID
}

func pollRecords(store Store, after cursor, guildFilter string) tea.Cmd {
	return func() tea.Msg {
		records, err := store.QueryAuditsAfter(context.Background(), after.at, after.id, pollLimit)
		if err != nil {
			return pollErrorMsg{err: err}
		}

		return newRecordsMsg{records: filterByGuild(records, guildFilter), next: lastCursor(records)}
	}
}

func loadInitialRecords(store Store, since time.Time, guildFilter string, limit int) tea.Cmd {
	return func() tea.Msg {
		filter := &audit.Filter{
			Since:   &since,
			GuildID: guildFilter,
			Limit:   limit,
		}

		records, err := store.QueryAudits(context.Background(), filter)
		if err != nil {
			return pollErrorMsg{err: err}
		}

		// QueryAudits is newest first; the view appends oldest first.
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}

		return newRecordsMsg{records: records, next: lastCursor(records)}
	}
}

func lastCursor(records []*audit.Record) *cursor {
	if len(records) == 0 {
		return nil
	}
	last := records[len(records)-1]
	return &cursor{at: last.Timestamp, id: last.ID}
}

func schedulePoll(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func filterByGuild(records []*audit.Record, guildID string) []*audit.Record {
	if guildID == "" {
		return records
	}

	filtered := make([]*audit.Record, 0, len(records))
	for _, r := range records {
		if r.GuildID == guildID {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
