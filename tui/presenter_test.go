package tui

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAudits() []*AuditView {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	blocked := &audit.Record{
		ID:        uuid.New(),
		Timestamp: ts,
		GuildID:   "guild-1",
		MemberID:  "m1",
		Username:  "spam_bot",
		Verdict:   gatekeeper.VerdictBlock,
		CheckKey:  "block_bots",
		Reason:    "Blocking all bots",
		Action:    audit.ActionKick,
		Result:    audit.ResultSuccess,
	}

	reported := &audit.Record{
		ID:        uuid.New(),
		Timestamp: ts.Add(time.Minute),
		GuildID:   "guild-1",
		MemberID:  "m2",
		Username:  "alice",
		Verdict:   gatekeeper.VerdictReportOnly,
		Reports: []gatekeeper.ReportEntry{
			{CheckKey: "username_regex", Message: "pattern invalid"},
			{CheckKey: "minimum_creation_time", Message: "not a number"},
		},
		Action:       audit.ActionReport,
		Result:       audit.ResultError,
		ErrorMessage: "channel not found",
	}

	return NewAuditViews([]*audit.Record{blocked, reported})
}

func newTestPresenter(format Format, buf *bytes.Buffer) Presenter {
	return NewPresenter(format, PresenterOptions{
		Writer:        buf,
		TerminalWidth: 120,
		Location:      time.UTC,
	})
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "json", "jsonl", "csv"} {
		f, ok := ParseFormat(s)
		assert.True(t, ok, s)
		assert.Equal(t, Format(s), f)
	}

	f, ok := ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, FormatTable, f)

	_, ok = ParseFormat("xml")
	assert.False(t, ok)
}

func TestPresenters_RenderAudits(t *testing.T) {
	records := sampleAudits()

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newTestPresenter(FormatTable, &buf).RenderAudits(records))

		out := buf.String()
		assert.Contains(t, out, "Audit records (2)")
		assert.Contains(t, out, "spam_bot")
		assert.Contains(t, out, "Blocking all bots")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newTestPresenter(FormatJSON, &buf).RenderAudits(records))

		var items []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &items))
		require.Len(t, items, 2)
		assert.Equal(t, "block", items[0]["verdict"])
		assert.Equal(t, "block_bots", items[0]["check"])
		assert.Nil(t, items[0]["reports"])
		assert.Len(t, items[1]["reports"], 2)
		assert.Equal(t, "channel not found", items[1]["error_message"])
	})

	t.Run("jsonl", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newTestPresenter(FormatJSONL, &buf).RenderAudits(records))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		for _, line := range lines {
			assert.True(t, json.Valid([]byte(line)), line)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newTestPresenter(FormatCSV, &buf).RenderAudits(records))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "2026-03-01T12:00:00Z", rows[1][1])
		assert.Equal(t, "username_regex: pattern invalid; minimum_creation_time: not a number", rows[2][8])
		assert.Equal(t, "error", rows[2][10])
	})
}

func TestJSONPresenter_EmptyListsAreArrays(t *testing.T) {
	var buf bytes.Buffer
	p := newTestPresenter(FormatJSON, &buf)

	require.NoError(t, p.RenderAudits(nil))
	require.NoError(t, p.RenderChecks(nil))
	require.NoError(t, p.RenderGuilds(nil))

	assert.Equal(t, "[]\n[]\n[]\n", buf.String())
}

func TestPresenters_RenderVerdict(t *testing.T) {
	verdict := &gatekeeper.Verdict{
		GuildID:   "guild-1",
		Kind:      gatekeeper.VerdictBlock,
		CheckKey:  "username_regex",
		Reason:    "Matched username regex",
		Evaluated: []string{"block_bots", "username_regex"},
		Reports:   []gatekeeper.ReportEntry{{CheckKey: "block_bots", Message: "slow"}},
	}
	view := NewVerdictView(verdict, "m1", "alice#0001")

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newTestPresenter(FormatTable, &buf).RenderVerdict(view))

		out := buf.String()
		assert.Contains(t, out, "alice#0001 (m1)")
		assert.Contains(t, out, "username_regex: Matched username regex")
		assert.Contains(t, out, "- block_bots: slow")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newTestPresenter(FormatCSV, &buf).RenderVerdict(view))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"guild-1", "m1", "block", "username_regex", "Matched username regex", "block_bots: slow"}, rows[1])
	})
}

func TestPresenters_RenderConfigMasksTokens(t *testing.T) {
	view := &ConfigView{
		Location: "/etc/gatekeeper/config.yaml",
		Values: map[string]interface{}{
			"gateway": map[string]interface{}{
				"url":   "ws://127.0.0.1:7400/gateway",
				"token": "s3cret",
			},
			"server": map[string]interface{}{
				"token": "",
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, newTestPresenter(FormatTable, &buf).RenderConfig(view))

	out := buf.String()
	assert.Contains(t, out, "gateway.url")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "s3cret")

	buf.Reset()
	require.NoError(t, newTestPresenter(FormatCSV, &buf).RenderConfig(view))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "value"}, rows[0])
	assert.Equal(t, []string{"gateway.token", "********"}, rows[1])
	assert.Equal(t, []string{"gateway.url", "ws://127.0.0.1:7400/gateway"}, rows[2])
	assert.Equal(t, []string{"server.token", ""}, rows[3])

	buf.Reset()
	require.NoError(t, newTestPresenter(FormatJSON, &buf).RenderConfig(view))
	assert.NotContains(t, buf.String(), "s3cret")
	assert.Equal(t, "s3cret", view.Values["gateway"].(map[string]interface{})["token"], "input is not modified")
}

func TestTablePresenter_RenderDiff(t *testing.T) {
	var buf bytes.Buffer
	p := newTestPresenter(FormatTable, &buf)

	require.NoError(t, p.RenderDiff(&DiffView{GuildID: "g1"}))
	assert.Equal(t, "Policy for guild g1 is unchanged.\n", buf.String())

	buf.Reset()
	require.NoError(t, p.RenderDiff(&DiffView{
		GuildID: "g1",
		Changed: true,
		Content: "--- g1 (current)\n+++ g1 (proposed)\n@@ -1 +1 @@\n-- block_all\n+- block_bots\n",
	}))
	assert.Contains(t, buf.String(), "+- block_bots")
	assert.Contains(t, buf.String(), "-- block_all")
}
