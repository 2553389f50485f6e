package cli_test

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudit_List(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		setup  func(env *testEnv)
		assert func(t *testing.T, stdout string)
	}{
		{
			name: "empty database",
			args: []string{"audit", "list"},
			assert: func(t *testing.T, stdout string) {
				assert.Contains(t, stdout, "No audit records found.")
			},
		},
		{
			name: "empty database as json",
			args: []string{"audit", "list", "--format", "json"},
			assert: func(t *testing.T, stdout string) {
				assert.Equal(t, "[]", strings.TrimSpace(stdout))
			},
		},
		{
			name:  "table",
			args:  []string{"audit", "list"},
			setup: seedRecentAudits(4),
			assert: func(t *testing.T, stdout string) {
				assert.Contains(t, stdout, "Audit records (4)")
				assert.Contains(t, stdout, "guild-1")
				assert.Contains(t, stdout, "block")
				assert.Contains(t, stdout, "kick")
			},
		},
		{
			name:  "json newest first",
			args:  []string{"audit", "list", "--format", "json"},
			setup: seedRecentAudits(4),
			assert: func(t *testing.T, stdout string) {
				items := parseJSONArray(t, stdout)
				require.Len(t, items, 4)
				assert.Equal(t, "m3", items[0]["member_id"])
				assert.Equal(t, "m0", items[3]["member_id"])
				assert.Equal(t, "report", items[0]["verdict"])
				assert.Equal(t, "block", items[3]["verdict"])
				assert.Equal(t, "block_bots", items[3]["check"])
			},
		},
		{
			name:  "jsonl",
			args:  []string{"audit", "list", "--format", "jsonl"},
			setup: seedRecentAudits(3),
			assert: func(t *testing.T, stdout string) {
				lines := parseJSONLines(t, stdout)
				assert.Len(t, lines, 3)
			},
		},
		{
			name:  "csv",
			args:  []string{"audit", "list", "--format", "csv"},
			setup: seedRecentAudits(3),
			assert: func(t *testing.T, stdout string) {
				rows, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
				require.NoError(t, err)
				require.Len(t, rows, 4)
				assert.Equal(t, "id", rows[0][0])
				assert.Equal(t, "verdict", rows[0][5])
				assert.Equal(t, "guild-1", rows[1][2])
			},
		},
		{
			name:  "filter by verdict",
			args:  []string{"audit", "list", "--verdict", "block", "--format", "json"},
			setup: seedRecentAudits(4),
			assert: func(t *testing.T, stdout string) {
				items := parseJSONArray(t, stdout)
				require.Len(t, items, 2)
				for _, item := range items {
					assert.Equal(t, "block", item["verdict"])
				}
			},
		},
		{
			name:  "filter by guild",
			args:  []string{"audit", "list", "--guild", "guild-2", "--format", "json"},
			setup: seedMixedAgeAudits,
			assert: func(t *testing.T, stdout string) {
				items := parseJSONArray(t, stdout)
				require.Len(t, items, 1)
				assert.Equal(t, "recent-2", items[0]["member_id"])
			},
		},
		{
			name:  "since",
			args:  []string{"audit", "list", "--since", "30d", "--format", "json"},
			setup: seedMixedAgeAudits,
			assert: func(t *testing.T, stdout string) {
				items := parseJSONArray(t, stdout)
				assert.Len(t, items, 2)
			},
		},
		{
			name:  "until",
			args:  []string{"audit", "list", "--until", "30d", "--format", "json"},
			setup: seedMixedAgeAudits,
			assert: func(t *testing.T, stdout string) {
				items := parseJSONArray(t, stdout)
				require.Len(t, items, 1)
				assert.Equal(t, "old-1", items[0]["member_id"])
			},
		},
		{
			name:  "limit",
			args:  []string{"audit", "list", "--limit", "2", "--format", "json"},
			setup: seedRecentAudits(5),
			assert: func(t *testing.T, stdout string) {
				items := parseJSONArray(t, stdout)
				assert.Len(t, items, 2)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}

			stdout, _, err := env.run(tt.args...)
			require.NoError(t, err)
			tt.assert(t, stdout)
		})
	}
}

func TestAudit_ListInvalidFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{name: "verdict", args: []string{"--verdict", "maybe"}, message: "unknown verdict: maybe"},
		{name: "since", args: []string{"--since", "yesterday-ish"}, message: "invalid --since"},
		{name: "until", args: []string{"--until", "3x"}, message: "invalid --until"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			_, _, err := env.run(append([]string{"audit", "list"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestAudit_Prune(t *testing.T) {
	t.Run("dry run counts only", func(t *testing.T) {
		env := newTestEnv(t)
		seedMixedAgeAudits(env)

		stdout, _, err := env.run("audit", "prune", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Would delete 1 audit records")
		assert.Equal(t, 3, countAudits(env))
	})

	t.Run("deletes records older than retention", func(t *testing.T) {
		env := newTestEnv(t)
		seedMixedAgeAudits(env)

		stdout, _, err := env.run("audit", "prune")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Deleted 1 audit records")
		assert.Equal(t, 2, countAudits(env))
	})

	t.Run("days flag overrides config", func(t *testing.T) {
		env := newTestEnv(t)
		seedMixedAgeAudits(env)

		_, _, err := env.run("audit", "prune", "--days", "3")
		require.NoError(t, err)
		assert.Equal(t, 0, countAudits(env))
	})

	t.Run("retention disabled", func(t *testing.T) {
		env := newTestEnvWithConfig(t, `storage:
  path: %s
  retention_days: 0
display:
  colors: never
`)
		seedMixedAgeAudits(env)

		stdout, _, err := env.run("audit", "prune")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Retention disabled")
		assert.Equal(t, 3, countAudits(env))
	})
}
