package cli_test

import (
	"context"
	"testing"

	"github.com/safedep/gatekeeper/cli"
	"github.com/safedep/gatekeeper/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_StoredPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		args   []string
		assert func(t *testing.T, obj map[string]any)
	}{
		{
			name: "no policy allows",
			args: []string{"--bot"},
			assert: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "allow", obj["verdict"])
				assert.Empty(t, obj["policy_digest"])
			},
		},
		{
			name:   "bot blocked",
			policy: botPolicy,
			args:   []string{"--bot"},
			assert: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "block", obj["verdict"])
				assert.Equal(t, "block_bots", obj["check"])
				assert.Equal(t, "Blocking all bots", obj["reason"])
				assert.Equal(t, []any{"block_bots"}, obj["evaluated"])
				assert.NotEmpty(t, obj["policy_digest"])
			},
		},
		{
			name:   "young account blocked",
			policy: botPolicy,
			args:   []string{"--age", "2h"},
			assert: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "block", obj["verdict"])
				assert.Equal(t, "minimum_creation_time", obj["check"])
				assert.Contains(t, obj["reason"], "Failed minimum creation time check")
			},
		},
		{
			name:   "old human account allowed",
			policy: botPolicy,
			args:   []string{"--age", "1w", "--avatar", "abc"},
			assert: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "allow", obj["verdict"])
				assert.Equal(t, []any{"block_bots", "minimum_creation_time"}, obj["evaluated"])
				assert.Nil(t, obj["reports"])
			},
		},
		{
			name:   "misconfigured check reports and continues",
			policy: "- minimum_creation_time: soon\n- block_default_avatar\n",
			args:   []string{"--avatar", "abc"},
			assert: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "report", obj["verdict"])

				reports, ok := obj["reports"].([]any)
				require.True(t, ok)
				require.Len(t, reports, 1)
				report := reports[0].(map[string]any)
				assert.Equal(t, "minimum_creation_time", report["check"])
				assert.Equal(t, "Invalid minimum creation time, must be a valid number.", report["message"])
			},
		},
		{
			name:   "report before block keeps the report",
			policy: "- minimum_creation_time: soon\n- block_default_avatar\n",
			assert: func(t *testing.T, obj map[string]any) {
				assert.Equal(t, "block", obj["verdict"])
				assert.Equal(t, "block_default_avatar", obj["check"])
				assert.Len(t, obj["reports"], 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			if tt.policy != "" {
				_, _, err := env.runWithInput(tt.policy, "policy", "set", "guild-1", "-")
				require.NoError(t, err)
			}

			args := append([]string{"evaluate", "guild-1", "--format", "json"}, tt.args...)
			stdout, _, err := env.run(args...)
			require.NoError(t, err)

			obj := parseJSONObject(t, stdout)
			assert.Equal(t, "guild-1", obj["guild_id"])
			assert.Equal(t, "dry-run", obj["member_id"])
			tt.assert(t, obj)
		})
	}
}

func TestEvaluate_InvalidStoredPolicyIsReportOnly(t *testing.T) {
	env := newTestEnv(t)

	env.seedStore(func(ctx context.Context, store storage.Store) {
		require.NoError(t, store.WritePolicy(ctx, "guild-1", []byte("- block_everyone\n")))
	})

	stdout, _, err := env.run("evaluate", "guild-1", "--bot", "--format", "json")
	require.NoError(t, err)

	obj := parseJSONObject(t, stdout)
	assert.Equal(t, "report", obj["verdict"])
	assert.Empty(t, obj["check"])
	assert.NotEmpty(t, obj["reports"])
}

func TestEvaluate_PolicyFile(t *testing.T) {
	t.Run("matches username", func(t *testing.T) {
		env := newTestEnv(t)
		path := env.writeFile("draft.yaml", regexPolicy)

		stdout, _, err := env.run("evaluate", "guild-1", "--policy", path,
			"--username", "FREE NITRO giveaway", "--member-id", "42", "--format", "json")
		require.NoError(t, err)

		obj := parseJSONObject(t, stdout)
		assert.Equal(t, "block", obj["verdict"])
		assert.Equal(t, "username_regex", obj["check"])
		assert.Equal(t, "42", obj["member_id"])
		assert.Equal(t, "FREE NITRO giveaway", obj["member"])
	})

	t.Run("ignores stored policy", func(t *testing.T) {
		env := newTestEnv(t)

		_, _, err := env.runWithInput("- block_all\n", "policy", "set", "guild-1", "-")
		require.NoError(t, err)

		path := env.writeFile("draft.yaml", regexPolicy)
		stdout, _, err := env.run("evaluate", "guild-1", "--policy", path, "--format", "json")
		require.NoError(t, err)

		obj := parseJSONObject(t, stdout)
		assert.Equal(t, "allow", obj["verdict"])
	})

	t.Run("rejected document", func(t *testing.T) {
		env := newTestEnv(t)
		path := env.writeFile("draft.yaml", "- block_everyone\n")

		_, _, err := env.run("evaluate", "guild-1", "--policy", path)
		assertExitCode(t, err, cli.ExitPolicy)
	})
}

func TestEvaluate_Table(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.runWithInput(botPolicy, "policy", "set", "guild-1", "-")
	require.NoError(t, err)

	stdout, _, err := env.run("evaluate", "guild-1", "--bot", "--username", "spam", "--discriminator", "0042")
	require.NoError(t, err)
	assert.Contains(t, stdout, "spam#0042")
	assert.Contains(t, stdout, "block")
	assert.Contains(t, stdout, "Blocking all bots")
}

func TestEvaluate_InvalidAge(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("evaluate", "guild-1", "--age", "forever")
	assertExitCode(t, err, cli.ExitGeneral)
	assert.Contains(t, err.Error(), "invalid --age")
}
