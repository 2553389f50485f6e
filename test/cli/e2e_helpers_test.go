package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safedep/gatekeeper/cli"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t          *testing.T
	tmpDir     string
	dbPath     string
	configPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, "")
}

// newTestEnvWithConfig writes configYAML as the config file. A "%s" in
// the document is replaced with the database path.
func newTestEnvWithConfig(t *testing.T, configYAML string) *testEnv {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	configPath := filepath.Join(tmpDir, "config.yaml")

	if configYAML == "" {
		configYAML = `storage:
  path: %s
  retention_days: 30
display:
  colors: never
`
	}

	if strings.Contains(configYAML, "%s") {
		configYAML = fmt.Sprintf(configYAML, dbPath)
	}

	err := os.WriteFile(configPath, []byte(configYAML), 0o600)
	require.NoError(t, err)

	return &testEnv{
		t:          t,
		tmpDir:     tmpDir,
		dbPath:     dbPath,
		configPath: configPath,
	}
}

func (env *testEnv) run(args ...string) (stdout, stderr string, err error) {
	env.t.Helper()
	return env.runWithInput("", args...)
}

func (env *testEnv) runWithInput(stdin string, args ...string) (stdout, stderr string, err error) {
	env.t.Helper()

	var outBuf, errBuf bytes.Buffer
	rootCmd := cli.NewRootCmd()
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetIn(strings.NewReader(stdin))

	fullArgs := append([]string{"--config", env.configPath, "--no-color"}, args...)
	rootCmd.SetArgs(fullArgs)
	err = rootCmd.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}

// writeFile writes a file into the environment's temp dir and returns its path.
func (env *testEnv) writeFile(name, content string) string {
	env.t.Helper()

	path := filepath.Join(env.tmpDir, name)
	require.NoError(env.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (env *testEnv) openStore() (storage.Store, func()) {
	env.t.Helper()

	store, err := storage.NewSQLiteStore(env.dbPath)
	require.NoError(env.t, err)
	err = store.Init(context.Background())
	require.NoError(env.t, err)

	return store, func() {
		err := store.Close()
		require.NoError(env.t, err)
	}
}

func (env *testEnv) seedStore(fn func(ctx context.Context, store storage.Store)) {
	env.t.Helper()

	store, cleanup := env.openStore()
	defer cleanup()

	fn(context.Background(), store)
}

func (env *testEnv) storedPolicy(guildID string) (string, bool) {
	env.t.Helper()

	var (
		doc []byte
		ok  bool
	)
	env.seedStore(func(ctx context.Context, store storage.Store) {
		var err error
		doc, ok, err = store.ReadPolicy(ctx, guildID)
		require.NoError(env.t, err)
	})

	return string(doc), ok
}

func newAuditRecord(guildID, memberID string, verdict gatekeeper.VerdictKind, at time.Time) *audit.Record {
	r := &audit.Record{
		ID:        uuid.New(),
		Timestamp: at.UTC(),
		GuildID:   guildID,
		MemberID:  memberID,
		Username:  "user-" + memberID,
		Verdict:   verdict,
		Action:    audit.ActionNone,
		Result:    audit.ResultSkipped,
	}

	switch verdict {
	case gatekeeper.VerdictBlock:
		r.CheckKey = "block_bots"
		r.Reason = "Bots are not allowed"
		r.Action = audit.ActionKick
		r.Result = audit.ResultSuccess
	case gatekeeper.VerdictReportOnly:
		r.Reports = []gatekeeper.ReportEntry{{CheckKey: "minimum_creation_time", Message: "Invalid minimum creation time, must be a valid number."}}
		r.Action = audit.ActionReport
		r.Result = audit.ResultSuccess
	}

	return r
}

// seedRecentAudits returns a seed function that creates n records in guild-1,
// alternating between block and report-only verdicts.
func seedRecentAudits(n int) func(env *testEnv) {
	return func(env *testEnv) {
		env.seedStore(func(ctx context.Context, store storage.Store) {
			now := time.Now().UTC()
			for i := 0; i < n; i++ {
				verdict := gatekeeper.VerdictBlock
				if i%2 == 1 {
					verdict = gatekeeper.VerdictReportOnly
				}
				at := now.Add(-time.Duration(n-i) * time.Minute)
				require.NoError(env.t, store.SaveAudit(ctx, newAuditRecord("guild-1", fmt.Sprintf("m%d", i), verdict, at)))
			}
		})
	}
}

// seedMixedAgeAudits seeds two records from last week and one from 100 days ago.
func seedMixedAgeAudits(env *testEnv) {
	env.seedStore(func(ctx context.Context, store storage.Store) {
		now := time.Now().UTC()
		require.NoError(env.t, store.SaveAudit(ctx, newAuditRecord("guild-1", "recent-1", gatekeeper.VerdictBlock, now.Add(-7*24*time.Hour))))
		require.NoError(env.t, store.SaveAudit(ctx, newAuditRecord("guild-2", "recent-2", gatekeeper.VerdictReportOnly, now.Add(-6*24*time.Hour))))
		require.NoError(env.t, store.SaveAudit(ctx, newAuditRecord("guild-1", "old-1", gatekeeper.VerdictBlock, now.Add(-100*24*time.Hour))))
	})
}

func countAudits(env *testEnv) int {
	env.t.Helper()

	var n int
	env.seedStore(func(ctx context.Context, store storage.Store) {
		var err error
		n, err = store.CountAudits(ctx, &audit.Filter{})
		require.NoError(env.t, err)
	})

	return n
}

func parseJSONArray(t *testing.T, s string) []map[string]any {
	t.Helper()

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out), "output: %s", s)
	return out
}

func parseJSONObject(t *testing.T, s string) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out), "output: %s", s)
	return out
}

func parseJSONLines(t *testing.T, s string) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj), "line: %s", line)
		out = append(out, obj)
	}
	return out
}

func assertExitCode(t *testing.T, err error, code int) {
	t.Helper()

	require.Error(t, err)
	assert.Equal(t, code, cli.ExitCodeFor(err))
}
