package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safedep/gatekeeper/checks"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
	"github.com/safedep/gatekeeper/metrics"
	"github.com/safedep/gatekeeper/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	engine  *gatekeeper.Engine
	store   *storage.SQLiteStore
	handler http.Handler
}

func setup(t *testing.T, token string) *testEnv {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "gatekeeper.db"))
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	engine := gatekeeper.New(checks.DefaultRegistry(), store, &gatekeeper.Config{Observer: m})

	return &testEnv{
		engine: engine,
		store:  store,
		handler: New(Config{
			Engine:   engine,
			Store:    store,
			Gatherer: registry,
			Token:    token,
			Version:  "test",
		}),
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatus(t *testing.T) {
	env := setup(t, "")

	rec := env.do(t, http.MethodGet, BasePath+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[StatusResponse](t, rec)
	assert.True(t, status.Ready)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, 0, status.Engine.CachedGuilds)
}

func TestChecks(t *testing.T) {
	env := setup(t, "")

	rec := env.do(t, http.MethodGet, BasePath+"/checks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	infos := decode[[]CheckInfo](t, rec)
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
		assert.NotEmpty(t, info.Description)
	}
	assert.ElementsMatch(t, []string{
		"block_all", "block_bots", "block_default_avatar", "minimum_creation_time", "username_regex",
	}, keys)
}

func TestPolicy_GetMissing(t *testing.T) {
	env := setup(t, "")

	rec := env.do(t, http.MethodGet, BasePath+"/guilds/g1/policy", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decode[ErrorBody](t, rec)
	assert.True(t, body.Error)
	assert.Equal(t, CodeNoPolicy, body.Code)
}

func TestPolicy_PatchAndGet(t *testing.T) {
	env := setup(t, "")

	doc := "- block_bots\n- minimum_creation_time: \"86400\"\n"
	rec := env.do(t, http.MethodPatch, BasePath+"/guilds/g1/policy", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	patched := decode[PolicyResponse](t, rec)
	assert.Equal(t, "g1", patched.GuildID)
	assert.Equal(t, []string{"block_bots", "minimum_creation_time"}, patched.Checks)
	assert.NotEmpty(t, patched.Digest)

	rec = env.do(t, http.MethodGet, BasePath+"/guilds/g1/policy", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[PolicyResponse](t, rec)
	assert.Equal(t, patched.Config, got.Config)

	// The rendered config compiles back to the same entries.
	policy, err := env.engine.Compiler().Compile("g1", []byte(got.Config))
	require.NoError(t, err)
	assert.Equal(t, patched.Checks, policy.CheckKeys())

	// Persisted through the store.
	stored, ok, err := env.store.ReadPolicy(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, doc, string(stored))
}

func TestPolicy_PatchRejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"unknown check", "- block_bots\n- block_everyone\n", "UNKNOWN_CHECK"},
		{"not a list", "block_bots: true\n", "MALFORMED_DOCUMENT"},
		{"invalid yaml", "- [unclosed\n", "MALFORMED_DOCUMENT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t, "")

			// An existing policy stays in force.
			_, err := env.engine.UpdatePolicy(context.Background(), "g1", []byte("- block_all\n"))
			require.NoError(t, err)

			rec := env.do(t, http.MethodPatch, BasePath+"/guilds/g1/policy", tc.doc)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decode[ErrorBody](t, rec)
			assert.True(t, body.Error)
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.Message)

			policy, err := env.engine.Policy(context.Background(), "g1")
			require.NoError(t, err)
			assert.Equal(t, []string{"block_all"}, policy.CheckKeys())
		})
	}
}

func TestPolicy_UnknownCheckReportsLine(t *testing.T) {
	env := setup(t, "")

	rec := env.do(t, http.MethodPatch, BasePath+"/guilds/g1/policy", "- block_bots\n- nope\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[ErrorBody](t, rec)
	assert.Equal(t, 2, body.Line)
	assert.Contains(t, body.Message, "nope")
}

func TestPolicy_Delete(t *testing.T) {
	env := setup(t, "")

	_, err := env.engine.UpdatePolicy(context.Background(), "g1", []byte("- block_all\n"))
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, BasePath+"/guilds/g1/policy", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, BasePath+"/guilds/g1/policy", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	verdict := env.engine.Evaluate(context.Background(), &member.JoinEvent{GuildID: "g1", MemberID: "m1"})
	assert.True(t, verdict.IsAllowed())
}

func TestPolicy_InvalidStoredDocument(t *testing.T) {
	env := setup(t, "")

	require.NoError(t, env.store.WritePolicy(context.Background(), "g1", []byte("- removed_check\n")))

	rec := env.do(t, http.MethodGet, BasePath+"/guilds/g1/policy", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeInvalidPolicy, decode[ErrorBody](t, rec).Code)
}

func TestGuilds(t *testing.T) {
	env := setup(t, "")

	rec := env.do(t, http.MethodGet, BasePath+"/guilds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]storage.PolicyInfo](t, rec))

	_, err := env.engine.UpdatePolicy(context.Background(), "g1", []byte("- block_all\n"))
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, BasePath+"/guilds", "")
	infos := decode[[]storage.PolicyInfo](t, rec)
	require.Len(t, infos, 1)
	assert.Equal(t, "g1", infos[0].GuildID)
}

func TestAudits(t *testing.T) {
	env := setup(t, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		record := &audit.Record{
			ID:        uuid.New(),
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
			GuildID:   "g1",
			MemberID:  "m1",
			Verdict:   gatekeeper.VerdictBlock,
			Action:    audit.ActionKick,
			Result:    audit.ResultSuccess,
		}
		require.NoError(t, env.store.SaveAudit(ctx, record))
	}

	rec := env.do(t, http.MethodGet, BasePath+"/guilds/g1/audits?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*audit.Record](t, rec), 2)

	rec = env.do(t, http.MethodGet, BasePath+"/guilds/g1/audits?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, BasePath+"/guilds/g2/audits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]*audit.Record](t, rec))
}

func TestTokenAuth(t *testing.T) {
	env := setup(t, "s3cret")

	rec := env.do(t, http.MethodGet, BasePath+"/guilds/g1/policy", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeNoAuth, decode[ErrorBody](t, rec).Code)

	rec = env.do(t, http.MethodGet, BasePath+"/guilds/g1/policy", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, BasePath+"/guilds/g1/policy", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Status stays public.
	rec = env.do(t, http.MethodGet, BasePath+"/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setup(t, "")

	env.engine.Evaluate(context.Background(), &member.JoinEvent{GuildID: "g1", MemberID: "m1"})

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gatekeeper_verdicts_total")
}
