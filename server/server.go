// Package server exposes the operator HTTP API.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/storage"
)

// BasePath is the prefix of every API route.
const BasePath = "/api/v1"

const maxPolicyBytes = 64 << 10

// Engine is the part of the gatekeeper engine the API drives.
type Engine interface {
	Registry() *gatekeeper.Registry
	Policy(ctx context.Context, guildID string) (*gatekeeper.Policy, error)
	UpdatePolicy(ctx context.Context, guildID string, doc []byte) (*gatekeeper.Policy, error)
	DeletePolicy(ctx context.Context, guildID string) error
	Stats() gatekeeper.Stats
}

// Store is the persistence the API reads from.
type Store interface {
	ListPolicies(ctx context.Context) ([]storage.PolicyInfo, error)
	QueryAudits(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error)
}

// Config for the HTTP API handler.
type Config struct {
	Engine Engine
	Store  Store
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Token, when set, is required as a bearer token on guild routes.
	Token   string
	Version string
	// Ready reports whether the platform connection is up. Nil means ready.
	Ready func() bool
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Ready         bool             `json:"ready"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Engine        gatekeeper.Stats `json:"engine"`
}

// CheckInfo describes a registered check.
type CheckInfo struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// PolicyResponse is the body of GET and PATCH on a guild policy.
type PolicyResponse struct {
	GuildID string   `json:"guild_id"`
	Config  string   `json:"config"`
	Checks  []string `json:"checks"`
	Digest  string   `json:"digest"`
}

type api struct {
	cfg     Config
	started time.Time
}

// New returns an HTTP handler exposing the operator API.
func New(cfg Config) http.Handler {
	a := &api{cfg: cfg, started: time.Now()}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)

	router.Route(BasePath, func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Get("/checks", a.handleChecks)

		r.Group(func(r chi.Router) {
			r.Use(a.requireToken)
			r.Get("/guilds", a.handleGuilds)
			r.Get("/guilds/{guildID}/policy", a.handleGetPolicy)
			r.Patch("/guilds/{guildID}/policy", a.handlePatchPolicy)
			r.Delete("/guilds/{guildID}/policy", a.handleDeletePolicy)
			r.Get("/guilds/{guildID}/audits", a.handleAudits)
		})
	})

	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (a *api) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(a.cfg.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, CodeNoAuth, "You must be logged in to do that.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	ready := true
	if a.cfg.Ready != nil {
		ready = a.cfg.Ready()
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Ready:         ready,
		Version:       a.cfg.Version,
		UptimeSeconds: int64(time.Since(a.started).Seconds()),
		Engine:        a.cfg.Engine.Stats(),
	})
}

func (a *api) handleChecks(w http.ResponseWriter, r *http.Request) {
	checks := a.cfg.Engine.Registry().All()

	infos := make([]CheckInfo, 0, len(checks))
	for _, c := range checks {
		infos = append(infos, CheckInfo{Key: c.Key(), Description: c.Description()})
	}

	writeJSON(w, http.StatusOK, infos)
}

func (a *api) handleGuilds(w http.ResponseWriter, r *http.Request) {
	if a.cfg.Store == nil {
		writeJSON(w, http.StatusOK, []storage.PolicyInfo{})
		return
	}

	infos, err := a.cfg.Store.ListPolicies(r.Context())
	if err != nil {
		log.Errorf("failed to list policies: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
		return
	}
	if infos == nil {
		infos = []storage.PolicyInfo{}
	}

	writeJSON(w, http.StatusOK, infos)
}

func (a *api) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	policy, err := a.cfg.Engine.Policy(r.Context(), guildID)
	if err != nil {
		writePolicyError(w, err)
		return
	}
	if policy == nil {
		writeError(w, http.StatusNotFound, CodeNoPolicy, "No policy is configured for this guild.")
		return
	}

	writePolicy(w, policy)
}

func (a *api) handlePatchPolicy(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPolicyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "Policy document is too large.")
			return
		}
		writeError(w, http.StatusBadRequest, string(gatekeeper.CodeMalformedDocument), "Could not read request body.")
		return
	}

	policy, err := a.cfg.Engine.UpdatePolicy(r.Context(), guildID, body)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	writePolicy(w, policy)
}

func (a *api) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	if err := a.cfg.Engine.DeletePolicy(r.Context(), guildID); err != nil {
		writePolicyError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleAudits(w http.ResponseWriter, r *http.Request) {
	if a.cfg.Store == nil {
		writeJSON(w, http.StatusOK, []*audit.Record{})
		return
	}

	filter := &audit.Filter{GuildID: chi.URLParam(r, "guildID"), Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive number")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("verdict"); v != "" {
		filter.Verdict = gatekeeper.VerdictKind(v)
	}

	records, err := a.cfg.Store.QueryAudits(r.Context(), filter)
	if err != nil {
		log.Errorf("failed to query audits: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}

	writeJSON(w, http.StatusOK, records)
}

func writePolicy(w http.ResponseWriter, policy *gatekeeper.Policy) {
	doc, err := gatekeeper.Render(policy)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PolicyResponse{
		GuildID: policy.GuildID(),
		Config:  string(doc),
		Checks:  policy.CheckKeys(),
		Digest:  policy.Digest(),
	})
}
