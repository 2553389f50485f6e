package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/member"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single join evaluation when no timeout is configured.
const DefaultTimeout = 250 * time.Millisecond

// DefaultLoadTimeout bounds a shared policy load from the source.
const DefaultLoadTimeout = 5 * time.Second

// ErrStoredPolicyInvalid is returned when a persisted document no longer compiles.
var ErrStoredPolicyInvalid = errors.New("stored policy is invalid")

// PolicySource is the persistent home of raw policy documents.
type PolicySource interface {
	// ReadPolicy returns the document for a guild. ok is false when the
	// guild has no policy configured.
	ReadPolicy(ctx context.Context, guildID string) (doc []byte, ok bool, err error)
	// WritePolicy replaces the document for a guild.
	WritePolicy(ctx context.Context, guildID string, doc []byte) error
	// DeletePolicy removes the document for a guild.
	DeletePolicy(ctx context.Context, guildID string) error
}

// Observer receives evaluation telemetry.
type Observer interface {
	ObserveCheck(checkKey string, kind OutcomeKind)
	ObserveVerdict(verdict *Verdict)
	ObservePolicyLoad(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveCheck(string, OutcomeKind) {}
func (nopObserver) ObserveVerdict(*Verdict)          {}
func (nopObserver) ObservePolicyLoad(string)         {}

// Config holds configuration options for the engine.
type Config struct {
	// Timeout bounds the evaluation of one join, including the policy
	// load. Zero uses DefaultTimeout.
	Timeout time.Duration
	// LoadTimeout bounds a policy read that may be shared by many joins.
	// Zero uses DefaultLoadTimeout.
	LoadTimeout time.Duration
	// Observer receives telemetry. Optional.
	Observer Observer
}

// Stats is a point in time view of engine activity.
type Stats struct {
	CachedGuilds int   `json:"cached_guilds"`
	Evaluations  int64 `json:"evaluations"`
	Blocks       int64 `json:"blocks"`
	ReportOnly   int64 `json:"report_only"`
	Timeouts     int64 `json:"timeouts"`
	InternalErrs int64 `json:"internal_errors"`
}

// cacheEntry is the unit swapped in the policy cache. A nil policy with a
// nil err records that the guild has no policy configured. A non nil err
// records a stored document that failed to compile.
type cacheEntry struct {
	policy *Policy
	err    error
}

func (c *cacheEntry) result() (*Policy, error) {
	return c.policy, c.err
}

// Engine evaluates guild policies against join events.
//
// Compiled policies are cached per guild. Each cache slot holds an
// immutable *Policy that is replaced wholesale, so an evaluation sees
// either the old or the new policy, never a mix.
type Engine struct {
	registry *Registry
	compiler *Compiler
	source   PolicySource
	timeout  time.Duration
	observer Observer

	policies sync.Map // guild id -> *cacheEntry
	locks    sync.Map // guild id -> *sync.Mutex
	loads    singleflight.Group

	loadTimeout time.Duration

	evaluations  atomic.Int64
	blocks       atomic.Int64
	reportOnly   atomic.Int64
	timeouts     atomic.Int64
	internalErrs atomic.Int64
}

// New creates an engine resolving checks from registry and loading
// documents from source. source may be nil, in which case only policies
// installed with Install are known.
func New(registry *Registry, source PolicySource, cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	loadTimeout := cfg.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}

	var observer Observer = nopObserver{}
	if cfg.Observer != nil {
		observer = cfg.Observer
	}

	return &Engine{
		registry: registry,
		compiler: NewCompiler(registry),
		source:   source,
		timeout:  timeout,
		observer: observer,

		loadTimeout: loadTimeout,
	}
}

// Compiler returns the compiler bound to the engine's registry.
func (e *Engine) Compiler() *Compiler {
	return e.compiler
}

// Registry returns the check registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Timeout returns the per-join evaluation budget.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Evaluate runs the guild policy against the join event.
//
// Entries run in stored order. The first Block stops evaluation. Reports
// are collected and evaluation continues. A check that panics or returns
// an unknown outcome is downgraded to a Report. When the time budget
// expires the verdict is report only and carries a timeout diagnostic.
func (e *Engine) Evaluate(ctx context.Context, event *member.JoinEvent) *Verdict {
	start := time.Now()
	e.evaluations.Add(1)

	var verdict *Verdict
	defer func() {
		verdict.Duration = time.Since(start)
		e.record(verdict)
	}()

	if event == nil {
		verdict = NewAllowVerdict("")
		verdict.addReport(EngineCheckKey, "received an empty join event")
		verdict.finish()
		return verdict
	}

	verdict = NewAllowVerdict(event.GuildID)
	if err := event.Validate(); err != nil {
		verdict.addReport(EngineCheckKey, err.Error())
		verdict.finish()
		return verdict
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	policy, err := e.Policy(ctx, event.GuildID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.abort(verdict, ctxErr, "loading the policy")
			verdict.finish()
			return verdict
		}

		// An invalid stored document was already logged when it was loaded.
		if !errors.Is(err, ErrStoredPolicyInvalid) {
			log.Errorf("failed to load policy for guild %s: %v", event.GuildID, err)
		}
		verdict.addReport(EngineCheckKey, fmt.Sprintf("policy could not be loaded: %v", err))
		verdict.finish()
		return verdict
	}

	if policy == nil {
		verdict.finish()
		return verdict
	}

	verdict.PolicyDigest = policy.Digest()

	e.run(ctx, policy, event, verdict)
	verdict.finish()

	return verdict
}

// run walks the policy entries and fills in the verdict.
func (e *Engine) run(ctx context.Context, policy *Policy, event *member.JoinEvent, verdict *Verdict) {
	for _, entry := range policy.entries {
		if err := ctx.Err(); err != nil {
			e.abort(verdict, err, "")
			return
		}

		verdict.Evaluated = append(verdict.Evaluated, entry.CheckKey)

		check, err := e.registry.Resolve(entry.CheckKey)
		if err != nil {
			verdict.addReport(entry.CheckKey, fmt.Sprintf("check %q is not available", entry.CheckKey))
			continue
		}

		outcome, err := e.runCheck(ctx, check, entry, event)
		if err != nil {
			e.abort(verdict, err, "running "+entry.CheckKey)
			return
		}

		e.observer.ObserveCheck(entry.CheckKey, outcome.Kind)

		switch outcome.Kind {
		case OutcomePass:
			continue
		case OutcomeBlock:
			verdict.Kind = VerdictBlock
			verdict.CheckKey = entry.CheckKey
			verdict.Reason = outcome.Message
			return
		case OutcomeReport:
			verdict.addReport(entry.CheckKey, outcome.Message)
		default:
			e.internalErrs.Add(1)
			log.Errorf("check %s returned unknown outcome %d for member %s in guild %s",
				entry.CheckKey, outcome.Kind, event.MemberID, event.GuildID)
			verdict.addReport(entry.CheckKey, internalErrorMessage(entry.CheckKey))
		}
	}
}

// runCheck evaluates one check in its own goroutine so that a runaway
// check cannot hold the evaluation past its deadline.
func (e *Engine) runCheck(ctx context.Context, check Check, entry PolicyEntry, event *member.JoinEvent) (Outcome, error) {
	done := make(chan Outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.internalErrs.Add(1)
				log.Errorf("check %s panicked for member %s in guild %s (config %q): %v",
					entry.CheckKey, event.MemberID, event.GuildID, entry.RawConfig, r)
				done <- Report(internalErrorMessage(entry.CheckKey))
			}
		}()

		done <- check.Evaluate(ctx, entry.RawConfig, event)
	}()

	select {
	case outcome := <-done:
		return outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// abort records why evaluation stopped early. step names what was in
// progress, if anything.
func (e *Engine) abort(verdict *Verdict, err error, step string) {
	where := ""
	if step != "" {
		where = " while " + step
	}

	if errors.Is(err, context.DeadlineExceeded) {
		e.timeouts.Add(1)
		verdict.TimedOut = true
		verdict.addReport(EngineCheckKey, fmt.Sprintf("evaluation timed out after %s%s", e.timeout, where))
		return
	}

	verdict.addReport(EngineCheckKey, fmt.Sprintf("evaluation cancelled%s: %v", where, err))
}

func (e *Engine) record(verdict *Verdict) {
	switch verdict.Kind {
	case VerdictBlock:
		e.blocks.Add(1)
	case VerdictReportOnly:
		e.reportOnly.Add(1)
	}
	e.observer.ObserveVerdict(verdict)
}

func internalErrorMessage(checkKey string) string {
	return fmt.Sprintf("internal error in %s", checkKey)
}

// Policy returns the active policy for a guild, loading and compiling it
// from the source on first use. It returns nil when none is configured.
//
// Concurrent callers share one load. The load is detached from any single
// caller and bounded by the load timeout, so a caller that gives up early
// does not fail the others. A document that no longer compiles is cached
// as an error until the guild policy is replaced or invalidated.
func (e *Engine) Policy(ctx context.Context, guildID string) (*Policy, error) {
	if cached, ok := e.policies.Load(guildID); ok {
		return cached.(*cacheEntry).result()
	}

	if e.source == nil {
		return nil, nil
	}

	ch := e.loads.DoChan(guildID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.loadTimeout)
		defer cancel()

		doc, ok, err := e.source.ReadPolicy(loadCtx, guildID)
		if err != nil {
			e.observer.ObservePolicyLoad("error")
			return nil, fmt.Errorf("failed to read policy: %w", err)
		}

		entry := &cacheEntry{}
		if ok {
			policy, err := e.compiler.Compile(guildID, doc)
			if err != nil {
				e.observer.ObservePolicyLoad("invalid")
				log.Warnf("stored policy for guild %s does not compile: %v", guildID, err)
				entry.err = fmt.Errorf("%w: %v", ErrStoredPolicyInvalid, err)
			} else {
				entry.policy = policy
			}
		}

		// An update may have installed a newer policy while we were
		// reading; keep whichever got there first.
		actual, _ := e.policies.LoadOrStore(guildID, entry)
		if entry.err == nil {
			e.observer.ObservePolicyLoad("loaded")
		}
		return actual, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cacheEntry).result()
	case <-ctx.Done():
		return nil, fmt.Errorf("policy load for guild %s abandoned: %w", guildID, ctx.Err())
	}
}

// guildLock serializes policy writes for one guild so that the cached
// policy always matches the last persisted document.
func (e *Engine) guildLock(guildID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(guildID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// UpdatePolicy compiles a new document, persists it and atomically
// replaces the active policy. On any error the active policy is unchanged.
func (e *Engine) UpdatePolicy(ctx context.Context, guildID string, doc []byte) (*Policy, error) {
	policy, err := e.compiler.Compile(guildID, doc)
	if err != nil {
		return nil, err
	}

	mu := e.guildLock(guildID)
	mu.Lock()
	defer mu.Unlock()

	if e.source != nil {
		if err := e.source.WritePolicy(ctx, guildID, doc); err != nil {
			return nil, fmt.Errorf("failed to persist policy: %w", err)
		}
	}

	e.policies.Store(guildID, &cacheEntry{policy: policy})
	log.Infof("installed policy for guild %s with %d checks", guildID, policy.Len())

	return policy, nil
}

// DeletePolicy removes the guild policy. Joins are allowed afterwards.
func (e *Engine) DeletePolicy(ctx context.Context, guildID string) error {
	mu := e.guildLock(guildID)
	mu.Lock()
	defer mu.Unlock()

	if e.source != nil {
		if err := e.source.DeletePolicy(ctx, guildID); err != nil {
			return fmt.Errorf("failed to delete policy: %w", err)
		}
	}

	e.policies.Store(guildID, &cacheEntry{})
	return nil
}

// Install places an already compiled policy in the cache without
// persisting it.
func (e *Engine) Install(policy *Policy) {
	e.policies.Store(policy.GuildID(), &cacheEntry{policy: policy})
}

// Invalidate drops the cached policy so that the next evaluation reloads it.
func (e *Engine) Invalidate(guildID string) {
	e.policies.Delete(guildID)
}

// Stats returns engine counters.
func (e *Engine) Stats() Stats {
	cached := 0
	e.policies.Range(func(_, _ any) bool {
		cached++
		return true
	})

	return Stats{
		CachedGuilds: cached,
		Evaluations:  e.evaluations.Load(),
		Blocks:       e.blocks.Load(),
		ReportOnly:   e.reportOnly.Load(),
		Timeouts:     e.timeouts.Load(),
		InternalErrs: e.internalErrs.Load(),
	}
}
