package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
	"github.com/safedep/gatekeeper/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcEvaluator func(ctx context.Context, event *member.JoinEvent) *gatekeeper.Verdict

func (f funcEvaluator) Evaluate(ctx context.Context, event *member.JoinEvent) *gatekeeper.Verdict {
	return f(ctx, event)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	verdicts []*gatekeeper.Verdict
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, verdict *gatekeeper.Verdict, _ *member.JoinEvent) (*dispatch.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verdicts = append(d.verdicts, verdict)
	return &dispatch.Result{Verdict: verdict.Kind}, d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.verdicts)
}

func allowAll() Evaluator {
	return funcEvaluator(func(_ context.Context, event *member.JoinEvent) *gatekeeper.Verdict {
		return gatekeeper.NewAllowVerdict(event.GuildID)
	})
}

func join(memberID string) *member.JoinEvent {
	return &member.JoinEvent{GuildID: "g1", MemberID: memberID}
}

func TestPipeline_ProcessesAllEvents(t *testing.T) {
	dispatcher := &recordingDispatcher{}

	var outcomes atomic.Int64
	p := New(allowAll(), dispatcher, Config{
		Workers:   3,
		QueueSize: 100,
		OnOutcome: func(Outcome) { outcomes.Add(1) },
	})

	source := make(chan *member.JoinEvent)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), source) }()

	for i := 0; i < 50; i++ {
		source <- join("m")
	}
	close(source)

	require.NoError(t, <-done)
	assert.Equal(t, 50, dispatcher.count())
	assert.Equal(t, int64(50), outcomes.Load())
	assert.Equal(t, Stats{Processed: 50}, p.Stats())
}

func TestPipeline_DropsWhenQueueFull(t *testing.T) {
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	evaluator := funcEvaluator(func(_ context.Context, event *member.JoinEvent) *gatekeeper.Verdict {
		started <- struct{}{}
		<-release
		return gatekeeper.NewAllowVerdict(event.GuildID)
	})

	p := New(evaluator, nil, Config{Workers: 1, QueueSize: 1})

	source := make(chan *member.JoinEvent)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), source) }()

	source <- join("m1")
	<-started

	source <- join("m2") // queued
	source <- join("m3") // dropped

	close(release)
	close(source)

	require.NoError(t, <-done)
	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestPipeline_DispatchFailureDoesNotStop(t *testing.T) {
	dispatcher := &recordingDispatcher{err: dispatch.ErrPlatformUnavailable}
	p := New(allowAll(), dispatcher, Config{Workers: 1})

	source := make(chan *member.JoinEvent, 3)
	source <- join("m1")
	source <- join("m2")
	source <- nil
	close(source)

	require.NoError(t, p.Run(context.Background(), source))

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(2), stats.Failed)
}

func TestPipeline_StopsOnCancel(t *testing.T) {
	p := New(allowAll(), nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	source := make(chan *member.JoinEvent)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, source) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}

func TestPipeline_Process(t *testing.T) {
	dispatcher := &recordingDispatcher{err: errors.New("boom")}
	p := New(funcEvaluator(func(_ context.Context, event *member.JoinEvent) *gatekeeper.Verdict {
		return &gatekeeper.Verdict{Kind: gatekeeper.VerdictBlock, GuildID: event.GuildID, CheckKey: "block_all"}
	}), dispatcher, Config{})

	outcome := p.Process(context.Background(), join("m1"))

	assert.Equal(t, gatekeeper.VerdictBlock, outcome.Verdict.Kind)
	assert.EqualError(t, outcome.Err, "boom")
	require.NotNil(t, outcome.Result)
	assert.Equal(t, int64(1), p.Stats().Failed)
}
