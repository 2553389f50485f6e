// Package pipeline runs join events through evaluation and dispatch on a
// bounded pool of workers.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
	"github.com/safedep/gatekeeper/dispatch"
	"github.com/safedep/gatekeeper/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Evaluator produces verdicts for join events.
type Evaluator interface {
	Evaluate(ctx context.Context, event *member.JoinEvent) *gatekeeper.Verdict
}

// Dispatcher acts on verdicts.
type Dispatcher interface {
	Dispatch(ctx context.Context, verdict *gatekeeper.Verdict, event *member.JoinEvent) (*dispatch.Result, error)
}

// Outcome is the processed form of one join event.
type Outcome struct {
	Event   *member.JoinEvent
	Verdict *gatekeeper.Verdict
	Result  *dispatch.Result
	Err     error
}

// Config configures the pipeline.
type Config struct {
	// Workers is the number of concurrent evaluations.
	Workers int
	// QueueSize bounds the events waiting for a worker. Events arriving
	// while the queue is full are dropped.
	QueueSize int
	// Metrics receives queue telemetry. Optional.
	Metrics *metrics.Metrics
	// OnOutcome is called after each event is processed. Optional.
	OnOutcome func(Outcome)
}

// Stats counts pipeline activity.
type Stats struct {
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
}

// Pipeline evaluates and dispatches join events.
type Pipeline struct {
	evaluator  Evaluator
	dispatcher Dispatcher
	cfg        Config

	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// New creates a Pipeline.
func New(evaluator Evaluator, dispatcher Dispatcher, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	return &Pipeline{
		evaluator:  evaluator,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Run consumes events until the source is closed or ctx is cancelled.
// Queued events are drained before Run returns when the source closes.
func (p *Pipeline) Run(ctx context.Context, source <-chan *member.JoinEvent) error {
	queue := make(chan *member.JoinEvent, p.cfg.QueueSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)

		for {
			select {
			case <-gctx.Done():
				return nil
			case event, ok := <-source:
				if !ok {
					return nil
				}
				p.enqueue(queue, event)
			}
		}
	})

	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			for event := range queue {
				p.cfg.Metrics.SetQueueDepth(len(queue))
				if gctx.Err() != nil {
					continue
				}
				p.Process(gctx, event)
			}
			return nil
		})
	}

	return g.Wait()
}

func (p *Pipeline) enqueue(queue chan<- *member.JoinEvent, event *member.JoinEvent) {
	if event == nil {
		return
	}

	select {
	case queue <- event:
		p.cfg.Metrics.SetQueueDepth(len(queue))
	default:
		p.dropped.Add(1)
		p.cfg.Metrics.IncrementDropped()
		log.Warnf("pipeline queue full, dropping join of member %s in guild %s",
			event.MemberID, event.GuildID)
	}
}

// Process evaluates and dispatches a single event synchronously.
func (p *Pipeline) Process(ctx context.Context, event *member.JoinEvent) Outcome {
	verdict := p.evaluator.Evaluate(ctx, event)
	outcome := Outcome{Event: event, Verdict: verdict}

	log.Debugf("guild %s member %s: %s", event.GuildID, event.MemberID, verdict.Summary())

	if p.dispatcher != nil {
		outcome.Result, outcome.Err = p.dispatcher.Dispatch(ctx, verdict, event)
	}

	p.processed.Add(1)
	if outcome.Err != nil {
		p.failed.Add(1)
		log.Errorf("dispatch failed for member %s in guild %s: %v", event.MemberID, event.GuildID, outcome.Err)
	}

	if p.cfg.OnOutcome != nil {
		p.cfg.OnOutcome(outcome)
	}

	return outcome
}

// Stats returns pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}
