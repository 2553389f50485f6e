package tui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

var stepFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const defaultFrameInterval = 100 * time.Millisecond

// StepOption configures RunStep.
type StepOption func(*step)

// WithFrameInterval sets how often the spinner frame advances.
func WithFrameInterval(d time.Duration) StepOption {
	return func(s *step) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithStepColors enables colored frames and result marks.
func WithStepColors(enabled bool) StepOption {
	return func(s *step) {
		s.color = NewColorizer(enabled)
	}
}

// withAlwaysDraw draws on any writer, not only terminals.
func withAlwaysDraw() StepOption {
	return func(s *step) {
		s.draw = true
	}
}

type step struct {
	w        io.Writer
	label    string
	interval time.Duration
	color    *Colorizer
	draw     bool
	err      error
}

func (s *step) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *step) frame(i int, elapsed time.Duration) {
	frame := s.color.Cyan(stepFrames[i%len(stepFrames)])
	s.printf("%s%s %s %s", eraseLine, frame, s.label, s.color.Dim(FormatDuration(elapsed)))
}

func (s *step) finish(err error, elapsed time.Duration) {
	mark, note := s.color.StatusOK(), FormatDuration(elapsed)
	if err != nil {
		mark, note = s.color.StatusFail(), "failed after "+note
	}
	s.printf("%s%s %s %s\n", eraseLine, mark, s.label, s.color.Dim(note))
}

// RunStep runs fn, a store or server call the operator waits on, while an
// animated line shows label and the elapsed time on w. When fn returns the
// line is replaced by a done or failed mark. Nothing is drawn unless w is
// a terminal, so redirected output is unaffected. fn receives ctx as is.
func RunStep[T any](ctx context.Context, w io.Writer, label string, fn func(context.Context) (T, error), opts ...StepOption) (T, error) {
	s := &step{
		w:        w,
		label:    label,
		interval: defaultFrameInterval,
		color:    NewColorizer(false),
		draw:     IsInteractive(w),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.draw {
		return fn(ctx)
	}

	start := time.Now()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.frame(i, time.Since(start))
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()

	result, err := fn(ctx)

	close(stop)
	wg.Wait()
	s.finish(err, time.Since(start))

	if err != nil {
		return result, err
	}
	return result, s.err
}
