package tui

import (
	"fmt"
	"io"
)

// eraseLine clears the current terminal line and returns the cursor.
const eraseLine = "\033[2K\r"

// SyncProgress shows the running count of audit records pushed to a
// stream target on a single terminal line. On non interactive writers it
// is silent so that sync summaries written as JSON stay parseable.
type SyncProgress struct {
	w     io.Writer
	color *Colorizer
	draw  bool
	shown bool
}

// NewSyncProgress creates a SyncProgress drawing on w.
func NewSyncProgress(w io.Writer, useColors bool) *SyncProgress {
	return &SyncProgress{
		w:     w,
		color: NewColorizer(useColors),
		draw:  IsInteractive(w),
	}
}

// Sent redraws the line for target after sent records were delivered.
func (p *SyncProgress) Sent(target string, sent int) {
	if !p.draw {
		return
	}

	line := fmt.Sprintf("[%s] %s audit records sent", target, FormatNumber(sent))
	fmt.Fprint(p.w, eraseLine+p.color.Dim(line))
	p.shown = true
}

// Done removes the progress line once a target has been drained.
func (p *SyncProgress) Done() {
	if !p.draw || !p.shown {
		return
	}

	fmt.Fprint(p.w, eraseLine)
	p.shown = false
}
