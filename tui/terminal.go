package tui

import (
	"io"
	"os"

	"golang.org/x/term"
)

// Table layout bounds. The lower bound fits the fixed audit columns plus
// a short detail column; wider terminals only grow the detail column.
const (
	fallbackTableWidth = 80
	minTableWidth      = 90
	maxTableWidth      = 200
)

func terminalFile(w io.Writer) (*os.File, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, false
	}
	return f, true
}

// IsInteractive reports whether w is a terminal. Spinners and progress
// lines are only drawn on interactive writers so that piped JSON and CSV
// output stays clean.
func IsInteractive(w io.Writer) bool {
	_, ok := terminalFile(w)
	return ok
}

// tableWidth returns the width tables written to w are laid out for.
func tableWidth(w io.Writer) int {
	f, ok := terminalFile(w)
	if !ok {
		return fallbackTableWidth
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return fallbackTableWidth
	}
	return max(minTableWidth, min(width, maxTableWidth))
}
