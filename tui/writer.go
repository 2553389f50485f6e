package tui

import (
	"fmt"
	"io"
)

// statusLabelWidth aligns the label column of status sections.
const statusLabelWidth = 14

// sheetWriter renders one presenter call. The first write error is kept
// and every later write is dropped, so renderers check Err once at the end.
type sheetWriter struct {
	w     io.Writer
	color *Colorizer
	err   error
}

func newSheetWriter(w io.Writer, color *Colorizer) *sheetWriter {
	return &sheetWriter{w: w, color: color}
}

func (sw *sheetWriter) printf(format string, args ...any) {
	if sw.err != nil {
		return
	}
	_, sw.err = fmt.Fprintf(sw.w, format, args...)
}

func (sw *sheetWriter) println(args ...any) {
	if sw.err != nil {
		return
	}
	_, sw.err = fmt.Fprintln(sw.w, args...)
}

// section starts a titled block such as "Server" or "Database".
func (sw *sheetWriter) section(title string) {
	sw.printf("%s\n", sw.color.Header(title))
}

// field writes one indented label and value line inside a section.
func (sw *sheetWriter) field(label string, value any) {
	sw.printf("  %-*s %v\n", statusLabelWidth, label, value)
}

// rule writes a horizontal separator of the given width.
func (sw *sheetWriter) rule(width int) {
	sw.println(HorizontalLine(width))
}

// Err returns the first write error, if any.
func (sw *sheetWriter) Err() error {
	return sw.err
}
