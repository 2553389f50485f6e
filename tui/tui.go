// Package tui provides the presentation layer for terminal output.
package tui

import (
	"io"
	"os"
	"time"
)

// Format represents the output format.
type Format string

const (
	// FormatTable is the default table format.
	FormatTable Format = "table"
	// FormatJSON is JSON format.
	FormatJSON Format = "json"
	// FormatJSONL is newline-delimited JSON format.
	FormatJSONL Format = "jsonl"
	// FormatCSV is CSV format.
	FormatCSV Format = "csv"
)

// ParseFormat maps a --format flag value onto a Format.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatTable, FormatJSON, FormatJSONL, FormatCSV:
		return Format(s), true
	case "":
		return FormatTable, true
	default:
		return "", false
	}
}

// Presenter defines the interface for output rendering.
type Presenter interface {
	// RenderStatus renders the local and server status.
	RenderStatus(status *StatusView) error

	// RenderChecks renders the registered checks.
	RenderChecks(checks []*CheckView) error

	// RenderGuilds renders the guilds that have a stored policy.
	RenderGuilds(guilds []*GuildPolicyView) error

	// RenderPolicy renders a guild policy.
	RenderPolicy(policy *PolicyView) error

	// RenderValidation renders the result of compiling a document.
	RenderValidation(result *ValidationView) error

	// RenderVerdict renders a dry-run evaluation.
	RenderVerdict(verdict *VerdictView) error

	// RenderAudits renders audit records.
	RenderAudits(records []*AuditView) error

	// RenderPrune renders the result of applying retention.
	RenderPrune(result *PruneView) error

	// RenderConfig renders the configuration.
	RenderConfig(config *ConfigView) error

	// RenderDiff renders a policy diff.
	RenderDiff(diff *DiffView) error

	// RenderStreamSync renders stream sync results.
	RenderStreamSync(result *StreamSyncView) error

	// RenderError renders an error message.
	RenderError(err error) error

	// RenderMessage renders a simple message.
	RenderMessage(message string) error
}

// PresenterOptions configures presenter behavior.
type PresenterOptions struct {
	// Writer is the output destination.
	Writer io.Writer
	// UseColors indicates if colors should be used.
	UseColors bool
	// Verbose increases output verbosity.
	Verbose bool
	// TerminalWidth is the width of the terminal for table rendering.
	// If 0, the width will be auto-detected.
	TerminalWidth int
	// Location is the time zone for displayed timestamps. Nil means local.
	Location *time.Location
}

// NewPresenter creates a new presenter for the given format.
func NewPresenter(format Format, opts PresenterOptions) Presenter {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	switch format {
	case FormatJSON:
		return NewJSONPresenter(opts)
	case FormatJSONL:
		return NewJSONLPresenter(opts)
	case FormatCSV:
		return NewCSVPresenter(opts)
	default:
		return NewTablePresenter(opts)
	}
}

// DefaultPresenter returns a presenter with default options.
func DefaultPresenter() Presenter {
	return NewPresenter(FormatTable, PresenterOptions{
		Writer:    os.Stdout,
		UseColors: true,
	})
}
