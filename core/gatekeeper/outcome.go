// Package gatekeeper provides the admission policy engine evaluated against member joins.
package gatekeeper

// OutcomeKind represents what a single check decided.
type OutcomeKind int

const (
	// OutcomePass means the check has no objection.
	OutcomePass OutcomeKind = iota
	// OutcomeBlock means the check vetoes the join.
	OutcomeBlock
	// OutcomeReport means the check could not render a verdict and wants
	// an operator to look at it. It never vetoes the join.
	OutcomeReport
)

// String returns the string representation of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomePass:
		return "pass"
	case OutcomeBlock:
		return "block"
	case OutcomeReport:
		return "report"
	default:
		return "unknown"
	}
}

// Outcome is the result of evaluating one check against one join event.
type Outcome struct {
	Kind OutcomeKind
	// Message is the block reason or the report diagnostic. Empty for Pass.
	Message string
}

// Pass returns an Outcome with no objection.
func Pass() Outcome {
	return Outcome{Kind: OutcomePass}
}

// Block returns an Outcome vetoing the join.
func Block(reason string) Outcome {
	return Outcome{Kind: OutcomeBlock, Message: reason}
}

// Report returns an Outcome surfacing a diagnostic without vetoing the join.
func Report(message string) Outcome {
	return Outcome{Kind: OutcomeReport, Message: message}
}

// IsPass returns true if the outcome has no objection.
func (o Outcome) IsPass() bool { return o.Kind == OutcomePass }

// IsBlock returns true if the outcome vetoes the join.
func (o Outcome) IsBlock() bool { return o.Kind == OutcomeBlock }

// IsReport returns true if the outcome carries a diagnostic.
func (o Outcome) IsReport() bool { return o.Kind == OutcomeReport }
