package livelog

import (
	"time"

	"github.com/safedep/gatekeeper/core/audit"
)

type newRecordsMsg struct {
	records []*audit.Record
	// next is where the following poll resumes. Nil keeps the current cursor.
	next *cursor
}

type pollErrorMsg struct {
	err error
}

type tickMsg time.Time
