package checks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
)

// MinimumCreationTimeCheck bounces accounts younger than the configured
// number of seconds.
type MinimumCreationTimeCheck struct {
	now func() time.Time
}

// NewMinimumCreationTimeCheck creates a new MinimumCreationTimeCheck using
// now as its clock.
func NewMinimumCreationTimeCheck(now func() time.Time) *MinimumCreationTimeCheck {
	if now == nil {
		now = time.Now
	}
	return &MinimumCreationTimeCheck{now: now}
}

func (c *MinimumCreationTimeCheck) Key() string { return KeyMinimumCreationTime }

func (c *MinimumCreationTimeCheck) Description() string {
	return "Blocks users that don't meet a \"minimum creation time\" check. Specify the amount of seconds " +
		"that an account has to exist for to be allowed to pass through."
}

// Evaluate expects the minimum account age in whole seconds.
func (c *MinimumCreationTimeCheck) Evaluate(_ context.Context, config string, event *member.JoinEvent) gatekeeper.Outcome {
	minimumRequired, err := strconv.ParseInt(strings.TrimSpace(config), 10, 64)
	if err != nil {
		return gatekeeper.Report("Invalid minimum creation time, must be a valid number.")
	}

	secondsOnPlatform := int64(event.AccountAge(c.now()) / time.Second)
	if secondsOnPlatform < minimumRequired {
		return gatekeeper.Block(fmt.Sprintf("Failed minimum creation time check (%d < %d)", secondsOnPlatform, minimumRequired))
	}

	return gatekeeper.Pass()
}

var _ gatekeeper.Check = (*MinimumCreationTimeCheck)(nil)
