package checks

import (
	"context"

	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
)

// BlockDefaultAvatarCheck bounces members that never set an avatar.
type BlockDefaultAvatarCheck struct{}

// NewBlockDefaultAvatarCheck creates a new BlockDefaultAvatarCheck.
func NewBlockDefaultAvatarCheck() *BlockDefaultAvatarCheck {
	return &BlockDefaultAvatarCheck{}
}

func (c *BlockDefaultAvatarCheck) Key() string { return KeyBlockDefaultAvatar }

func (c *BlockDefaultAvatarCheck) Description() string {
	return "Blocks all users with a default avatar."
}

// Evaluate ignores its configuration.
func (c *BlockDefaultAvatarCheck) Evaluate(_ context.Context, _ string, event *member.JoinEvent) gatekeeper.Outcome {
	if event.HasDefaultAvatar() {
		return gatekeeper.Block("Has default avatar")
	}
	return gatekeeper.Pass()
}

// BlockBotsCheck bounces automated accounts.
type BlockBotsCheck struct{}

// NewBlockBotsCheck creates a new BlockBotsCheck.
func NewBlockBotsCheck() *BlockBotsCheck {
	return &BlockBotsCheck{}
}

func (c *BlockBotsCheck) Key() string { return KeyBlockBots }

func (c *BlockBotsCheck) Description() string {
	return "Blocks all bots from joining."
}

// Evaluate ignores its configuration.
func (c *BlockBotsCheck) Evaluate(_ context.Context, _ string, event *member.JoinEvent) gatekeeper.Outcome {
	if event.Bot {
		return gatekeeper.Block("Blocking all bots")
	}
	return gatekeeper.Pass()
}

// BlockAllCheck bounces everyone. Useful during raids.
type BlockAllCheck struct{}

// NewBlockAllCheck creates a new BlockAllCheck.
func NewBlockAllCheck() *BlockAllCheck {
	return &BlockAllCheck{}
}

func (c *BlockAllCheck) Key() string { return KeyBlockAll }

func (c *BlockAllCheck) Description() string {
	return "Blocks all users that try to join."
}

// Evaluate ignores its configuration.
func (c *BlockAllCheck) Evaluate(_ context.Context, _ string, _ *member.JoinEvent) gatekeeper.Outcome {
	return gatekeeper.Block("Blocking all users")
}

var (
	_ gatekeeper.Check = (*BlockDefaultAvatarCheck)(nil)
	_ gatekeeper.Check = (*BlockBotsCheck)(nil)
	_ gatekeeper.Check = (*BlockAllCheck)(nil)
)
