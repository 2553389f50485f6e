// Package member describes the members joining a guild as seen by the gatekeeper.
package member

import (
	"fmt"
	"time"
)

// JoinEvent is a read-only snapshot of a member joining a guild.
// It is the only input available to checks.
type JoinEvent struct {
	// GuildID is the guild the member joined.
	GuildID string `json:"guild_id"`
	// MemberID is the platform identifier of the joining user.
	MemberID string `json:"member_id"`
	// Username is the account name of the user (not the guild nickname).
	Username string `json:"username"`
	// Discriminator is the legacy four digit tag, if any.
	Discriminator string `json:"discriminator,omitempty"`
	// CreatedAt is when the account was created (UTC).
	CreatedAt time.Time `json:"created_at"`
	// Avatar is the avatar hash. Empty means the platform default avatar.
	Avatar string `json:"avatar,omitempty"`
	// Bot is true for automated accounts.
	Bot bool `json:"bot"`
	// JoinedAt is when the member joined the guild (UTC).
	JoinedAt time.Time `json:"joined_at"`
}

// NewJoinEvent creates a JoinEvent for a member joining now.
func NewJoinEvent(guildID, memberID, username string, createdAt time.Time) *JoinEvent {
	return &JoinEvent{
		GuildID:   guildID,
		MemberID:  memberID,
		Username:  username,
		CreatedAt: createdAt.UTC(),
		JoinedAt:  time.Now().UTC(),
	}
}

// HasDefaultAvatar returns true if the member never set an avatar.
func (e *JoinEvent) HasDefaultAvatar() bool {
	return e.Avatar == ""
}

// AccountAge returns how long the account has existed at the given instant.
func (e *JoinEvent) AccountAge(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Tag returns the display form of the user, e.g. "name#1234".
func (e *JoinEvent) Tag() string {
	if e.Discriminator == "" || e.Discriminator == "0" {
		return e.Username
	}
	return fmt.Sprintf("%s#%s", e.Username, e.Discriminator)
}

// Validate checks that the identifying fields are present.
func (e *JoinEvent) Validate() error {
	if e.GuildID == "" {
		return fmt.Errorf("join event is missing guild id")
	}
	if e.MemberID == "" {
		return fmt.Errorf("join event is missing member id")
	}
	return nil
}
