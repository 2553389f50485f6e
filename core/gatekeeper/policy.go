package gatekeeper

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PolicyEntry is one configured check in a guild policy.
type PolicyEntry struct {
	// CheckKey names the check in the registry.
	CheckKey string `json:"check"`
	// RawConfig is passed to the check verbatim. Empty when not configured.
	RawConfig string `json:"config,omitempty"`
}

// Policy is the compiled, ordered list of checks enabled for a guild.
// A Policy is never modified after compilation; updates produce a new one.
type Policy struct {
	guildID    string
	entries    []PolicyEntry
	digest     string
	compiledAt time.Time
}

func newPolicy(guildID string, entries []PolicyEntry, source []byte) *Policy {
	sum := sha256.Sum256(source)
	return &Policy{
		guildID:    guildID,
		entries:    entries,
		digest:     hex.EncodeToString(sum[:]),
		compiledAt: time.Now().UTC(),
	}
}

// GuildID returns the guild this policy belongs to.
func (p *Policy) GuildID() string { return p.guildID }

// Entries returns a copy of the entries in evaluation order.
func (p *Policy) Entries() []PolicyEntry {
	out := make([]PolicyEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Len returns the number of entries.
func (p *Policy) Len() int { return len(p.entries) }

// Digest returns the SHA-256 of the document the policy was compiled from.
func (p *Policy) Digest() string { return p.digest }

// CompiledAt returns when the policy was compiled.
func (p *Policy) CompiledAt() time.Time { return p.compiledAt }

// CheckKeys returns the check keys in evaluation order.
func (p *Policy) CheckKeys() []string {
	keys := make([]string, len(p.entries))
	for i, e := range p.entries {
		keys[i] = e.CheckKey
	}
	return keys
}
