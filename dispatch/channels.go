package dispatch

// ChannelDirectory resolves the moderation channel of a guild.
type ChannelDirectory interface {
	ModerationChannel(guildID string) (channelID string, ok bool)
}

// StaticChannels is a fixed guild to channel mapping, usually loaded from
// configuration.
type StaticChannels map[string]string

// ModerationChannel implements ChannelDirectory.
func (s StaticChannels) ModerationChannel(guildID string) (string, bool) {
	id, ok := s[guildID]
	return id, ok && id != ""
}

var _ ChannelDirectory = StaticChannels{}
