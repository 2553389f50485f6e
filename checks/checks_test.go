package checks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func joinEvent(username string, age time.Duration) *member.JoinEvent {
	return &member.JoinEvent{
		GuildID:   "guild",
		MemberID:  "member",
		Username:  username,
		CreatedAt: fixedNow.Add(-age),
		Avatar:    "abc123",
		JoinedAt:  fixedNow,
	}
}

func TestBlockDefaultAvatarCheck(t *testing.T) {
	check := NewBlockDefaultAvatarCheck()
	ctx := context.Background()

	withAvatar := joinEvent("alice", time.Hour)
	assert.True(t, check.Evaluate(ctx, "", withAvatar).IsPass())

	withoutAvatar := joinEvent("alice", time.Hour)
	withoutAvatar.Avatar = ""
	outcome := check.Evaluate(ctx, "ignored", withoutAvatar)
	assert.True(t, outcome.IsBlock())
	assert.Equal(t, "Has default avatar", outcome.Message)
}

func TestBlockBotsCheck(t *testing.T) {
	check := NewBlockBotsCheck()
	ctx := context.Background()

	human := joinEvent("alice", time.Hour)
	assert.True(t, check.Evaluate(ctx, "", human).IsPass())

	bot := joinEvent("helper", time.Hour)
	bot.Bot = true
	assert.True(t, check.Evaluate(ctx, "", bot).IsBlock())
}

func TestBlockAllCheck(t *testing.T) {
	check := NewBlockAllCheck()

	outcome := check.Evaluate(context.Background(), "", joinEvent("anyone", 365*24*time.Hour))
	assert.True(t, outcome.IsBlock())
	assert.Equal(t, "Blocking all users", outcome.Message)
}

func TestMinimumCreationTimeCheck(t *testing.T) {
	check := NewMinimumCreationTimeCheck(clock)

	tests := []struct {
		name     string
		config   string
		age      time.Duration
		expected gatekeeper.OutcomeKind
	}{
		{"younger than minimum", "3600", 1800 * time.Second, gatekeeper.OutcomeBlock},
		{"older than minimum", "3600", 7200 * time.Second, gatekeeper.OutcomePass},
		{"exactly the minimum", "3600", 3600 * time.Second, gatekeeper.OutcomePass},
		{"surrounding whitespace", " 60 ", 30 * time.Second, gatekeeper.OutcomeBlock},
		{"not a number", "abc", time.Second, gatekeeper.OutcomeReport},
		{"fractional", "1.5", time.Second, gatekeeper.OutcomeReport},
		{"empty", "", time.Second, gatekeeper.OutcomeReport},
		{"zero", "0", 0, gatekeeper.OutcomePass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := check.Evaluate(context.Background(), tt.config, joinEvent("alice", tt.age))
			assert.Equal(t, tt.expected, outcome.Kind, outcome.Message)
		})
	}
}

func TestMinimumCreationTimeCheck_BlockMessage(t *testing.T) {
	check := NewMinimumCreationTimeCheck(clock)

	outcome := check.Evaluate(context.Background(), "3600", joinEvent("alice", 1800*time.Second))
	require.True(t, outcome.IsBlock())
	assert.Equal(t, "Failed minimum creation time check (1800 < 3600)", outcome.Message)
}

func TestUsernameRegexCheck(t *testing.T) {
	check := NewUsernameRegexCheck()

	tests := []struct {
		name     string
		pattern  string
		username string
		expected gatekeeper.OutcomeKind
	}{
		{"matches anywhere", "spam", "xxspamxx", gatekeeper.OutcomeBlock},
		{"anchored no match", "^spam", "xxspam", gatekeeper.OutcomePass},
		{"anchored match", "^spam", "spammer", gatekeeper.OutcomeBlock},
		{"case sensitive", "spam", "SPAM", gatekeeper.OutcomePass},
		{"case insensitive flag", "(?i)spam", "SPAM", gatekeeper.OutcomeBlock},
		{"invalid pattern", "[", "anything", gatekeeper.OutcomeReport},
		{"empty pattern", "", "anything", gatekeeper.OutcomeReport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := check.Evaluate(context.Background(), tt.pattern, joinEvent(tt.username, time.Hour))
			assert.Equal(t, tt.expected, outcome.Kind, outcome.Message)
		})
	}
}

func TestUsernameRegexCheck_InvalidPatternMessage(t *testing.T) {
	check := NewUsernameRegexCheck()

	outcome := check.Evaluate(context.Background(), "[", joinEvent("alice", time.Hour))
	require.True(t, outcome.IsReport())
	assert.Contains(t, outcome.Message, "`username_regex` was invalid")
	assert.Contains(t, outcome.Message, "ignoring this check")
}

func TestUsernameRegexCheck_ConcurrentUse(t *testing.T) {
	check := NewUsernameRegexCheck()
	patterns := []string{"a+", "b+", "[", "^c"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pattern := patterns[i%len(patterns)]
			outcome := check.Evaluate(context.Background(), pattern, joinEvent("aaa", time.Hour))
			if pattern == "[" {
				assert.True(t, outcome.IsReport())
			}
		}(i)
	}
	wg.Wait()
}

func TestUsernameRegexCheck_PatternCacheIsBounded(t *testing.T) {
	check := NewUsernameRegexCheckWithCache(8)

	for i := 0; i < 100; i++ {
		pattern := fmt.Sprintf("^spam%03d$", i)

		outcome := check.Evaluate(context.Background(), pattern, joinEvent(fmt.Sprintf("spam%03d", i), time.Hour))
		assert.True(t, outcome.IsBlock(), pattern)

		outcome = check.Evaluate(context.Background(), pattern, joinEvent("alice", time.Hour))
		assert.True(t, outcome.IsPass(), pattern)

		assert.LessOrEqual(t, check.CachedPatterns(), 8)
	}
	assert.Equal(t, 8, check.CachedPatterns())

	// Evicted patterns compile again on demand.
	outcome := check.Evaluate(context.Background(), "^spam000$", joinEvent("spam000", time.Hour))
	assert.True(t, outcome.IsBlock())
	assert.Equal(t, 8, check.CachedPatterns())
}

func TestNewUsernameRegexCheck_DefaultCacheSize(t *testing.T) {
	check := NewUsernameRegexCheckWithCache(0)

	for i := 0; i < DefaultPatternCacheSize+10; i++ {
		check.Evaluate(context.Background(), fmt.Sprintf("p%d", i), joinEvent("alice", time.Hour))
	}
	assert.Equal(t, DefaultPatternCacheSize, check.CachedPatterns())
}

func TestRegister(t *testing.T) {
	registry := gatekeeper.NewRegistry()
	require.NoError(t, Register(registry, Options{Now: clock}))

	assert.Equal(t, []string{
		KeyBlockAll,
		KeyBlockBots,
		KeyBlockDefaultAvatar,
		KeyMinimumCreationTime,
		KeyUsernameRegex,
	}, registry.Keys())

	err := Register(registry, Options{})
	assert.ErrorIs(t, err, gatekeeper.ErrDuplicateCheck)
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	assert.True(t, registry.Sealed())
	assert.Equal(t, 5, registry.Len())

	for _, check := range registry.All() {
		assert.NotEmpty(t, check.Description(), check.Key())
	}
}
