package checks

import (
	"context"
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/member"
)

// DefaultPatternCacheSize is how many compiled patterns a
// UsernameRegexCheck keeps. Least recently used patterns are evicted.
const DefaultPatternCacheSize = 256

// UsernameRegexCheck bounces members whose username matches a pattern.
// Compiled patterns are cached by pattern text.
type UsernameRegexCheck struct {
	cache *lru.Cache[string, compiledPattern]
}

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// NewUsernameRegexCheck creates a new UsernameRegexCheck with the default
// pattern cache size.
func NewUsernameRegexCheck() *UsernameRegexCheck {
	return NewUsernameRegexCheckWithCache(DefaultPatternCacheSize)
}

// NewUsernameRegexCheckWithCache creates a UsernameRegexCheck that keeps at
// most size compiled patterns. A size below one uses DefaultPatternCacheSize.
func NewUsernameRegexCheckWithCache(size int) *UsernameRegexCheck {
	if size < 1 {
		size = DefaultPatternCacheSize
	}

	// lru.New only fails for a non positive size.
	cache, _ := lru.New[string, compiledPattern](size)
	return &UsernameRegexCheck{cache: cache}
}

// CachedPatterns returns how many compiled patterns are held.
func (c *UsernameRegexCheck) CachedPatterns() int {
	return c.cache.Len()
}

func (c *UsernameRegexCheck) Key() string { return KeyUsernameRegex }

func (c *UsernameRegexCheck) Description() string {
	return "Blocks all usernames that match a regex. Specify a regex."
}

// Evaluate searches the username for the configured pattern.
func (c *UsernameRegexCheck) Evaluate(_ context.Context, pattern string, event *member.JoinEvent) gatekeeper.Outcome {
	if pattern == "" {
		return gatekeeper.Report("`username_regex` needs a pattern, ignoring this check.")
	}

	compiled := c.compile(pattern)
	if compiled.err != nil {
		return gatekeeper.Report(fmt.Sprintf("`username_regex` was invalid: `%v`, ignoring this check.", compiled.err))
	}

	if compiled.re.MatchString(event.Username) {
		return gatekeeper.Block("Matched username regex")
	}

	return gatekeeper.Pass()
}

func (c *UsernameRegexCheck) compile(pattern string) compiledPattern {
	if cached, ok := c.cache.Get(pattern); ok {
		return cached
	}

	re, err := regexp.Compile(pattern)
	compiled := compiledPattern{re: re, err: err}
	c.cache.Add(pattern, compiled)

	return compiled
}

var _ gatekeeper.Check = (*UsernameRegexCheck)(nil)
