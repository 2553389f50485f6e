// Package release looks up the latest published gatekeeper release.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/safedep/dry/log"
	"golang.org/x/mod/semver"
)

const (
	defaultOwner   = "safedep"
	defaultRepo    = "gatekeeper"
	defaultTimeout = 5 * time.Second
	defaultBaseURL = "https://api.github.com"
)

// Latest describes the newest release relative to the running build.
type Latest struct {
	Newer          bool   `json:"newer"`
	Version        string `json:"version"`
	CurrentVersion string `json:"current_version"`
	URL            string `json:"url"`
}

// Notice returns a one line upgrade hint, or "" when up to date.
func (l *Latest) Notice() string {
	if l == nil || !l.Newer {
		return ""
	}
	return fmt.Sprintf("gatekeeper %s is available (running %s): %s", l.Version, l.CurrentVersion, l.URL)
}

type Option func(*Checker)

// Checker queries the GitHub releases API.
type Checker struct {
	owner   string
	repo    string
	baseURL string
	client  *http.Client
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		c.client = client
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Checker) {
		c.baseURL = baseURL
	}
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		owner:   defaultOwner,
		repo:    defaultRepo,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: defaultTimeout}
	}
	return c
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	HTMLURL    string `json:"html_url"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// Check compares current against the latest release.
func (c *Checker) Check(ctx context.Context, current string) (*Latest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", strings.TrimRight(c.baseURL, "/"), c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("releases API returned status %d", resp.StatusCode)
	}

	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("invalid release response: %w", err)
	}

	return &Latest{
		Newer:          !rel.Draft && !rel.Prerelease && isNewer(current, rel.TagName),
		Version:        rel.TagName,
		CurrentVersion: current,
		URL:            rel.HTMLURL,
	}, nil
}

// CheckAsync runs Check in the background. The channel receives at most
// one result and is closed afterwards; failures are only logged.
func (c *Checker) CheckAsync(ctx context.Context, current string) <-chan *Latest {
	ch := make(chan *Latest, 1)
	go func() {
		defer close(ch)
		latest, err := c.Check(ctx, current)
		if err != nil {
			log.Debugf("release check failed: %v", err)
			return
		}
		ch <- latest
	}()
	return ch
}

// isNewer reports whether latest is a higher semver than current. Dev
// builds never compare as outdated.
func isNewer(current, latest string) bool {
	current = normalize(current)
	latest = normalize(latest)

	if !semver.IsValid(current) || !semver.IsValid(latest) {
		return false
	}

	return semver.Compare(latest, current) > 0
}

func normalize(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
