// Package update checks GitHub for newer clipshelf releases.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// GitHubRepo is the repository to check for updates
	GitHubRepo = "mindmorass/clipshelf"

	// DefaultBaseURL is the GitHub API root
	DefaultBaseURL = "https://api.github.com"

	// CheckInterval is how often to check for updates
	CheckInterval = 6 * time.Hour
)

// Release represents a GitHub release
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
}

// UpdateInfo contains information about an available update
type UpdateInfo struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	ReleaseURL     string
	ReleaseNotes   string
	PublishedAt    time.Time
}

// Checker handles checking for updates
type Checker struct {
	currentVersion string
	baseURL        string
	httpClient     *http.Client

	mu         sync.Mutex
	lastCheck  time.Time
	lastResult *UpdateInfo
}

// NewChecker creates a new update checker against the GitHub API
func NewChecker(currentVersion string) *Checker {
	return &Checker{
		currentVersion: currentVersion,
		baseURL:        DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBaseURL points the checker at another API root
func (c *Checker) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

// Check fetches the latest release and compares it with the running version
func (c *Checker) Check(ctx context.Context) (*UpdateInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, GitHubRepo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "clipshelf-update-checker")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release: %w", err)
	}
	defer resp.Body.Close()

	noUpdate := &UpdateInfo{CurrentVersion: c.currentVersion}

	if resp.StatusCode == http.StatusNotFound {
		// no releases yet
		return c.remember(noUpdate), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}

	if release.Prerelease || release.Draft {
		return c.remember(noUpdate), nil
	}

	info := &UpdateInfo{
		Available:      IsNewerVersion(release.TagName, c.currentVersion),
		CurrentVersion: c.currentVersion,
		LatestVersion:  release.TagName,
		ReleaseURL:     release.HTMLURL,
		ReleaseNotes:   release.Body,
		PublishedAt:    release.PublishedAt,
	}
	if info.Available {
		slog.Info("update available", "current", c.currentVersion, "latest", release.TagName)
	}
	return c.remember(info), nil
}

func (c *Checker) remember(info *UpdateInfo) *UpdateInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCheck = time.Now()
	c.lastResult = info
	return info
}

// CheckIfNeeded checks for updates if enough time has passed
func (c *Checker) CheckIfNeeded(ctx context.Context) (*UpdateInfo, error) {
	c.mu.Lock()
	fresh := c.lastResult != nil && time.Since(c.lastCheck) < CheckInterval
	last := c.lastResult
	c.mu.Unlock()

	if fresh {
		return last, nil
	}
	return c.Check(ctx)
}

// GetLastResult returns the last check result without making a request
func (c *Checker) GetLastResult() *UpdateInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// GetCurrentVersion returns the current version
func (c *Checker) GetCurrentVersion() string {
	return c.currentVersion
}

// IsNewerVersion reports whether latest is a higher semantic version than
// current. Development builds never report updates.
func IsNewerVersion(latest, current string) bool {
	if current == "" || current == "dev" {
		return false
	}
	l, cur := canonical(latest), canonical(current)
	if !semver.IsValid(l) || !semver.IsValid(cur) {
		return false
	}
	return semver.Compare(l, cur) > 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
