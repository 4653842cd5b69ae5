// Package github provides a minimal client for the GitHub REST API,
// scoped to what the audit needs: the set of currently-open issue numbers
// in one repository.
//
// Requests work with or without a personal access token; only the rate
// limit ceiling differs (60/hour anonymous, 5000/hour authenticated).
package github

import (
	"errors"
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// PageSize is the number of issues requested per page (GitHub's maximum).
	PageSize = 100

	// MaxPages caps pagination to guard against malformed Link headers.
	MaxPages = 1000
)

// Permanent failure modes. Neither is ever retried: a rate-limited run
// should fall back to the cache or be deferred, and bad credentials will
// not get better on their own.
var (
	ErrRateLimited = errors.New("github: rate limit exhausted")
	ErrAuth        = errors.New("github: authentication failed")
)

// Client calls the GitHub REST API for a single repository.
type Client struct {
	Token      string       // personal access token; empty = unauthenticated
	Owner      string       // repository owner (user or org)
	Repo       string       // repository name
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // HTTP client, DefaultTimeout applied by NewClient
	Retry      RetryPolicy  // transient-failure retry policy
}

// Issue is the slice of the GitHub issue payload the audit cares about.
// The issues endpoint also returns pull requests; PullRequest is non-nil
// for those and they are filtered out.
type Issue struct {
	Number      uint64   `json:"number"`
	State       string   `json:"state"`
	PullRequest *PullRef `json:"pull_request,omitempty"`
}

// PullRef marks an issues-endpoint entry as actually being a pull request.
type PullRef struct {
	URL string `json:"url,omitempty"`
}
