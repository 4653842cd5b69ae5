package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/cenkalti/backoff/v4"

	"github.com/steveyegge/crashaudit/internal/debug"
)

// NewClient creates a client for owner/repo. An empty token selects
// unauthenticated mode.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		Retry: DefaultRetryPolicy(),
	}
}

// WithBaseURL returns a copy of the client with a custom base URL
// (for testing or GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	out := *c
	out.BaseURL = baseURL
	return &out
}

// WithHTTPClient returns a copy of the client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	out := *c
	out.HTTPClient = httpClient
	return &out
}

// WithRetryPolicy returns a copy of the client with a custom retry policy.
func (c *Client) WithRetryPolicy(policy RetryPolicy) *Client {
	out := *c
	out.Retry = policy
	return &out
}

// Authenticated reports whether the client carries a token.
func (c *Client) Authenticated() bool {
	return c.Token != ""
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}
	return u
}

// get performs a GET with auth headers and the retry policy applied.
// Transport errors and 5xx responses are retried; everything else is
// permanent. Rate limiting maps to ErrRateLimited, 401 to ErrAuth.
func (c *Client) get(ctx context.Context, urlStr string) ([]byte, http.Header, error) {
	var body []byte
	var headers http.Header

	err := c.Retry.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err) // transient
		}

		const maxResponseSize = 50 * 1024 * 1024
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading response: %w", err) // transient
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body = respBody
			headers = resp.Header
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(ErrAuth)
		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
			return backoff.Permanent(ErrRateLimited)
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error: status %d", resp.StatusCode) // transient
		default:
			return backoff.Permanent(fmt.Errorf("API error: %s (status %d)",
				string(respBody), resp.StatusCode))
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return body, headers, nil
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL.
func hasNextPage(headers http.Header) bool {
	link := headers.Get("Link")
	if link == "" {
		return false
	}
	return linkNextPattern.MatchString(link)
}

// FetchOpenIssueNumbers retrieves the numbers of all open issues in the
// repository, page by page, as one set. Pull requests returned by the
// issues endpoint are excluded. The union is order-independent, so a
// partially consumed Link chain never produces duplicates.
func (c *Client) FetchOpenIssueNumbers(ctx context.Context) (map[uint64]struct{}, error) {
	open := make(map[uint64]struct{})
	page := 1

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		params := map[string]string{
			"state":    "open",
			"per_page": strconv.Itoa(PageSize),
			"page":     strconv.Itoa(page),
		}
		urlStr := c.buildURL("/repos/"+c.Owner+"/"+c.Repo+"/issues", params)
		body, headers, err := c.get(ctx, urlStr)
		if err != nil {
			return nil, fmt.Errorf("fetching open issues (page %d): %w", page, err)
		}

		var issues []Issue
		if err := json.Unmarshal(body, &issues); err != nil {
			return nil, fmt.Errorf("parsing issues response (page %d): %w", page, err)
		}

		for i := range issues {
			if issues[i].PullRequest == nil {
				open[issues[i].Number] = struct{}{}
			}
		}
		debug.Logf("  fetched page %d (%d items, %d open issues so far)\n",
			page, len(issues), len(open))

		// A short page or a missing Link rel="next" both end pagination.
		if len(issues) < PageSize || !hasNextPage(headers) {
			break
		}
		page++
		if page > MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}

	return open, nil
}
