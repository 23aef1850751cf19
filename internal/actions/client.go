package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout is the default HTTP timeout for GitHub API requests.
	DefaultTimeout = 10 * time.Second
	// GitHubTokenEnvVar is the environment variable for GitHub authentication.
	GitHubTokenEnvVar = "GITHUB_TOKEN" //nolint:gosec // Not a credential, just env var name

	headerRateReset = "X-RateLimit-Reset"
)

// ClientOptions configures a GitHubClient.
type ClientOptions struct {
	Token      string        // Optional API token
	BaseURL    string        // API base URL, e.g. "https://ghe.example.com/api/v3/"; empty for api.github.com
	Timeout    time.Duration // HTTP timeout; DefaultTimeout if zero
	HTTPClient *http.Client  // Optional base client; Token and Timeout are applied on top of it
}

// GitHubClient implements Lookup against the GitHub REST API.
type GitHubClient struct {
	github *github.Client
}

// Ensure GitHubClient implements Lookup
var _ Lookup = (*GitHubClient)(nil)

// NewGitHubClient creates a GitHubClient from the options.
func NewGitHubClient(ctx context.Context, opts ClientOptions) (*GitHubClient, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, httpClient), ts)
	} else {
		c := *httpClient
		httpClient = &c
	}
	httpClient.Timeout = timeout

	gh := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		baseURL := opts.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	return &GitHubClient{github: gh}, nil
}

// GetRef fetches a tag or branch ref. Slashes inside the ref name are percent-encoded.
func (c *GitHubClient) GetRef(ctx context.Context, owner, repo, refPath string) (*RefObject, error) {
	var ref github.Reference
	if err := c.get(ctx, repoPath(owner, repo, "git/ref", escapeRefPath(refPath)), &ref); err != nil {
		return nil, err
	}

	return &RefObject{
		Ref:  ref.GetRef(),
		SHA:  ref.GetObject().GetSHA(),
		Type: ObjectType(ref.GetObject().GetType()),
	}, nil
}

// GetTag dereferences an annotated tag object to the commit it points at.
func (c *GitHubClient) GetTag(ctx context.Context, owner, repo, tagSHA string) (string, error) {
	var tag github.Tag
	if err := c.get(ctx, repoPath(owner, repo, "git/tags", url.PathEscape(tagSHA)), &tag); err != nil {
		return "", err
	}
	return tag.GetObject().GetSHA(), nil
}

// GetCommit confirms a commit exists and returns its canonical SHA.
func (c *GitHubClient) GetCommit(ctx context.Context, owner, repo, shaOrRef string) (string, error) {
	var commit github.RepositoryCommit
	if err := c.get(ctx, repoPath(owner, repo, "commits", url.PathEscape(shaOrRef)), &commit); err != nil {
		return "", err
	}
	return commit.GetSHA(), nil
}

// get issues a GET for the API path and decodes the JSON response into v.
func (c *GitHubClient) get(ctx context.Context, path string, v any) error {
	req, err := c.github.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	resp, err := c.github.Do(ctx, req, v)
	if err != nil {
		return classify(resp, err)
	}
	return nil
}

// repoPath joins an already escaped endpoint suffix onto "repos/{owner}/{repo}".
func repoPath(owner, repo, endpoint, suffix string) string {
	return fmt.Sprintf("repos/%s/%s/%s/%s", url.PathEscape(owner), url.PathEscape(repo), endpoint, suffix)
}

// escapeRefPath turns "heads/feature/x" into "heads/feature%2Fx".
func escapeRefPath(refPath string) string {
	kind, name, ok := strings.Cut(refPath, "/")
	if !ok {
		return url.PathEscape(refPath)
	}
	return kind + "/" + url.PathEscape(name)
}

// classify maps a go-github failure to ErrNotFound, *RateLimitError or *TransportError.
func classify(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{
			Detail: providerText(rateErr.Message, rateErr.Response),
			Reset:  resetTime(rateErr.Response, rateErr.Rate.Reset.Time),
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var fallback time.Time
		if abuseErr.RetryAfter != nil {
			fallback = time.Now().Add(*abuseErr.RetryAfter)
		}
		return &RateLimitError{
			Detail: providerText(abuseErr.Message, abuseErr.Response),
			Reset:  resetTime(abuseErr.Response, fallback),
		}
	}

	var status int
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Detail: errorMessage(err),
			Reset:  resetTime(resp.Response, resp.Rate.Reset.Time),
		}
	default:
		return &TransportError{StatusCode: status, Err: err}
	}
}

// resetTime reads the reset epoch from the response headers, or returns fallback.
func resetTime(resp *http.Response, fallback time.Time) time.Time {
	if resp == nil {
		return fallback
	}
	epoch, err := strconv.ParseInt(resp.Header.Get(headerRateReset), 10, 64)
	if err != nil {
		return fallback
	}
	return time.Unix(epoch, 0)
}

// errorMessage returns the provider text carried by err, or err's own text.
func errorMessage(err error) string {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) {
		if text := providerText(errResp.Message, errResp.Response); text != "" {
			return text
		}
	}
	return err.Error()
}

// providerText returns message, or the raw response body when the provider
// sent no JSON message. go-github leaves the body readable after CheckResponse.
func providerText(message string, resp *http.Response) string {
	if message != "" || resp == nil || resp.Body == nil {
		return message
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(data)
}
