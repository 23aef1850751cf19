package actions

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves canned responses keyed by escaped request path.
type fakeGitHub struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	requests  []string
	auth      string
}

type fakeResponse struct {
	status int
	header map[string]string
	body   string
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *GitHubClient) {
	t.Helper()
	return newFakeGitHubWithOptions(t, ClientOptions{})
}

func newFakeGitHubWithOptions(t *testing.T, opts ClientOptions) (*fakeGitHub, *GitHubClient) {
	t.Helper()
	fake := &fakeGitHub{responses: make(map[string]fakeResponse)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	opts.BaseURL = server.URL
	client, err := NewGitHubClient(context.Background(), opts)
	require.NoError(t, err)
	return fake, client
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	path := r.URL.EscapedPath()
	f.requests = append(f.requests, path)
	f.auth = r.Header.Get("Authorization")
	resp, ok := f.responses[path]
	f.mu.Unlock()

	if !ok {
		resp = fakeResponse{status: http.StatusNotFound, body: `{"message":"Not Found"}`}
	}
	for k, v := range resp.header {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	fmt.Fprint(w, resp.body)
}

func (f *fakeGitHub) handle(path string, status int, body string, header map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = fakeResponse{status: status, header: header, body: body}
}

func (f *fakeGitHub) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeGitHub) Auth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth
}

func refBody(ref, sha, typ string) string {
	return fmt.Sprintf(`{"ref":%q,"object":{"sha":%q,"type":%q}}`, ref, sha, typ)
}

func TestGitHubClient_GetRef(t *testing.T) {
	fake, client := newFakeGitHub(t)
	fake.handle("/repos/owner/repo/git/ref/tags/v1", http.StatusOK, refBody("refs/tags/v1", tagSHA, "tag"), nil)

	obj, err := client.GetRef(context.Background(), "owner", "repo", "tags/v1")
	require.NoError(t, err)
	assert.Equal(t, &RefObject{Ref: "refs/tags/v1", SHA: tagSHA, Type: ObjectTag}, obj)
}

func TestGitHubClient_GetRefEscapesSlashes(t *testing.T) {
	fake, client := newFakeGitHub(t)
	fake.handle("/repos/owner/repo/git/ref/heads/feature%2Fnew-thing", http.StatusOK,
		refBody("refs/heads/feature/new-thing", headSHA, "commit"), nil)

	obj, err := client.GetRef(context.Background(), "owner", "repo", "heads/feature/new-thing")
	require.NoError(t, err)
	assert.Equal(t, headSHA, obj.SHA)
	assert.Equal(t, ObjectCommit, obj.Type)
	assert.Equal(t, []string{"/repos/owner/repo/git/ref/heads/feature%2Fnew-thing"}, fake.Requests())
}

func TestGitHubClient_GetTag(t *testing.T) {
	fake, client := newFakeGitHub(t)
	fake.handle("/repos/owner/repo/git/tags/"+tagSHA, http.StatusOK,
		fmt.Sprintf(`{"sha":%q,"tag":"v1","object":{"sha":%q,"type":"commit"}}`, tagSHA, tagCommit), nil)

	sha, err := client.GetTag(context.Background(), "owner", "repo", tagSHA)
	require.NoError(t, err)
	assert.Equal(t, tagCommit, sha)
}

func TestGitHubClient_GetCommit(t *testing.T) {
	fake, client := newFakeGitHub(t)
	fake.handle("/repos/owner/repo/commits/"+commitSHA, http.StatusOK, fmt.Sprintf(`{"sha":%q}`, commitSHA), nil)

	sha, err := client.GetCommit(context.Background(), "owner", "repo", commitSHA)
	require.NoError(t, err)
	assert.Equal(t, commitSHA, sha)
}

func TestGitHubClient_Classification(t *testing.T) {
	reset := map[string]string{"X-RateLimit-Reset": "1744211324"}

	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"message":"Not Found"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "too many requests",
			status: http.StatusTooManyRequests,
			header: reset,
			body:   `{"message":"API rate limit exceeded for 10.0.0.1."}`,
			check: func(t *testing.T, err error) {
				var rateErr *RateLimitError
				require.ErrorAs(t, err, &rateErr)
				assert.Equal(t, "API rate limit exceeded for 10.0.0.1.", rateErr.Detail)
				assert.Equal(t, int64(1744211324), rateErr.Reset.Unix())
			},
		},
		{
			name:   "primary rate limit",
			status: http.StatusForbidden,
			header: map[string]string{
				"X-RateLimit-Limit":     "60",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     "1744211324",
			},
			body: `{"message":"API rate limit exceeded"}`,
			check: func(t *testing.T, err error) {
				var rateErr *RateLimitError
				require.ErrorAs(t, err, &rateErr)
				assert.Equal(t, "API rate limit exceeded", rateErr.Detail)
				assert.Equal(t, int64(1744211324), rateErr.Reset.Unix())
			},
		},
		{
			name:   "plain text too many requests",
			status: http.StatusTooManyRequests,
			header: reset,
			body:   "You have exceeded a secondary rate limit",
			check: func(t *testing.T, err error) {
				var rateErr *RateLimitError
				require.ErrorAs(t, err, &rateErr)
				assert.Equal(t, "You have exceeded a secondary rate limit", rateErr.Detail)
				assert.Equal(t, int64(1744211324), rateErr.Reset.Unix())
			},
		},
		{
			name:   "plain text too many requests with no remaining quota",
			status: http.StatusTooManyRequests,
			header: map[string]string{
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     "1744211324",
			},
			body: "You have exceeded a secondary rate limit",
			check: func(t *testing.T, err error) {
				var rateErr *RateLimitError
				require.ErrorAs(t, err, &rateErr)
				assert.Equal(t, "You have exceeded a secondary rate limit", rateErr.Detail)
				assert.Equal(t, int64(1744211324), rateErr.Reset.Unix())
			},
		},
		{
			name:   "plain text primary rate limit",
			status: http.StatusForbidden,
			header: map[string]string{
				"X-RateLimit-Limit":     "60",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     "1744211324",
			},
			body: "quota exhausted",
			check: func(t *testing.T, err error) {
				var rateErr *RateLimitError
				require.ErrorAs(t, err, &rateErr)
				assert.Equal(t, "quota exhausted", rateErr.Detail)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"message":"boom"}`,
			check: func(t *testing.T, err error) {
				var transportErr *TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
				assert.Contains(t, err.Error(), "boom")
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"message":"Bad credentials"}`,
			check: func(t *testing.T, err error) {
				var transportErr *TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, client := newFakeGitHub(t)
			fake.handle("/repos/owner/repo/git/ref/tags/v1", tt.status, tt.body, tt.header)
			fake.handle("/repos/owner/repo/git/tags/"+tagSHA, tt.status, tt.body, tt.header)
			fake.handle("/repos/owner/repo/commits/v1", tt.status, tt.body, tt.header)

			_, err := client.GetRef(context.Background(), "owner", "repo", "tags/v1")
			tt.check(t, err)
			_, err = client.GetTag(context.Background(), "owner", "repo", tagSHA)
			tt.check(t, err)
			_, err = client.GetCommit(context.Background(), "owner", "repo", "v1")
			tt.check(t, err)
		})
	}
}

func TestGitHubClient_EscapesPathSegments(t *testing.T) {
	fake, client := newFakeGitHub(t)
	fake.handle("/repos/my%20org/my%20repo/git/ref/tags/v1", http.StatusOK, refBody("refs/tags/v1", tagSHA, "tag"), nil)
	fake.handle("/repos/my%20org/my%20repo/git/tags/"+tagSHA, http.StatusOK,
		fmt.Sprintf(`{"sha":%q,"object":{"sha":%q,"type":"commit"}}`, tagSHA, tagCommit), nil)
	fake.handle("/repos/my%20org/my%20repo/commits/feature%2Fx", http.StatusOK, fmt.Sprintf(`{"sha":%q}`, headSHA), nil)

	_, err := client.GetRef(context.Background(), "my org", "my repo", "tags/v1")
	require.NoError(t, err)
	_, err = client.GetTag(context.Background(), "my org", "my repo", tagSHA)
	require.NoError(t, err)
	sha, err := client.GetCommit(context.Background(), "my org", "my repo", "feature/x")
	require.NoError(t, err)
	assert.Equal(t, headSHA, sha)

	assert.Equal(t, []string{
		"/repos/my%20org/my%20repo/git/ref/tags/v1",
		"/repos/my%20org/my%20repo/git/tags/" + tagSHA,
		"/repos/my%20org/my%20repo/commits/feature%2Fx",
	}, fake.Requests())
}

func TestGitHubClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := NewGitHubClient(context.Background(), ClientOptions{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.GetCommit(context.Background(), "owner", "repo", commitSHA)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Zero(t, transportErr.StatusCode)
}

func TestGitHubClient_Token(t *testing.T) {
	fake, client := newFakeGitHubWithOptions(t, ClientOptions{Token: "secret"})
	fake.handle("/repos/owner/repo/commits/"+commitSHA, http.StatusOK, fmt.Sprintf(`{"sha":%q}`, commitSHA), nil)

	_, err := client.GetCommit(context.Background(), "owner", "repo", commitSHA)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", fake.Auth())
}

func TestNewGitHubClient_InvalidBaseURL(t *testing.T) {
	_, err := NewGitHubClient(context.Background(), ClientOptions{BaseURL: "://bad"})
	require.Error(t, err)
}

func TestResolverWithGitHubClient(t *testing.T) {
	t.Run("annotated tag", func(t *testing.T) {
		fake, client := newFakeGitHub(t)
		fake.handle("/repos/nexmo/github-actions/git/ref/tags/v1", http.StatusOK, refBody("refs/tags/v1", tagSHA, "tag"), nil)
		fake.handle("/repos/nexmo/github-actions/git/tags/"+tagSHA, http.StatusOK,
			fmt.Sprintf(`{"sha":%q,"object":{"sha":%q,"type":"commit"}}`, tagSHA, tagCommit), nil)

		sha, err := newTestResolver(t, client).Resolve(context.Background(),
			NewActionReference("nexmo", "github-actions", "", "v1"))
		require.NoError(t, err)
		assert.Equal(t, tagCommit, sha)
	})

	t.Run("commit hash", func(t *testing.T) {
		fake, client := newFakeGitHub(t)
		fake.handle("/repos/nexmo/github-actions/commits/"+commitSHA, http.StatusOK, fmt.Sprintf(`{"sha":%q}`, commitSHA), nil)

		sha, err := newTestResolver(t, client).Resolve(context.Background(),
			NewActionReference("nexmo", "github-actions", "", commitSHA))
		require.NoError(t, err)
		assert.Equal(t, commitSHA, sha)
		assert.Equal(t, []string{
			"/repos/nexmo/github-actions/git/ref/tags/" + commitSHA,
			"/repos/nexmo/github-actions/git/ref/heads/" + commitSHA,
			"/repos/nexmo/github-actions/commits/" + commitSHA,
		}, fake.Requests())
	})

	t.Run("plain text rate limit body", func(t *testing.T) {
		fake, client := newFakeGitHub(t)
		fake.handle("/repos/nexmo/github-actions/git/ref/tags/v1", http.StatusTooManyRequests,
			"You have exceeded a secondary rate limit",
			map[string]string{"X-RateLimit-Reset": "1744211324"})

		_, err := newTestResolver(t, client).Resolve(context.Background(),
			NewActionReference("nexmo", "github-actions", "", "v1"))
		require.Error(t, err)
		assert.Equal(t, "Unable to find SHA for nexmo/github-actions@v1\n"+
			"You have exceeded a secondary rate limit\n"+
			"Limit resets at: 4/9/2025, 3:08:44 PM", err.Error())
		assert.Equal(t, []string{"/repos/nexmo/github-actions/git/ref/tags/v1"}, fake.Requests())
	})

	t.Run("rate limited on commit lookup", func(t *testing.T) {
		fake, client := newFakeGitHub(t)
		fake.handle("/repos/nexmo/github-actions/commits/master", http.StatusTooManyRequests,
			`{"message":"API rate limit exceeded for 10.0.0.1."}`,
			map[string]string{"X-RateLimit-Reset": "1744211324"})

		_, err := newTestResolver(t, client).Resolve(context.Background(),
			NewActionReference("nexmo", "github-actions", "", "master"))
		require.Error(t, err)
		assert.Equal(t, "Unable to find SHA for nexmo/github-actions@master\n"+
			"API rate limit exceeded for 10.0.0.1.\n"+
			"Limit resets at: 4/9/2025, 3:08:44 PM", err.Error())
	})
}
