package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v55/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
	"github.com/kurihiro0119/github-traffic-history/internal/logging"
)

var testRepo = domain.Repository{Owner: "octo", Name: "hello"}

// setupTestCollector creates a collector that talks to a mock HTTP server.
func setupTestCollector(t *testing.T, handler http.Handler) *githubCollector {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	return &githubCollector{
		client:      restClient,
		graphql:     githubv4.NewEnterpriseClient(server.URL+"/graphql", server.Client()),
		rateLimiter: NewRateLimiter(0, logging.Discard()),
		logger:      logging.Discard(),
	}
}

func TestGitHubCollector_FetchTraffic(t *testing.T) {
	testCases := []struct {
		name     string
		metric   domain.Metric
		path     string
		body     string
		expected []domain.DailyCount
	}{
		{
			name:   "views are converted and sorted by date",
			metric: domain.MetricViews,
			path:   "/repos/octo/hello/traffic/views",
			body: `{"count":9,"uniques":4,"views":[
				{"timestamp":"2024-01-03T00:00:00Z","count":5,"uniques":3},
				{"timestamp":"2024-01-01T00:00:00Z","count":4,"uniques":1}]}`,
			expected: []domain.DailyCount{
				{Date: "2024-01-01", Count: 4, UniqueCount: 1},
				{Date: "2024-01-03", Count: 5, UniqueCount: 3},
			},
		},
		{
			name:   "clones",
			metric: domain.MetricClones,
			path:   "/repos/octo/hello/traffic/clones",
			body:   `{"count":2,"uniques":2,"clones":[{"timestamp":"2024-02-10T00:00:00Z","count":2,"uniques":2}]}`,
			expected: []domain.DailyCount{
				{Date: "2024-02-10", Count: 2, UniqueCount: 2},
			},
		},
		{
			name:     "no traffic yields an empty list",
			metric:   domain.MetricViews,
			path:     "/repos/octo/hello/traffic/views",
			body:     `{"count":0,"uniques":0,"views":[]}`,
			expected: []domain.DailyCount{},
		},
		{
			name:   "repeated day keeps the larger bucket",
			metric: domain.MetricViews,
			path:   "/repos/octo/hello/traffic/views",
			body: `{"views":[
				{"timestamp":"2024-01-01T00:00:00Z","count":4,"uniques":1},
				{"timestamp":"2024-01-01T00:00:00Z","count":7,"uniques":2}]}`,
			expected: []domain.DailyCount{
				{Date: "2024-01-01", Count: 7, UniqueCount: 2},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := setupTestCollector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tc.path, r.URL.Path)
				assert.Equal(t, "day", r.URL.Query().Get("per"))
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tc.body)
			}))

			counts, err := c.FetchTraffic(context.Background(), testRepo, tc.metric)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, counts)
		})
	}
}

func TestGitHubCollector_FetchTrafficErrors(t *testing.T) {
	testCases := []struct {
		name    string
		handler func(w http.ResponseWriter, r *http.Request)
		code    apperrors.ErrCode
	}{
		{
			name: "missing push access is unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"Must have push access to repository"}`)
			},
			code: apperrors.ErrCodeUnauthorized,
		},
		{
			name: "bad credentials",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"message":"Bad credentials"}`)
			},
			code: apperrors.ErrCodeUnauthorized,
		},
		{
			name: "unknown repository",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			},
			code: apperrors.ErrCodeNotFound,
		},
		{
			name: "primary rate limit",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Limit", "5000")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"API rate limit exceeded for user ID 1."}`)
			},
			code: apperrors.ErrCodeRateLimited,
		},
		{
			name: "server error is transient",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, `{"message":"Server Error"}`)
			},
			code: apperrors.ErrCodeTransientFetch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := setupTestCollector(t, http.HandlerFunc(tc.handler))

			counts, err := c.FetchTraffic(context.Background(), testRepo, domain.MetricViews)
			require.Error(t, err)
			assert.Nil(t, counts)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
			assert.True(t, apperrors.IsFetchFailure(err))
			assert.Contains(t, err.Error(), "octo/hello")
		})
	}
}

func TestGitHubCollector_FetchTrafficUnknownMetric(t *testing.T) {
	c := setupTestCollector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))

	_, err := c.FetchTraffic(context.Background(), testRepo, domain.Metric("stars"))
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))
}

func TestGitHubCollector_FetchPopularity(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected *Popularity
		code     apperrors.ErrCode
	}{
		{
			name:     "happy path",
			status:   http.StatusOK,
			body:     `{"data":{"repository":{"stargazerCount":42,"forkCount":7,"watchers":{"totalCount":3}}}}`,
			expected: &Popularity{Stars: 42, Forks: 7, Watchers: 3},
		},
		{
			name:   "unknown repository",
			status: http.StatusOK,
			body:   `{"data":{"repository":null},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a Repository with the name 'octo/hello'."}]}`,
			code:   apperrors.ErrCodeNotFound,
		},
		{
			name:   "bad token",
			status: http.StatusUnauthorized,
			body:   `{"message":"Bad credentials"}`,
			code:   apperrors.ErrCodeUnauthorized,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"message":"boom"}`,
			code:   apperrors.ErrCodeTransientFetch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := setupTestCollector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/graphql", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))

			pop, err := c.FetchPopularity(context.Background(), testRepo)
			if tc.expected != nil {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, pop)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
		})
	}
}

func TestEnterpriseGraphQLURL(t *testing.T) {
	for base, want := range map[string]string{
		"https://ghe.example.com/api/v3/": "https://ghe.example.com/api/graphql",
		"https://ghe.example.com/api/v3":  "https://ghe.example.com/api/graphql",
		"https://ghe.example.com/":        "https://ghe.example.com/api/graphql",
	} {
		got, err := enterpriseGraphQLURL(base)
		require.NoError(t, err)
		assert.Equal(t, want, got, base)
	}
}

func TestNewGitHubCollector(t *testing.T) {
	c, err := NewGitHubCollector("token", Options{BaseURL: "https://ghe.example.com/api/v3/"})
	require.NoError(t, err)

	gc, ok := c.(*githubCollector)
	require.True(t, ok)
	assert.Equal(t, "https://ghe.example.com/api/v3/", gc.client.BaseURL.String())
}
