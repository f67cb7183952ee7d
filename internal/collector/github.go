package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v55/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
)

// Options configures the GitHub collector
type Options struct {
	// BaseURL points at a GitHub Enterprise REST API; empty means github.com
	BaseURL string
	// MinDelay spaces consecutive API calls
	MinDelay time.Duration
	Logger   *slog.Logger
}

// githubCollector implements Collector using GitHub API
type githubCollector struct {
	client      *github.Client
	graphql     *githubv4.Client
	rateLimiter RateLimiter
	logger      *slog.Logger
}

// NewGitHubCollector creates a new GitHub collector
func NewGitHubCollector(token string, opts Options) (Collector, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
		Timeout: 30 * time.Second,
	}

	client := github.NewClient(httpClient)
	graphql := githubv4.NewClient(httpClient)
	if opts.BaseURL != "" {
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		graphqlURL, err := enterpriseGraphQLURL(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		graphql = githubv4.NewEnterpriseClient(graphqlURL, httpClient)
	}

	return &githubCollector{
		client:      client,
		graphql:     graphql,
		rateLimiter: NewRateLimiter(opts.MinDelay, logger),
		logger:      logger,
	}, nil
}

// enterpriseGraphQLURL maps https://host/api/v3/ to https://host/api/graphql
func enterpriseGraphQLURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	p := strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/v3")
	p = strings.TrimSuffix(p, "/api")
	u.Path = p + "/api/graphql"
	return u.String(), nil
}

// FetchTraffic retrieves the daily views or clones of the trailing window
func (c *githubCollector) FetchTraffic(ctx context.Context, repo domain.Repository, metric domain.Metric) ([]domain.DailyCount, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.TrafficBreakdownOptions{Per: "day"}
	var (
		data []*github.TrafficData
		resp *github.Response
		err  error
	)
	switch metric {
	case domain.MetricViews:
		var views *github.TrafficViews
		views, resp, err = c.client.Repositories.ListTrafficViews(ctx, repo.Owner, repo.Name, opts)
		if views != nil {
			data = views.Views
		}
	case domain.MetricClones:
		var clones *github.TrafficClones
		clones, resp, err = c.client.Repositories.ListTrafficClones(ctx, repo.Owner, repo.Name, opts)
		if clones != nil {
			data = clones.Clones
		}
	default:
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("unsupported metric %q", metric))
	}

	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, classifyRESTError(fmt.Sprintf("failed to list %s traffic for %s", metric, repo), err)
	}

	return toDailyCounts(data), nil
}

// toDailyCounts converts GitHub's per-day buckets, keyed by UTC midnight timestamps.
// GitHub never repeats a day; if it did, the larger bucket is kept so dates stay unique.
func toDailyCounts(data []*github.TrafficData) []domain.DailyCount {
	byDate := make(map[string]domain.DailyCount, len(data))
	for _, d := range data {
		ts := d.GetTimestamp()
		if ts.Time.IsZero() {
			continue
		}
		dc := domain.DailyCount{
			Date:        domain.DateOf(ts.Time),
			Count:       d.GetCount(),
			UniqueCount: d.GetUniques(),
		}
		if cur, ok := byDate[dc.Date]; ok && (cur.Count > dc.Count || (cur.Count == dc.Count && cur.UniqueCount >= dc.UniqueCount)) {
			continue
		}
		byDate[dc.Date] = dc
	}

	counts := make([]domain.DailyCount, 0, len(byDate))
	for _, dc := range byDate {
		counts = append(counts, dc)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Date < counts[j].Date })
	return counts
}

// popularityQuery reads the counters shown on a repository page
type popularityQuery struct {
	Repository struct {
		StargazerCount githubv4.Int
		ForkCount      githubv4.Int
		Watchers       struct {
			TotalCount githubv4.Int
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FetchPopularity retrieves stars, forks and watchers using the GraphQL API
func (c *githubCollector) FetchPopularity(ctx context.Context, repo domain.Repository) (*Popularity, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var q popularityQuery
	variables := map[string]interface{}{
		"owner": githubv4.String(repo.Owner),
		"name":  githubv4.String(repo.Name),
	}
	if err := c.graphql.Query(ctx, &q, variables); err != nil {
		return nil, classifyGraphQLError(fmt.Sprintf("failed to query popularity for %s", repo), err)
	}

	return &Popularity{
		Stars:    int(q.Repository.StargazerCount),
		Forks:    int(q.Repository.ForkCount),
		Watchers: int(q.Repository.Watchers.TotalCount),
	}, nil
}

// classifyRESTError maps go-github errors onto the application error codes
func classifyRESTError(message string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return apperrors.NewRateLimitedError(message, err)
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			// traffic endpoints answer 403 without push access
			return apperrors.NewUnauthorizedError(message, err)
		case http.StatusNotFound:
			return &apperrors.AppError{Code: apperrors.ErrCodeNotFound, Message: message, Err: err}
		}
	}
	return apperrors.NewTransientFetchError(message, err)
}

// classifyGraphQLError maps githubv4 errors, which only carry text, onto the application error codes
func classifyGraphQLError(message string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	text := err.Error()
	switch {
	case strings.Contains(text, "401 Unauthorized"), strings.Contains(text, "Bad credentials"):
		return apperrors.NewUnauthorizedError(message, err)
	case strings.Contains(text, "Could not resolve to a Repository"):
		return &apperrors.AppError{Code: apperrors.ErrCodeNotFound, Message: message, Err: err}
	case strings.Contains(strings.ToLower(text), "rate limit"):
		return apperrors.NewRateLimitedError(message, err)
	}
	return apperrors.NewTransientFetchError(message, err)
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (c *githubCollector) updateRateLimitFromResponse(resp *github.Response) {
	if resp != nil && resp.Rate.Limit > 0 && resp.Rate.Remaining >= 0 {
		c.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}
