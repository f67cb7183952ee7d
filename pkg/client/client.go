package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
	"github.com/kurihiro0119/github-traffic-history/internal/reconciler"
)

// Client is the API client for github-traffic-history
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListSeries retrieves the keys of every processed series
func (c *Client) ListSeries() ([]domain.SeriesKey, error) {
	var response struct {
		Data []domain.SeriesKey `json:"data"`
	}
	if err := c.get("/api/v1/series", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetSeries retrieves one canonical series restricted to the inclusive date range
func (c *Client) GetSeries(repo domain.Repository, metric domain.Metric, r domain.DateRange) (*domain.Series, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/series/%s", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), metric)

	var response struct {
		Data *domain.Series `json:"data"`
	}
	if err := c.get(path, buildRangeParams(r), &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetSummary retrieves summary statistics of one canonical series
func (c *Client) GetSummary(repo domain.Repository, metric domain.Metric, r domain.DateRange) (*reconciler.Summary, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/summary/%s", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), metric)

	var response struct {
		Data *reconciler.Summary `json:"data"`
	}
	if err := c.get(path, buildRangeParams(r), &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetPopularity retrieves the popularity samples of a repository
func (c *Client) GetPopularity(repo domain.Repository) (*domain.PopularitySeries, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/popularity", url.PathEscape(repo.Owner), url.PathEscape(repo.Name))

	var response struct {
		Data *domain.PopularitySeries `json:"data"`
	}
	if err := c.get(path, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func buildRangeParams(r domain.DateRange) url.Values {
	params := url.Values{}
	if r.Start != "" {
		params.Set("start", r.Start)
	}
	if r.End != "" {
		params.Set("end", r.End)
	}
	return params
}

// errorResponse is the body the API sends with a non-200 status
type errorResponse struct {
	Error struct {
		Code    apperrors.ErrCode `json:"code"`
		Message string            `json:"message"`
	} `json:"error"`
}

func (c *Client) get(path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code != "" {
			return &apperrors.AppError{Code: apiErr.Error.Code, Message: apiErr.Error.Message}
		}
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
