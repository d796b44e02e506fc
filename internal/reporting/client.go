package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"custom-alerts-service/internal/config"
	"custom-alerts-service/internal/models"
)

// Client talks to the analytics service that owns report data, user accounts
// and report metadata. It implements alerts.ReportSource,
// notifier.UserDirectory and notifier.ReportMetadata.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL: cfg.Reporting.BaseURL,
		token:   cfg.Reporting.Token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// MetricValue fetches a metric for a site/period, scoped to a report row when
// report is non-empty. ok=false means the analytics service has no data for
// that scope.
func (c *Client) MetricValue(ctx context.Context, siteID int64, period models.Period, report, metric string) (float64, bool, error) {
	params := periodParams(siteID, period)
	params.Set("metric", metric)
	if report != "" {
		params.Set("report", report)
	}

	var resp struct {
		Value float64 `json:"value"`
	}
	found, err := c.get(ctx, "/metric", params, &resp)
	if err != nil {
		return 0, false, err
	}
	return resp.Value, found, nil
}

// DimensionValue fetches the dimension label of a report row for a
// site/period.
func (c *Client) DimensionValue(ctx context.Context, siteID int64, period models.Period, report string) (string, bool, error) {
	params := periodParams(siteID, period)
	params.Set("report", report)

	var resp struct {
		Label string `json:"label"`
	}
	found, err := c.get(ctx, "/dimension", params, &resp)
	if err != nil {
		return "", false, err
	}
	return resp.Label, found, nil
}

// Email resolves a login to its account email address.
func (c *Client) Email(ctx context.Context, login string) (string, bool, error) {
	params := url.Values{}
	params.Set("login", login)

	var resp struct {
		Email string `json:"email"`
	}
	found, err := c.get(ctx, "/user-email", params, &resp)
	if err != nil {
		return "", false, err
	}
	return resp.Email, found && resp.Email != "", nil
}

// DisplayName returns the human-readable name of a report.
func (c *Client) DisplayName(ctx context.Context, report string) (string, error) {
	params := url.Values{}
	params.Set("report", report)

	var resp struct {
		Name string `json:"name"`
	}
	found, err := c.get(ctx, "/report-name", params, &resp)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return resp.Name, nil
}

// MetricLabel returns the display label of a metric within a report.
func (c *Client) MetricLabel(ctx context.Context, report, metric string) (string, error) {
	params := url.Values{}
	params.Set("metric", metric)
	if report != "" {
		params.Set("report", report)
	}

	var resp struct {
		Label string `json:"label"`
	}
	found, err := c.get(ctx, "/metric-label", params, &resp)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return resp.Label, nil
}

// get performs an authenticated GET. A 404 means "absent", which is a normal
// outcome for report lookups, so it is reported via the bool rather than an
// error.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("reporting API returned %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return true, nil
}

func periodParams(siteID int64, period models.Period) url.Values {
	params := url.Values{}
	params.Set("site_id", strconv.FormatInt(siteID, 10))
	params.Set("period", string(period.Granularity))
	params.Set("date", period.Start.Format("2006-01-02"))
	return params
}
