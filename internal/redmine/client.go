// Package redmine is the JSON-over-HTTP client for the remote tracker. It
// knows the envelope conventions (paginated lists, singular mutation bodies,
// structured 422 errors) and nothing about local storage.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slog"
)

// PageSize is the fixed page size used for every list request.
const PageSize = 100

// ProgressFunc observes pagination: count is the records accumulated so far,
// total the server-reported total_count (-1 while still unknown).
type ProgressFunc func(count, total int)

type Client struct {
	http      *http.Client
	log       *slog.Logger
	baseURL   string
	apiKey    string
	userAgent string
}

func NewClient(baseURL, apiKey string, log *slog.Logger) *Client {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &Client{
		http:      client,
		log:       log.With("component", "redmine_client"),
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: "RedmineTimeSpender/1.0",
	}
}

// MyAccount fetches the authenticated user, doubling as a connectivity and
// API key check.
func (c *Client) MyAccount(ctx context.Context) (*Account, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/my/account.json", nil, nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		User Account `json:"user"`
	}
	if err := c.parseResponse(resp, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

// FetchTimeEntries lists the current user's entries with spent_on >= from.
func (c *Client) FetchTimeEntries(ctx context.Context, from Date, progress ProgressFunc) ([]TimeEntry, error) {
	q := url.Values{}
	q.Set("user_id", "me")
	q.Set("from", from.String())
	return fetchAll[TimeEntry](ctx, c, "/time_entries.json", "time_entries", q, progress)
}

func (c *Client) FetchProjects(ctx context.Context, progress ProgressFunc) ([]Project, error) {
	q := url.Values{}
	q.Set("include", "trackers,issue_categories")
	return fetchAll[Project](ctx, c, "/projects.json", "projects", q, progress)
}

// FetchIssues lists issues in any status, optionally only those updated
// after the given instant (server-side filter).
func (c *Client) FetchIssues(ctx context.Context, updatedAfter *time.Time, progress ProgressFunc) ([]Issue, error) {
	q := url.Values{}
	q.Set("status_id", "*")
	if updatedAfter != nil {
		q.Set("updated_on", ">="+updatedAfter.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return fetchAll[Issue](ctx, c, "/issues.json", "issues", q, progress)
}

func (c *Client) FetchActivities(ctx context.Context, progress ProgressFunc) ([]Activity, error) {
	return fetchAll[Activity](ctx, c, "/enumerations/time_entry_activities.json", "time_entry_activities", nil, progress)
}

func (c *Client) FetchPriorities(ctx context.Context, progress ProgressFunc) ([]Priority, error) {
	return fetchAll[Priority](ctx, c, "/enumerations/issue_priorities.json", "issue_priorities", nil, progress)
}

func (c *Client) FetchStatuses(ctx context.Context, progress ProgressFunc) ([]Status, error) {
	return fetchAll[Status](ctx, c, "/issue_statuses.json", "issue_statuses", nil, progress)
}

// CreateTimeEntry posts a new entry and returns the server-assigned record.
func (c *Client) CreateTimeEntry(ctx context.Context, fields TimeEntryFields) (*TimeEntry, error) {
	body := map[string]TimeEntryFields{"time_entry": fields}
	resp, err := c.doRequest(ctx, http.MethodPost, "/time_entries.json", nil, body)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		TimeEntry TimeEntry `json:"time_entry"`
	}
	if err := c.parseResponse(resp, &envelope); err != nil {
		return nil, err
	}
	return &envelope.TimeEntry, nil
}

// UpdateTimeEntry applies a partial update; the server responds with an
// empty success status.
func (c *Client) UpdateTimeEntry(ctx context.Context, id int, fields TimeEntryFields) error {
	body := map[string]TimeEntryFields{"time_entry": fields}
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/time_entries/%d.json", id), nil, body)
	if err != nil {
		return err
	}
	return c.parseResponse(resp, nil)
}

func (c *Client) DeleteTimeEntry(ctx context.Context, id int) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/time_entries/%d.json", id), nil, nil)
	if err != nil {
		return err
	}
	return c.parseResponse(resp, nil)
}

func (c *Client) CreateIssue(ctx context.Context, fields IssueFields) (*Issue, error) {
	body := map[string]IssueFields{"issue": fields}
	resp, err := c.doRequest(ctx, http.MethodPost, "/issues.json", nil, body)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Issue Issue `json:"issue"`
	}
	if err := c.parseResponse(resp, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Issue, nil
}

func (c *Client) UpdateIssue(ctx context.Context, id int, fields IssueFields) error {
	body := map[string]IssueFields{"issue": fields}
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/issues/%d.json", id), nil, body)
	if err != nil {
		return err
	}
	return c.parseResponse(resp, nil)
}

// fetchAll walks a paginated list endpoint in PageSize steps until the
// server-reported total_count is covered. An endpoint without total_count
// (the enumerations) is treated as a single complete page. The first
// progress signal is indeterminate so callers can show activity before the
// first page lands.
func fetchAll[T any](ctx context.Context, c *Client, path, key string, query url.Values, progress ProgressFunc) ([]T, error) {
	if progress != nil {
		progress(0, -1)
	}

	var all []T
	offset := 0
	for {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("limit", strconv.Itoa(PageSize))
		q.Set("offset", strconv.Itoa(offset))

		resp, err := c.doRequest(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return nil, err
		}
		var raw map[string]json.RawMessage
		if err := c.parseResponse(resp, &raw); err != nil {
			return nil, err
		}

		var items []T
		if rawItems, ok := raw[key]; ok {
			if err := json.Unmarshal(rawItems, &items); err != nil {
				return nil, fmt.Errorf("redmine: decode %s page: %w", key, err)
			}
		}
		all = append(all, items...)

		total := len(all)
		hasTotal := false
		if rawTotal, ok := raw["total_count"]; ok {
			if err := json.Unmarshal(rawTotal, &total); err == nil {
				hasTotal = true
			}
		}
		if progress != nil {
			progress(len(all), total)
		}

		if !hasTotal || len(all) >= total || len(items) == 0 {
			return all, nil
		}
		offset += len(items)
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("redmine: marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("redmine: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Redmine-API-Key", c.apiKey)

	c.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redmine: request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("redmine: read response: %w", err)
	}

	c.log.Debug("received response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var errResp struct {
			Errors []string `json:"errors"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Errors) > 0 {
			return &ValidationError{Messages: errResp.Errors}
		}
	}
	if resp.StatusCode >= 400 {
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("redmine: parse response: %w", err)
		}
	}
	return nil
}
