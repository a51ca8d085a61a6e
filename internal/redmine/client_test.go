package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchTimeEntriesPaginates(t *testing.T) {
	const total = 250
	var requests []struct{ offset, limit int }

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/time_entries.json", req.URL.Path)
		require.Equal(t, "secret", req.Header.Get("X-Redmine-API-Key"))
		require.Equal(t, "me", req.URL.Query().Get("user_id"))
		require.Equal(t, "2026-08-01", req.URL.Query().Get("from"))

		offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		requests = append(requests, struct{ offset, limit int }{offset, limit})

		var items []TimeEntry
		for i := offset; i < offset+limit && i < total; i++ {
			items = append(items, TimeEntry{ID: i + 1, Hours: 1})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"time_entries": items,
			"total_count":  total,
			"offset":       offset,
			"limit":        limit,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", testLogger())

	var progress []struct{ count, total int }
	from, err := ParseDate("2026-08-01")
	require.NoError(t, err)
	entries, err := client.FetchTimeEntries(context.Background(), from, func(count, total int) {
		progress = append(progress, struct{ count, total int }{count, total})
	})
	require.NoError(t, err)
	assert.Len(t, entries, total)

	require.Len(t, requests, 3)
	assert.Equal(t, 0, requests[0].offset)
	assert.Equal(t, 100, requests[1].offset)
	assert.Equal(t, 200, requests[2].offset)
	for _, r := range requests {
		assert.Equal(t, PageSize, r.limit)
	}

	require.NotEmpty(t, progress)
	assert.Equal(t, -1, progress[0].total, "first signal is indeterminate")
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].count, progress[i-1].count)
		assert.Equal(t, total, progress[i].total)
	}
	assert.Equal(t, total, progress[len(progress)-1].count)
}

func TestFetchActivitiesWithoutTotalCount(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		// The enumeration endpoints return everything at once, no total_count.
		json.NewEncoder(w).Encode(map[string]any{
			"time_entry_activities": []Activity{
				{ID: 8, Name: "Development", Active: true},
				{ID: 9, Name: "Meeting", Active: true},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", testLogger())
	activities, err := client.FetchActivities(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, activities, 2)
	assert.Equal(t, 1, calls, "a page without total_count is taken as complete")
}

func TestFetchIssuesSendsUpdatedOnFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "*", req.URL.Query().Get("status_id"))
		assert.Equal(t, ">=2026-08-20T10:00:00Z", req.URL.Query().Get("updated_on"))
		json.NewEncoder(w).Encode(map[string]any{"issues": []Issue{}, "total_count": 0})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", testLogger())
	after := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	_, err := client.FetchIssues(context.Background(), &after, nil)
	require.NoError(t, err)
}

func TestCreateTimeEntryEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, http.MethodPost, req.Method)
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)

		var envelope map[string]map[string]any
		require.NoError(t, json.Unmarshal(body, &envelope))
		fields, ok := envelope["time_entry"]
		require.True(t, ok, "mutation body must use the singular resource envelope")
		assert.Equal(t, float64(1), fields["project_id"])
		assert.Equal(t, 2.5, fields["hours"])
		assert.Equal(t, "2026-08-20", fields["spent_on"])
		_, hasIssue := fields["issue_id"]
		assert.False(t, hasIssue, "nil fields are omitted")

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"time_entry": TimeEntry{ID: 77, Hours: 2.5}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", testLogger())
	project, hours := 1, 2.5
	spentOn, err := ParseDate("2026-08-20")
	require.NoError(t, err)

	entry, err := client.CreateTimeEntry(context.Background(), TimeEntryFields{
		ProjectID: &project,
		Hours:     &hours,
		SpentOn:   &spentOn,
	})
	require.NoError(t, err)
	assert.Equal(t, 77, entry.ID)
}

func TestValidationErrorsAreJoined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []string{"Hours cannot be blank", "Activity cannot be blank"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", testLogger())
	_, err := client.CreateTimeEntry(context.Background(), TimeEntryFields{})
	require.Error(t, err)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Hours cannot be blank, Activity cannot be blank", validation.Error())
}

func TestHTTPErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "wrong", testLogger())
	_, err := client.MyAccount(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestUpdateAcceptsEmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, http.MethodPut, req.Method)
		require.Equal(t, "/time_entries/12.json", req.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", testLogger())
	hours := 4.0
	err := client.UpdateTimeEntry(context.Background(), 12, TimeEntryFields{Hours: &hours})
	assert.NoError(t, err)
}

func TestRequestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, "{}")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.MyAccount(ctx)
	assert.Error(t, err)
}
