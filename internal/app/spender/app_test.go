package spender

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/cipher"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/config"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/mockmine"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/notify"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store"
)

const testAPIKey = "test-key"

func ptr[T any](v T) *T { return &v }

func newTestApp(t *testing.T, data *mockmine.Data) *App {
	t.Helper()

	srv := httptest.NewServer(mockmine.NewRouter(data))
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ciph, err := cipher.NewAESGCM(bytes.Repeat([]byte{3}, cipher.KeySize))
	require.NoError(t, err)
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"), ciph, log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		RedmineURL:   srv.URL,
		APIKey:       testAPIKey,
		NumberOfDays: 31,
	}
	return New(cfg, log, notify.New(), st, redmine.NewClient(srv.URL, testAPIKey, log))
}

func emptyData() *mockmine.Data {
	return &mockmine.Data{
		APIKey:  testAPIKey,
		Account: redmine.Account{ID: 1, Login: "dev"},
		Projects: []redmine.Project{
			{ID: 1, Name: "Backend", Identifier: "backend", UpdatedOn: time.Now().UTC()},
		},
		Activities: []redmine.Activity{{ID: 8, Name: "Development", Active: true}},
	}
}

func TestLogTimeCachesServerRecord(t *testing.T) {
	app := newTestApp(t, emptyData())
	ctx := context.Background()

	entry, err := app.LogTime(ctx, redmine.TimeEntryFields{
		ProjectID:  ptr(1),
		ActivityID: ptr(8),
		Hours:      ptr(2.5),
		Comments:   ptr("review"),
		SpentOn:    ptr(redmine.Today()),
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)

	cached, err := app.EntriesForDay(ctx, redmine.Today())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, entry.ID, cached[0].ID)
	assert.Equal(t, 2.5, cached[0].Hours)
	assert.Equal(t, "review", cached[0].Comments)
}

func TestLogTimeRejectionLeavesCacheUntouched(t *testing.T) {
	app := newTestApp(t, emptyData())
	ctx := context.Background()

	var errEvents []notify.Event
	app.Notifier().Subscribe(notify.KindError, func(ev notify.Event) {
		errEvents = append(errEvents, ev)
	})

	_, err := app.LogTime(ctx, redmine.TimeEntryFields{
		ProjectID:  ptr(1),
		ActivityID: ptr(8),
		Hours:      ptr(-1.0),
		SpentOn:    ptr(redmine.Today()),
	})
	require.Error(t, err)

	var validation *redmine.ValidationError
	assert.ErrorAs(t, err, &validation)

	cached, err := app.EntriesForDay(ctx, redmine.Today())
	require.NoError(t, err)
	assert.Empty(t, cached)
	assert.NotEmpty(t, errEvents, "rejection must surface as an error event")
}

func TestUpdateEntryPreservesCachedTimestamp(t *testing.T) {
	app := newTestApp(t, emptyData())
	ctx := context.Background()

	entry, err := app.LogTime(ctx, redmine.TimeEntryFields{
		ProjectID:  ptr(1),
		ActivityID: ptr(8),
		Hours:      ptr(1.0),
		SpentOn:    ptr(redmine.Today()),
	})
	require.NoError(t, err)
	storedUpdatedOn := entry.UpdatedOn

	require.NoError(t, app.UpdateEntry(ctx, entry.ID, redmine.TimeEntryFields{
		Hours:    ptr(3.0),
		Comments: ptr("longer than expected"),
	}))

	cached, err := app.EntriesForDay(ctx, redmine.Today())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, 3.0, cached[0].Hours)
	assert.Equal(t, "longer than expected", cached[0].Comments)
	assert.Equal(t, entry.Project, cached[0].Project, "untouched fields survive the patch")
	assert.True(t, cached[0].UpdatedOn.Equal(storedUpdatedOn),
		"cached updated_on changes only through refresh")
}

func TestRemoveEntry(t *testing.T) {
	app := newTestApp(t, emptyData())
	ctx := context.Background()

	entry, err := app.LogTime(ctx, redmine.TimeEntryFields{
		ProjectID:  ptr(1),
		ActivityID: ptr(8),
		Hours:      ptr(1.0),
		SpentOn:    ptr(redmine.Today()),
	})
	require.NoError(t, err)

	require.NoError(t, app.RemoveEntry(ctx, entry.ID))

	cached, err := app.EntriesForDay(ctx, redmine.Today())
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestCreateAndUpdateIssue(t *testing.T) {
	app := newTestApp(t, emptyData())
	ctx := context.Background()

	issue, err := app.CreateIssue(ctx, redmine.IssueFields{
		ProjectID: ptr(1),
		Subject:   ptr("Broken export"),
	})
	require.NoError(t, err)
	require.NotZero(t, issue.ID)

	require.NoError(t, app.UpdateIssue(ctx, issue.ID, redmine.IssueFields{
		Subject: ptr("Broken CSV export"),
	}))

	issues, err := app.Issues(ctx, false, 0)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Broken CSV export", issues[0].Subject)
}

func TestTaskLifecycle(t *testing.T) {
	app := newTestApp(t, emptyData())
	ctx := context.Background()

	first, err := app.AddTask(ctx, "write weekly report", "green")
	require.NoError(t, err)
	second, err := app.AddTask(ctx, "ping ops about staging", "")
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	_, err = app.AddTask(ctx, "   ", "red")
	assert.Error(t, err, "blank task text is rejected")

	require.NoError(t, app.CloseTask(ctx, first.ID))

	open, err := app.Tasks(ctx, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	all, err := app.Tasks(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Done())
	assert.False(t, all[1].Done())

	require.NoError(t, app.ReopenTask(ctx, first.ID))
	open, err = app.Tasks(ctx, true)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	require.NoError(t, app.EditTask(ctx, second.ID, "ping ops about prod", "red"))
	all, err = app.Tasks(ctx, false)
	require.NoError(t, err)
	for _, task := range all {
		if task.ID == second.ID {
			assert.Equal(t, "ping ops about prod", task.Text)
			assert.Equal(t, "red", task.Color)
			assert.False(t, task.CreatedAt.IsZero(), "created_at survives edits")
		}
	}

	require.NoError(t, app.DeleteTask(ctx, first.ID))
	all, err = app.Tasks(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWipe(t *testing.T) {
	app := newTestApp(t, emptyData())
	ctx := context.Background()

	_, err := app.AddTask(ctx, "soon gone", "")
	require.NoError(t, err)
	result, err := app.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, result.Ok())

	require.NoError(t, app.Wipe(ctx))

	tasks, err := app.Tasks(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	projects, err := app.Projects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}
