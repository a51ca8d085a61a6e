package spender

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/notify"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store"
)

// Time entry mutations are remote first: the server accepts the change before
// anything touches the cache, so a rejected mutation leaves local state
// exactly as it was.

// EntriesForDay lists cached entries spent on one day.
func (a *App) EntriesForDay(ctx context.Context, day redmine.Date) ([]redmine.TimeEntry, error) {
	return a.entries.List(ctx,
		store.WhereEq("spent_on", day.String()),
		store.OrderBy("id", false))
}

// EntriesSince lists cached entries from a day onward, newest day first.
func (a *App) EntriesSince(ctx context.Context, from redmine.Date) ([]redmine.TimeEntry, error) {
	return a.entries.List(ctx,
		store.WhereAtLeast("spent_on", from.String()),
		store.OrderBy("spent_on", true))
}

// LogTime creates a time entry on the server and caches the record the server
// assigned.
func (a *App) LogTime(ctx context.Context, fields redmine.TimeEntryFields) (*redmine.TimeEntry, error) {
	entry, err := a.client.CreateTimeEntry(ctx, fields)
	if err != nil {
		a.notifier.Publish(notify.Error(fmt.Sprintf("log time: %v", err)))
		return nil, fmt.Errorf("app: log time: %w", err)
	}

	if err := a.entries.Put(ctx, *entry); err != nil {
		// Remote accepted the entry; the cache catches up on the next refresh.
		a.log.Warn("failed to cache created entry", "id", entry.ID, "error", err)
	}
	a.log.Info("time entry created", "id", entry.ID, "hours", entry.Hours, "spent_on", entry.SpentOn.String())
	return entry, nil
}

// UpdateEntry applies a partial update remotely, then patches the cached
// record. The local updated_on is intentionally left as stored; the server's
// new timestamp arrives with the next refresh and the stale local value keeps
// the entry inside the sync skip-check until then.
func (a *App) UpdateEntry(ctx context.Context, id int, fields redmine.TimeEntryFields) error {
	if err := a.client.UpdateTimeEntry(ctx, id, fields); err != nil {
		a.notifier.Publish(notify.Error(fmt.Sprintf("update entry #%d: %v", id, err)))
		return fmt.Errorf("app: update entry %d: %w", id, err)
	}

	changes := a.entryChanges(ctx, fields)
	if err := a.entries.Patch(ctx, int64(id), changes); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.log.Warn("failed to patch cached entry", "id", id, "error", err)
	}
	a.log.Info("time entry updated", "id", id)
	return nil
}

// RemoveEntry deletes a time entry remotely, then drops it from the cache.
func (a *App) RemoveEntry(ctx context.Context, id int) error {
	if err := a.client.DeleteTimeEntry(ctx, id); err != nil {
		a.notifier.Publish(notify.Error(fmt.Sprintf("remove entry #%d: %v", id, err)))
		return fmt.Errorf("app: remove entry %d: %w", id, err)
	}
	if err := a.entries.Delete(ctx, int64(id)); err != nil {
		a.log.Warn("failed to drop cached entry", "id", id, "error", err)
	}
	a.log.Info("time entry removed", "id", id)
	return nil
}

// entryChanges translates mutation fields into a cache patch, resolving id
// references into the named refs the cached records carry.
func (a *App) entryChanges(ctx context.Context, fields redmine.TimeEntryFields) map[string]any {
	changes := map[string]any{}
	if fields.ProjectID != nil {
		named := redmine.Named{ID: *fields.ProjectID}
		if project, err := a.projects.Get(ctx, int64(*fields.ProjectID)); err == nil {
			named.Name = project.Name
		}
		changes["project"] = named
	}
	if fields.IssueID != nil {
		changes["issue"] = redmine.IssueRef{ID: *fields.IssueID}
	}
	if fields.ActivityID != nil {
		named := redmine.Named{ID: *fields.ActivityID}
		if activity, err := a.activities.Get(ctx, int64(*fields.ActivityID)); err == nil {
			named.Name = activity.Name
		}
		changes["activity"] = named
	}
	if fields.Hours != nil {
		changes["hours"] = *fields.Hours
	}
	if fields.Comments != nil {
		changes["comments"] = *fields.Comments
	}
	if fields.SpentOn != nil {
		changes["spent_on"] = fields.SpentOn.String()
	}
	return changes
}
