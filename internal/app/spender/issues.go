package spender

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/notify"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store"
)

// CreateIssue opens a new issue on the server and caches the created record.
func (a *App) CreateIssue(ctx context.Context, fields redmine.IssueFields) (*redmine.Issue, error) {
	issue, err := a.client.CreateIssue(ctx, fields)
	if err != nil {
		a.notifier.Publish(notify.Error(fmt.Sprintf("create issue: %v", err)))
		return nil, fmt.Errorf("app: create issue: %w", err)
	}

	if err := a.issues.Put(ctx, *issue); err != nil {
		a.log.Warn("failed to cache created issue", "id", issue.ID, "error", err)
	}
	a.log.Info("issue created", "id", issue.ID, "subject", issue.Subject)
	return issue, nil
}

// UpdateIssue applies a partial update remotely, then patches the cached
// record with the same fields. As with entries, the cached updated_on is left
// alone until the next refresh delivers the server's value.
func (a *App) UpdateIssue(ctx context.Context, id int, fields redmine.IssueFields) error {
	if err := a.client.UpdateIssue(ctx, id, fields); err != nil {
		a.notifier.Publish(notify.Error(fmt.Sprintf("update issue #%d: %v", id, err)))
		return fmt.Errorf("app: update issue %d: %w", id, err)
	}

	changes := a.issueChanges(ctx, fields)
	if err := a.issues.Patch(ctx, int64(id), changes); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.log.Warn("failed to patch cached issue", "id", id, "error", err)
	}
	a.log.Info("issue updated", "id", id)
	return nil
}

func (a *App) issueChanges(ctx context.Context, fields redmine.IssueFields) map[string]any {
	changes := map[string]any{}
	if fields.ProjectID != nil {
		named := redmine.Named{ID: *fields.ProjectID}
		if project, err := a.projects.Get(ctx, int64(*fields.ProjectID)); err == nil {
			named.Name = project.Name
		}
		changes["project"] = named
	}
	if fields.Subject != nil {
		changes["subject"] = *fields.Subject
	}
	if fields.Description != nil {
		changes["description"] = *fields.Description
	}
	if fields.StatusID != nil {
		named := redmine.Named{ID: *fields.StatusID}
		if status, err := a.statuses.Get(ctx, int64(*fields.StatusID)); err == nil {
			named.Name = status.Name
		}
		changes["status"] = named
	}
	if fields.PriorityID != nil {
		named := redmine.Named{ID: *fields.PriorityID}
		if priority, err := a.priorities.Get(ctx, int64(*fields.PriorityID)); err == nil {
			named.Name = priority.Name
		}
		changes["priority"] = named
	}
	if fields.CategoryID != nil {
		changes["category"] = redmine.Named{ID: *fields.CategoryID}
	}
	if fields.TrackerID != nil {
		changes["tracker"] = redmine.Named{ID: *fields.TrackerID}
	}
	if fields.DueDate != nil {
		changes["due_date"] = fields.DueDate.String()
	}
	return changes
}
