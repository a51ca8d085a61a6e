package spender

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// Task is a local-only to-do note. Tasks never leave the cache; the tracker
// knows nothing about them.
type Task struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	Color     string     `json:"color,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// Done reports whether the task has been closed.
func (t Task) Done() bool {
	return t.ClosedAt != nil
}

// AddTask stores a new open task and returns it with its assigned id.
func (a *App) AddTask(ctx context.Context, text, color string) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("app: task text is empty")
	}

	task := Task{Text: text, Color: color, CreatedAt: timeNow().UTC()}
	id, err := a.tasks.Insert(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("app: add task: %w", err)
	}
	task.ID = id
	a.log.Debug("task added", "id", id)
	return &task, nil
}

// EditTask rewrites a task's text and color.
func (a *App) EditTask(ctx context.Context, id int64, text, color string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("app: task text is empty")
	}
	changes := map[string]any{"text": text, "color": color, "updated_at": timeNow().UTC()}
	if err := a.tasks.Patch(ctx, id, changes); err != nil {
		return fmt.Errorf("app: edit task %d: %w", id, err)
	}
	return nil
}

// CloseTask marks a task done. Closing an already closed task refreshes its
// closed_at timestamp.
func (a *App) CloseTask(ctx context.Context, id int64) error {
	if err := a.tasks.Patch(ctx, id, map[string]any{"closed_at": timeNow().UTC()}); err != nil {
		return fmt.Errorf("app: close task %d: %w", id, err)
	}
	return nil
}

// ReopenTask clears a task's closed_at marker.
func (a *App) ReopenTask(ctx context.Context, id int64) error {
	if err := a.tasks.Patch(ctx, id, map[string]any{"closed_at": nil}); err != nil {
		return fmt.Errorf("app: reopen task %d: %w", id, err)
	}
	return nil
}

// DeleteTask removes a task entirely.
func (a *App) DeleteTask(ctx context.Context, id int64) error {
	if err := a.tasks.Delete(ctx, id); err != nil {
		return fmt.Errorf("app: delete task %d: %w", id, err)
	}
	return nil
}

// Tasks lists tasks oldest first. With openOnly, closed tasks are filtered
// out.
func (a *App) Tasks(ctx context.Context, openOnly bool) ([]Task, error) {
	opts := []store.Option{store.OrderBy("created_at", false)}
	if openOnly {
		opts = append(opts, store.WhereNull("closed_at"))
	}
	return a.tasks.List(ctx, opts...)
}
