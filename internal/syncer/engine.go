// Package syncer reconciles the local encrypted cache against the remote
// tracker. Each collection has its own tailored policy trading correctness
// for request volume; there is no generic merge.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/notify"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store"
)

// ErrRefreshInFlight is returned when Refresh is called while a previous
// refresh has not settled. The source design left this to the UI; the engine
// guards itself here.
var ErrRefreshInFlight = errors.New("syncer: refresh already in flight")

// MetaLastRefresh is the meta key holding the RFC3339 instant of the last
// fully successful refresh.
const MetaLastRefresh = "last_refresh"

// Resource names used in progress events and results.
const (
	ResourceEntries    = "entries"
	ResourceProjects   = "projects"
	ResourceIssues     = "issues"
	ResourceActivities = "activities"
	ResourcePriorities = "priorities"
	ResourceStatuses   = "statuses"
)

// Deps wires the engine to its collaborators; everything is injected, the
// engine holds no globals.
type Deps struct {
	Log          *slog.Logger
	Client       *redmine.Client
	Notifier     *notify.Notifier
	Store        *store.Store
	NumberOfDays int
}

type Engine struct {
	log      *slog.Logger
	client   *redmine.Client
	notifier *notify.Notifier
	st       *store.Store

	entries    *store.Collection[redmine.TimeEntry]
	projects   *store.Collection[redmine.Project]
	issues     *store.Collection[redmine.Issue]
	activities *store.Collection[redmine.Activity]
	priorities *store.Collection[redmine.Priority]
	statuses   *store.Collection[redmine.Status]

	numberOfDays int
	inFlight     atomic.Bool
}

func New(d Deps) *Engine {
	return &Engine{
		log:          d.Log.With("component", "syncer"),
		client:       d.Client,
		notifier:     d.Notifier,
		st:           d.Store,
		entries:      store.NewCollection[redmine.TimeEntry](d.Store, store.Entries),
		projects:     store.NewCollection[redmine.Project](d.Store, store.Projects),
		issues:       store.NewCollection[redmine.Issue](d.Store, store.Issues),
		activities:   store.NewCollection[redmine.Activity](d.Store, store.Activities),
		priorities:   store.NewCollection[redmine.Priority](d.Store, store.Priorities),
		statuses:     store.NewCollection[redmine.Status](d.Store, store.Statuses),
		numberOfDays: d.NumberOfDays,
	}
}

// Result reports, per resource, whether the local collection changed and the
// error that stopped its sub-sync, if any.
type Result struct {
	Changed map[string]bool
	Errors  map[string]error
}

// Ok reports whether every sub-sync settled without error.
func (r *Result) Ok() bool {
	return len(r.Errors) == 0
}

// Refresh runs every collection's sub-sync concurrently and waits for all of
// them to settle. A failure in one collection never cancels the others. The
// last-refresh timestamp is recorded only when the whole refresh succeeds.
func (e *Engine) Refresh(ctx context.Context) (*Result, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRefreshInFlight
	}
	defer e.inFlight.Store(false)

	jobs := []struct {
		resource string
		run      func(context.Context) (bool, error)
	}{
		{ResourceEntries, e.syncEntries},
		{ResourceProjects, e.syncProjects},
		{ResourceIssues, e.syncIssues},
		{ResourceActivities, e.syncActivities},
		{ResourcePriorities, e.syncPriorities},
		{ResourceStatuses, e.syncStatuses},
	}

	result := &Result{Changed: map[string]bool{}, Errors: map[string]error{}}
	var mu sync.Mutex
	var wg sync.WaitGroup

	started := time.Now()
	for _, job := range jobs {
		wg.Add(1)
		go func(resource string, run func(context.Context) (bool, error)) {
			defer wg.Done()
			changed, err := run(ctx)

			mu.Lock()
			defer mu.Unlock()
			result.Changed[resource] = changed
			if err != nil {
				result.Errors[resource] = err
				e.log.Error("sub-sync failed", "resource", resource, "error", err)
				e.notifier.Publish(notify.Error(fmt.Sprintf("%s sync failed: %v", resource, err)))
			}
		}(job.resource, job.run)
	}
	wg.Wait()

	e.log.Info("refresh settled",
		"duration", time.Since(started),
		"changed", result.Changed,
		"failed", len(result.Errors),
	)

	if result.Ok() {
		if err := e.st.SetMeta(ctx, MetaLastRefresh, time.Now().UTC().Format(time.RFC3339)); err != nil {
			e.log.Warn("failed to record last refresh", "error", err)
		}
	}
	return result, nil
}

// ShouldRefresh implements the auto-refresh gate: refresh is skipped when an
// interval is configured, the dictionary cache is warm and the last refresh
// falls in the same interval bucket ("hour" or "day") as now.
func (e *Engine) ShouldRefresh(ctx context.Context, interval string, now time.Time) (bool, error) {
	if interval == "" {
		return true, nil
	}
	count, err := e.activities.Count(ctx)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return true, nil
	}
	raw, ok, err := e.st.GetMeta(ctx, MetaLastRefresh)
	if err != nil || !ok {
		return true, err
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true, nil
	}

	switch interval {
	case "hour":
		return !last.Truncate(time.Hour).Equal(now.Truncate(time.Hour)), nil
	case "day":
		ly, lm, ld := last.Date()
		ny, nm, nd := now.Date()
		return !(ly == ny && lm == nm && ld == nd), nil
	default:
		return true, nil
	}
}

// windowFloor is the oldest spent_on day kept locally.
func (e *Engine) windowFloor() redmine.Date {
	return redmine.Today().AddDays(-e.numberOfDays)
}

// syncEntries runs the incremental window sync for time entries: purge rows
// that fell out of the retention window, then skip the write entirely when
// the fetched set matches the local count with no newer updated_on.
func (e *Engine) syncEntries(ctx context.Context) (bool, error) {
	floor := e.windowFloor()
	if _, err := e.entries.DeleteBelow(ctx, "spent_on", floor.String()); err != nil {
		return false, err
	}

	fetched, err := e.client.FetchTimeEntries(ctx, floor, e.progress(ResourceEntries))
	if err != nil {
		return false, err
	}

	localCount, err := e.entries.Count(ctx)
	if err != nil {
		return false, err
	}
	localMax, hasLocal, err := e.entries.MaxText(ctx, "updated_on")
	if err != nil {
		return false, err
	}

	if localCount == len(fetched) && !anyNewer(fetched, localMax, hasLocal) {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := e.entries.Reconcile(ctx, fetched); err != nil {
		return false, err
	}
	return true, nil
}

// syncProjects replaces the whole collection, but only when the count or the
// newest updated_on moved; project volume is small enough that incremental
// diffing is not worth it.
func (e *Engine) syncProjects(ctx context.Context) (bool, error) {
	fetched, err := e.client.FetchProjects(ctx, e.progress(ResourceProjects))
	if err != nil {
		return false, err
	}

	localCount, err := e.projects.Count(ctx)
	if err != nil {
		return false, err
	}
	localMax, hasLocal, err := e.projects.MaxText(ctx, "updated_on")
	if err != nil {
		return false, err
	}
	if localCount == len(fetched) && !anyNewerProjects(fetched, localMax, hasLocal) {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := e.projects.ReplaceAll(ctx, fetched); err != nil {
		return false, err
	}
	return true, nil
}

// syncIssues fetches only issues updated after the newest local updated_on
// and upserts them; local issues are never deleted individually.
func (e *Engine) syncIssues(ctx context.Context) (bool, error) {
	localMax, hasLocal, err := e.issues.MaxText(ctx, "updated_on")
	if err != nil {
		return false, err
	}

	var updatedAfter *time.Time
	if hasLocal {
		if t, err := time.Parse(time.RFC3339, localMax); err == nil {
			updatedAfter = &t
		}
	}

	fetched, err := e.client.FetchIssues(ctx, updatedAfter, e.progress(ResourceIssues))
	if err != nil {
		return false, err
	}
	if len(fetched) == 0 {
		return false, nil
	}

	newest := ""
	for _, issue := range fetched {
		if s := timestampText(issue.UpdatedOn); s > newest {
			newest = s
		}
	}
	if hasLocal && newest <= localMax {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := e.issues.BulkPut(ctx, fetched); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) syncActivities(ctx context.Context) (bool, error) {
	fetched, err := e.client.FetchActivities(ctx, e.progress(ResourceActivities))
	if err != nil {
		return false, err
	}
	return reconcileDictionary(ctx, e.activities, fetched)
}

func (e *Engine) syncPriorities(ctx context.Context) (bool, error) {
	fetched, err := e.client.FetchPriorities(ctx, e.progress(ResourcePriorities))
	if err != nil {
		return false, err
	}
	return reconcileDictionary(ctx, e.priorities, fetched)
}

func (e *Engine) syncStatuses(ctx context.Context) (bool, error) {
	fetched, err := e.client.FetchStatuses(ctx, e.progress(ResourceStatuses))
	if err != nil {
		return false, err
	}
	return reconcileDictionary(ctx, e.statuses, fetched)
}

// reconcileDictionary makes a small full-replace collection match the fresh
// set: stale ids deleted, fresh rows upserted. When the materialized local
// set already equals the fetched one the write is skipped entirely, so a
// repeated sync leaves the stored rows untouched.
func reconcileDictionary[T any](ctx context.Context, col *store.Collection[T], fetched []T) (bool, error) {
	local, err := col.List(ctx)
	if err != nil {
		return false, err
	}
	if sameRecords(local, fetched) {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := col.Reconcile(ctx, fetched); err != nil {
		return false, err
	}
	return true, nil
}

// sameRecords compares two record sets structurally, ignoring order.
func sameRecords[T any](local, fetched []T) bool {
	if len(local) != len(fetched) {
		return false
	}
	seen := make(map[string]int, len(local))
	for _, rec := range local {
		b, err := json.Marshal(rec)
		if err != nil {
			return false
		}
		seen[string(b)]++
	}
	for _, rec := range fetched {
		b, err := json.Marshal(rec)
		if err != nil {
			return false
		}
		seen[string(b)]--
		if seen[string(b)] < 0 {
			return false
		}
	}
	return true
}

func anyNewer(fetched []redmine.TimeEntry, localMax string, hasLocal bool) bool {
	for _, entry := range fetched {
		if !hasLocal || timestampText(entry.UpdatedOn) > localMax {
			return true
		}
	}
	return false
}

func anyNewerProjects(fetched []redmine.Project, localMax string, hasLocal bool) bool {
	for _, project := range fetched {
		if !hasLocal || timestampText(project.UpdatedOn) > localMax {
			return true
		}
	}
	return false
}

// timestampText renders an instant the way it lands in an index column, so
// string comparisons against stored values are exact.
func timestampText(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// progress adapts the client's pagination callback into notifier events.
func (e *Engine) progress(resource string) redmine.ProgressFunc {
	return func(count, total int) {
		e.notifier.Publish(notify.Progress(resource, count, total))
	}
}
