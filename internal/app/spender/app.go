// Package spender wires the client application together: configuration,
// encrypted cache, remote client, sync engine and the notifier front ends
// subscribe to. All state lives on the App, there are no package globals.
package spender

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/config"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/notify"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/store"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/syncer"
)

type App struct {
	cfg      *config.Config
	log      *slog.Logger
	notifier *notify.Notifier
	store    *store.Store
	client   *redmine.Client
	engine   *syncer.Engine

	entries    *store.Collection[redmine.TimeEntry]
	projects   *store.Collection[redmine.Project]
	issues     *store.Collection[redmine.Issue]
	activities *store.Collection[redmine.Activity]
	priorities *store.Collection[redmine.Priority]
	statuses   *store.Collection[redmine.Status]
	tasks      *store.Collection[Task]
}

func New(cfg *config.Config, log *slog.Logger, notifier *notify.Notifier, st *store.Store, client *redmine.Client) *App {
	engine := syncer.New(syncer.Deps{
		Log:          log,
		Client:       client,
		Notifier:     notifier,
		Store:        st,
		NumberOfDays: cfg.NumberOfDays,
	})

	return &App{
		cfg:        cfg,
		log:        log.With("component", "app"),
		notifier:   notifier,
		store:      st,
		client:     client,
		engine:     engine,
		entries:    store.NewCollection[redmine.TimeEntry](st, store.Entries),
		projects:   store.NewCollection[redmine.Project](st, store.Projects),
		issues:     store.NewCollection[redmine.Issue](st, store.Issues),
		activities: store.NewCollection[redmine.Activity](st, store.Activities),
		priorities: store.NewCollection[redmine.Priority](st, store.Priorities),
		statuses:   store.NewCollection[redmine.Status](st, store.Statuses),
		tasks:      store.NewCollection[Task](st, store.Tasks),
	}
}

// Notifier exposes the event hub so front ends can subscribe before calling
// into the app.
func (a *App) Notifier() *notify.Notifier {
	return a.notifier
}

// Account checks connectivity and the API key by fetching the current user.
func (a *App) Account(ctx context.Context) (*redmine.Account, error) {
	return a.client.MyAccount(ctx)
}

// Refresh reconciles every cached collection against the remote server.
func (a *App) Refresh(ctx context.Context) (*syncer.Result, error) {
	return a.engine.Refresh(ctx)
}

// AutoRefresh runs a refresh only when the configured interval calls for one.
// The skipped return tells the caller the cache was considered fresh enough.
func (a *App) AutoRefresh(ctx context.Context) (result *syncer.Result, skipped bool, err error) {
	should, err := a.engine.ShouldRefresh(ctx, a.cfg.AutoRefresh, timeNow())
	if err != nil {
		return nil, false, err
	}
	if !should {
		a.log.Debug("auto refresh skipped", "interval", a.cfg.AutoRefresh)
		return nil, true, nil
	}
	result, err = a.engine.Refresh(ctx)
	return result, false, err
}

// Wipe erases every cached record and the sync metadata. The keyfile is the
// caller's responsibility; a wiped cache can be reopened with a fresh key.
func (a *App) Wipe(ctx context.Context) error {
	if err := a.store.Wipe(ctx); err != nil {
		return fmt.Errorf("app: wipe cache: %w", err)
	}
	a.notifier.Publish(notify.Notice("local cache wiped"))
	return nil
}

// Projects lists the cached projects, newest change first.
func (a *App) Projects(ctx context.Context) ([]redmine.Project, error) {
	return a.projects.List(ctx, store.OrderBy("updated_on", true))
}

// Issues lists cached issues, most recently updated first. With openOnly only
// issues without a closed_on timestamp are returned.
func (a *App) Issues(ctx context.Context, openOnly bool, limit int) ([]redmine.Issue, error) {
	opts := []store.Option{store.OrderBy("updated_on", true)}
	if openOnly {
		opts = append(opts, store.WhereNull("closed_on"))
	}
	if limit > 0 {
		opts = append(opts, store.Limit(limit))
	}
	return a.issues.List(ctx, opts...)
}

// Activities lists the cached activity dictionary, honoring the hide-inactive
// setting.
func (a *App) Activities(ctx context.Context) ([]redmine.Activity, error) {
	opts := []store.Option{store.OrderBy("id", false)}
	if a.cfg.HideInactive {
		opts = append(opts, store.WhereEq("active", true))
	}
	return a.activities.List(ctx, opts...)
}

func (a *App) Priorities(ctx context.Context) ([]redmine.Priority, error) {
	opts := []store.Option{store.OrderBy("id", false)}
	if a.cfg.HideInactive {
		opts = append(opts, store.WhereEq("active", true))
	}
	return a.priorities.List(ctx, opts...)
}

func (a *App) Statuses(ctx context.Context) ([]redmine.Status, error) {
	return a.statuses.List(ctx, store.OrderBy("id", false))
}

// Issue fetches one cached issue. Hydrating an entry's issue reference is
// best effort: the issue may simply not be cached.
func (a *App) Issue(ctx context.Context, id int) (redmine.Issue, error) {
	return a.issues.Get(ctx, int64(id))
}
