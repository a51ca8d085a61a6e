package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/notify"
)

var refreshAuto bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Synchronize the local cache with the Redmine server",
	Long: `refresh reconciles every cached collection (projects, issues, time
entries, activities, priorities, statuses) against the server. Collections
are fetched concurrently; a failure in one does not stop the others.

With --auto the refresh is skipped when the configured AUTO_REFRESH
interval says the cache is still fresh.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unsubscribe := app.Notifier().Subscribe(notify.KindProgress, func(ev notify.Event) {
			if ev.Total < 0 {
				fmt.Printf("  %-12s fetching...\n", ev.Resource)
				return
			}
			fmt.Printf("  %-12s %d/%d\n", ev.Resource, ev.Count, ev.Total)
		})
		defer unsubscribe()

		start := time.Now()
		fmt.Println("Refreshing...")

		if refreshAuto {
			res, skipped, err := app.AutoRefresh(cmd.Context())
			if err != nil {
				return err
			}
			if skipped {
				fmt.Println("Cache is fresh, refresh skipped.")
				return nil
			}
			printResult(resultView{changed: res.Changed, errors: res.Errors}, time.Since(start))
			return nil
		}

		res, err := app.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		printResult(resultView{changed: res.Changed, errors: res.Errors}, time.Since(start))
		return nil
	},
}

type resultView struct {
	changed map[string]bool
	errors  map[string]error
}

func printResult(view resultView, elapsed time.Duration) {
	resources := make([]string, 0, len(view.changed))
	for resource := range view.changed {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	fmt.Println()
	for _, resource := range resources {
		switch {
		case view.errors[resource] != nil:
			color.Red("  %-12s failed: %v", resource, view.errors[resource])
		case view.changed[resource]:
			color.Green("  %-12s updated", resource)
		default:
			fmt.Printf("  %-12s unchanged\n", resource)
		}
	}
	fmt.Printf("\nDone in %v.\n", elapsed.Round(time.Millisecond))
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshAuto, "auto", false, "skip when the cache is within the configured refresh interval")
}
