package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
)

var (
	entryDays     int
	entryProject  int
	entryIssue    int
	entryActivity int
	entryHours    float64
	entryComments string
	entryDate     string
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List and manage time entries",
}

var entriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached time entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		from := redmine.Today().AddDays(-entryDays)
		entries, err := app.EntriesSince(cmd.Context(), from)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No time entries cached. Run 'spender refresh'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tHOURS\tPROJECT\tISSUE\tCOMMENT")
		var total float64
		for _, entry := range entries {
			issue := ""
			if entry.Issue != nil {
				issue = "#" + strconv.Itoa(entry.Issue.ID)
				if hydrated, err := app.Issue(cmd.Context(), entry.Issue.ID); err == nil {
					issue = fmt.Sprintf("%s %s", issue, hydrated.Subject)
				}
			}
			fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\t%s\t%s\n",
				entry.ID, entry.SpentOn.String(), entry.Hours, entry.Project.Name, issue, entry.Comments)
			total += entry.Hours
		}
		w.Flush()
		fmt.Printf("\n%d entries, %.2f hours since %s\n", len(entries), total, from.String())
		return nil
	},
}

var entriesLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Log time on the server",
	Long: `log creates a time entry on the Redmine server. The entry lands in
the local cache only after the server accepts it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := redmine.TimeEntryFields{
			ProjectID:  &entryProject,
			ActivityID: &entryActivity,
			Hours:      &entryHours,
		}
		if entryIssue > 0 {
			fields.IssueID = &entryIssue
		}
		if entryComments != "" {
			fields.Comments = &entryComments
		}
		day := redmine.Today()
		if entryDate != "" {
			parsed, err := redmine.ParseDate(entryDate)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			day = parsed
		}
		fields.SpentOn = &day

		entry, err := app.LogTime(cmd.Context(), fields)
		if err != nil {
			return err
		}
		color.Green("Logged %.2f hours on %s (entry #%d)", entry.Hours, entry.SpentOn.String(), entry.ID)
		return nil
	},
}

var entriesEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a time entry on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid entry id %q", args[0])
		}

		var fields redmine.TimeEntryFields
		if cmd.Flags().Changed("hours") {
			fields.Hours = &entryHours
		}
		if cmd.Flags().Changed("comments") {
			fields.Comments = &entryComments
		}
		if cmd.Flags().Changed("activity") {
			fields.ActivityID = &entryActivity
		}
		if cmd.Flags().Changed("date") {
			parsed, err := redmine.ParseDate(entryDate)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			fields.SpentOn = &parsed
		}

		if err := app.UpdateEntry(cmd.Context(), id, fields); err != nil {
			return err
		}
		color.Green("Entry #%d updated", id)
		return nil
	},
}

var entriesRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a time entry from the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid entry id %q", args[0])
		}
		if err := app.RemoveEntry(cmd.Context(), id); err != nil {
			return err
		}
		color.Green("Entry #%d removed", id)
		return nil
	},
}

func init() {
	entriesListCmd.Flags().IntVar(&entryDays, "days", 7, "how many days back to list")

	entriesLogCmd.Flags().IntVar(&entryProject, "project", 0, "project id")
	entriesLogCmd.Flags().IntVar(&entryIssue, "issue", 0, "issue id")
	entriesLogCmd.Flags().IntVar(&entryActivity, "activity", 0, "activity id")
	entriesLogCmd.Flags().Float64Var(&entryHours, "hours", 0, "hours spent")
	entriesLogCmd.Flags().StringVar(&entryComments, "comments", "", "entry comment")
	entriesLogCmd.Flags().StringVar(&entryDate, "date", "", "spent-on day (YYYY-MM-DD, default today)")
	entriesLogCmd.MarkFlagRequired("project")
	entriesLogCmd.MarkFlagRequired("activity")
	entriesLogCmd.MarkFlagRequired("hours")

	entriesEditCmd.Flags().Float64Var(&entryHours, "hours", 0, "hours spent")
	entriesEditCmd.Flags().StringVar(&entryComments, "comments", "", "entry comment")
	entriesEditCmd.Flags().IntVar(&entryActivity, "activity", 0, "activity id")
	entriesEditCmd.Flags().StringVar(&entryDate, "date", "", "spent-on day (YYYY-MM-DD)")

	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesLogCmd)
	entriesCmd.AddCommand(entriesEditCmd)
	entriesCmd.AddCommand(entriesRmCmd)
}
