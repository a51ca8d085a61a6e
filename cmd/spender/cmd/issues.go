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
	issuesOpenOnly bool
	issuesLimit    int
	issueProject   int
	issueSubject   string
	issueDesc      string
	issuePriority  int
	issueStatus    int
	issueDue       string
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List and manage issues",
}

var issuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := app.Issues(cmd.Context(), issuesOpenOnly, issuesLimit)
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			fmt.Println("No issues cached. Run 'spender refresh'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tSTATUS\tSUBJECT")
		for _, issue := range issues {
			status := ""
			if issue.Status != nil {
				status = issue.Status.Name
			}
			if issue.ClosedOn != nil {
				status = "closed"
			}
			fmt.Fprintf(w, "#%d\t%s\t%s\t%s\n", issue.ID, issue.Project.Name, status, issue.Subject)
		}
		return w.Flush()
	},
}

var issuesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Open a new issue on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := redmine.IssueFields{
			ProjectID: &issueProject,
			Subject:   &issueSubject,
		}
		if issueDesc != "" {
			fields.Description = &issueDesc
		}
		if issuePriority > 0 {
			fields.PriorityID = &issuePriority
		}
		if issueDue != "" {
			due, err := redmine.ParseDate(issueDue)
			if err != nil {
				return fmt.Errorf("invalid --due: %w", err)
			}
			fields.DueDate = &due
		}

		issue, err := app.CreateIssue(cmd.Context(), fields)
		if err != nil {
			return err
		}
		color.Green("Issue #%d created: %s", issue.ID, issue.Subject)
		return nil
	},
}

var issuesEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Update an issue on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid issue id %q", args[0])
		}

		var fields redmine.IssueFields
		if cmd.Flags().Changed("subject") {
			fields.Subject = &issueSubject
		}
		if cmd.Flags().Changed("description") {
			fields.Description = &issueDesc
		}
		if cmd.Flags().Changed("priority") {
			fields.PriorityID = &issuePriority
		}
		if cmd.Flags().Changed("status") {
			fields.StatusID = &issueStatus
		}
		if cmd.Flags().Changed("due") {
			due, err := redmine.ParseDate(issueDue)
			if err != nil {
				return fmt.Errorf("invalid --due: %w", err)
			}
			fields.DueDate = &due
		}

		if err := app.UpdateIssue(cmd.Context(), id, fields); err != nil {
			return err
		}
		color.Green("Issue #%d updated", id)
		return nil
	},
}

func init() {
	issuesListCmd.Flags().BoolVar(&issuesOpenOnly, "open", false, "only issues without a close timestamp")
	issuesListCmd.Flags().IntVar(&issuesLimit, "limit", 50, "maximum issues to list (0 for all)")

	issuesAddCmd.Flags().IntVar(&issueProject, "project", 0, "project id")
	issuesAddCmd.Flags().StringVar(&issueSubject, "subject", "", "issue subject")
	issuesAddCmd.Flags().StringVar(&issueDesc, "description", "", "issue description")
	issuesAddCmd.Flags().IntVar(&issuePriority, "priority", 0, "priority id")
	issuesAddCmd.Flags().StringVar(&issueDue, "due", "", "due date (YYYY-MM-DD)")
	issuesAddCmd.MarkFlagRequired("project")
	issuesAddCmd.MarkFlagRequired("subject")

	issuesEditCmd.Flags().StringVar(&issueSubject, "subject", "", "issue subject")
	issuesEditCmd.Flags().StringVar(&issueDesc, "description", "", "issue description")
	issuesEditCmd.Flags().IntVar(&issuePriority, "priority", 0, "priority id")
	issuesEditCmd.Flags().IntVar(&issueStatus, "status", 0, "status id")
	issuesEditCmd.Flags().StringVar(&issueDue, "due", "", "due date (YYYY-MM-DD)")

	issuesCmd.AddCommand(issuesListCmd)
	issuesCmd.AddCommand(issuesAddCmd)
	issuesCmd.AddCommand(issuesEditCmd)
}
