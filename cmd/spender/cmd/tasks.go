package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	taskColor   string
	tasksAll    bool
	taskNewText string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage local to-do tasks",
	Long: `Tasks are private notes stored only in the encrypted local cache.
They are never sent to the Redmine server.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := app.Tasks(cmd.Context(), !tasksAll)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tCREATED\tTASK")
		for _, task := range tasks {
			state := "open"
			if task.Done() {
				state = "done"
			}
			text := task.Text
			if task.Color != "" {
				text = fmt.Sprintf("%s [%s]", text, task.Color)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				task.ID, state, task.CreatedAt.Local().Format("2006-01-02"), text)
		}
		return w.Flush()
	},
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := app.AddTask(cmd.Context(), strings.Join(args, " "), taskColor)
		if err != nil {
			return err
		}
		color.Green("Task #%d added", task.ID)
		return nil
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		if err := app.CloseTask(cmd.Context(), id); err != nil {
			return err
		}
		color.Green("Task #%d done", id)
		return nil
	},
}

var tasksReopenCmd = &cobra.Command{
	Use:   "reopen <id>",
	Short: "Reopen a closed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		if err := app.ReopenTask(cmd.Context(), id); err != nil {
			return err
		}
		color.Green("Task #%d reopened", id)
		return nil
	},
}

var tasksEditCmd = &cobra.Command{
	Use:   "edit <id> --text <text>",
	Short: "Rewrite a task's text or color",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		if err := app.EditTask(cmd.Context(), id, taskNewText, taskColor); err != nil {
			return err
		}
		color.Green("Task #%d updated", id)
		return nil
	},
}

var tasksRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}
		if err := app.DeleteTask(cmd.Context(), id); err != nil {
			return err
		}
		color.Green("Task #%d deleted", id)
		return nil
	},
}

func init() {
	tasksListCmd.Flags().BoolVar(&tasksAll, "all", false, "include closed tasks")
	tasksAddCmd.Flags().StringVar(&taskColor, "color", "", "color tag")
	tasksEditCmd.Flags().StringVar(&taskNewText, "text", "", "new task text")
	tasksEditCmd.Flags().StringVar(&taskColor, "color", "", "color tag")
	tasksEditCmd.MarkFlagRequired("text")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksAddCmd)
	tasksCmd.AddCommand(tasksDoneCmd)
	tasksCmd.AddCommand(tasksReopenCmd)
	tasksCmd.AddCommand(tasksEditCmd)
	tasksCmd.AddCommand(tasksRmCmd)
}
