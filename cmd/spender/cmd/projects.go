package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List cached projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := app.Projects(cmd.Context())
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects cached. Run 'spender refresh'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tIDENTIFIER\tNAME\tUPDATED")
		for _, project := range projects {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				project.ID, project.Identifier, project.Name,
				project.UpdatedOn.Local().Format("2006-01-02"))
		}
		return w.Flush()
	},
}
