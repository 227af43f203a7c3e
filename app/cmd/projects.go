package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/store"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Inspect and manage stored projects",
	}
	cmd.AddCommand(newProjectsListCmd(), newProjectsDeleteCmd())
	return cmd
}

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects with their planning state",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.New(globalCfg.ProjectsDir, globalLog)
			if err != nil {
				return err
			}
			metas, err := s.ListProjects()
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tPROGRESS\tQUERY")
			for _, m := range metas {
				fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\n", m.ID, m.Status, m.Progress, m.Query)
			}
			return w.Flush()
		},
	}
}

func newProjectsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and its plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.New(globalCfg.ProjectsDir, globalLog)
			if err != nil {
				return err
			}
			deleted, err := s.DeleteProject(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return framework.NotFoundf("project %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
