package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"taska/internal/logging"
	"taska/internal/service"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one recurring-task pass and print the generated occurrences",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.taskService(service.LogSink{Log: logging.Component("notify")}).Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.NewTasks) == 0 {
				fmt.Fprintln(out, "Nothing to generate.")
			} else {
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSERIES\tDUE\tTITLE\tASSIGNEES")
				for _, t := range res.NewTasks {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", t.ID, t.SeriesID(), t.DueDate.Format("2006-01-02"), t.Title, t.AssigneeNames())
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			for _, err := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", err)
			}
			return nil
		},
	}
}
