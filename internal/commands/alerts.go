package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type alertOutput struct {
	Category   string `json:"category"`
	Spent      string `json:"spent"`
	Limit      string `json:"limit"`
	Percentage string `json:"percentage"`
	Level      string `json:"level"`
}

func newAlertsCommand(opts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List budgets at or above 90% of their limit this month",
		Long:  `List budgets at or above 90% of their limit this month, or every
budget with --all.

Reads the stored data as is: due recurring definitions are not
materialized first. Run "bilancioctl recurring run" beforehand to include them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := opts.openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out := []alertOutput{}
			if all {
				for _, st := range session.BudgetStatuses() {
					out = append(out, alertOutput{
						Category:   st.Category,
						Spent:      st.Spent.String(),
						Limit:      st.Limit.String(),
						Percentage: st.Percentage.StringFixed(1),
					})
				}
			} else {
				for _, a := range session.Alerts() {
					out = append(out, alertOutput{
						Category:   a.Category,
						Spent:      a.Spent.String(),
						Limit:      a.Limit.String(),
						Percentage: a.Percentage.StringFixed(1),
						Level:      string(a.Level()),
					})
				}
			}

			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				return opts.writeJSON(w, out)
			}
			if len(out) == 0 {
				fmt.Fprintf(w, "No budget alerts for %s\n", session.Today().MonthKey())
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tSPENT\tLIMIT\tUSED\tLEVEL")
			for _, a := range out {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%\t%s\n", a.Category, a.Spent, a.Limit, a.Percentage, a.Level)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "show the status of every budget, not only alerts")
	return cmd
}
