package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bilancio/internal/analytics"
)

type forecastOutput struct {
	HistoryMonths    int           `json:"historyMonths"`
	MonthsCounted    int           `json:"monthsCounted"`
	AvgIncome        string        `json:"avgIncome"`
	AvgExpenses      string        `json:"avgExpenses"`
	AvgBalance       string        `json:"avgBalance"`
	ProjectedSavings string        `json:"projectedSavings"`
	Months           []monthOutput `json:"months"`
}

type monthOutput struct {
	Month     string `json:"month"`
	Income    string `json:"income"`
	Expenses  string `json:"expenses"`
	Balance   string `json:"balance"`
	Projected bool   `json:"projected"`
}

func newForecastCommand(opts *RootOptions) *cobra.Command {
	var history, future int

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project income, expenses and balance for the coming months",
		Long:  `Project income, expenses and balance for the coming months from the
trailing monthly averages.

Reads the stored data as is: due recurring definitions are not
materialized first. Run "bilancioctl recurring run" beforehand to include them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if history < 0 || future < 0 {
				return fmt.Errorf("--history and --future cannot be negative")
			}
			session, cleanup, err := opts.openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			params := analytics.ForecastParams{HistoryMonths: history, FutureMonths: future}
			f := session.Forecast(params)
			if history == 0 {
				history = session.ForecastDefaults().HistoryMonths
			}

			out := forecastOutput{
				HistoryMonths:    history,
				MonthsCounted:    f.MonthsCounted,
				AvgIncome:        f.AvgIncome.StringFixed(2),
				AvgExpenses:      f.AvgExpenses.StringFixed(2),
				AvgBalance:       f.AvgBalance.StringFixed(2),
				ProjectedSavings: f.ProjectedSavings().StringFixed(2),
			}
			for _, p := range f.Series() {
				out.Months = append(out.Months, monthOutput{
					Month:     p.MonthKey,
					Income:    p.Income.StringFixed(2),
					Expenses:  p.Expenses.StringFixed(2),
					Balance:   p.Balance.StringFixed(2),
					Projected: p.Projected,
				})
			}

			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				return opts.writeJSON(w, out)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "MONTH\tINCOME\tEXPENSES\tBALANCE\t\t")
			for _, m := range out.Months {
				mark := ""
				if m.Projected {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", m.Month, m.Income, m.Expenses, m.Balance, mark)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(w, "\n* projected from the average of %d month(s) (history %d)\n", out.MonthsCounted, out.HistoryMonths)
			fmt.Fprintf(w, "Average balance: %s  Projected savings: %s\n", out.AvgBalance, out.ProjectedSavings)
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", 0, "months averaged for the projection (default $FORECAST_HISTORY_MONTHS)")
	cmd.Flags().IntVar(&future, "future", 0, "months to project (default $FORECAST_FUTURE_MONTHS)")
	return cmd
}
