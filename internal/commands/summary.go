package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type summaryOutput struct {
	Month         string   `json:"month"`
	Income        string   `json:"income"`
	Expenses      string   `json:"expenses"`
	Balance       string   `json:"balance"`
	IncomeChange  string   `json:"incomeChange"`
	ExpenseChange string   `json:"expenseChange"`
	BalanceChange string   `json:"balanceChange"`
	SavingsRate   string   `json:"savingsRate"`
	Insights      []string `json:"insights"`
}

func newSummaryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Summarize the current month against the previous one",
		Long:  `Summarize the current month against the previous one.

Reads the stored data as is: due recurring definitions are not
materialized first. Run "bilancioctl recurring run" beforehand to include them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := opts.openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			sum := session.Summary()
			out := summaryOutput{
				Month:         session.Today().MonthKey(),
				Income:        sum.Current.Income.String(),
				Expenses:      sum.Current.Expenses.String(),
				Balance:       sum.Current.Balance().String(),
				IncomeChange:  sum.IncomeChange.StringFixed(1),
				ExpenseChange: sum.ExpenseChange.StringFixed(1),
				BalanceChange: sum.BalanceChange.StringFixed(1),
				SavingsRate:   sum.SavingsRate.StringFixed(1),
				Insights:      []string{},
			}
			for _, in := range session.Insights() {
				out.Insights = append(out.Insights, in.Title+": "+in.Text)
			}

			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				return opts.writeJSON(w, out)
			}
			fmt.Fprintf(w, "Month %s\n", out.Month)
			fmt.Fprintf(w, "  Income:   %10s  (%s%% vs last month)\n", out.Income, out.IncomeChange)
			fmt.Fprintf(w, "  Expenses: %10s  (%s%% vs last month)\n", out.Expenses, out.ExpenseChange)
			fmt.Fprintf(w, "  Balance:  %10s  (%s%% vs last month)\n", out.Balance, out.BalanceChange)
			fmt.Fprintf(w, "  Savings rate: %s%%\n", out.SavingsRate)
			for _, in := range out.Insights {
				fmt.Fprintf(w, "- %s\n", in)
			}
			return nil
		},
	}
}
