package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type recurringRunOutput struct {
	Created []createdOutput `json:"created"`
	Flagged []flaggedOutput `json:"flagged"`
	Failed  int             `json:"failed"`
}

type createdOutput struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type flaggedOutput struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

func newRecurringCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Manage recurring transactions",
	}
	cmd.AddCommand(newRecurringRunCommand(opts))
	return cmd
}

func newRecurringRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Create the transactions of every due recurring definition",
		Long:  `Create the transactions of every due recurring definition. Each
definition fires at most once per run and advances by one period.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := opts.openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := session.RunRecurring(cmd.Context())
			if err != nil {
				return err
			}

			out := recurringRunOutput{Created: []createdOutput{}, Flagged: []flaggedOutput{}, Failed: res.Failed}
			for _, t := range res.Created {
				out.Created = append(out.Created, createdOutput{
					ID:          t.ID,
					Date:        t.Date,
					Type:        string(t.Type),
					Description: t.Description,
					Amount:      t.Amount.String(),
				})
			}
			for _, f := range res.Flagged {
				out.Flagged = append(out.Flagged, flaggedOutput{ID: f.DefinitionID, Error: f.Err.Error()})
			}

			w := cmd.OutOrStdout()
			if opts.Format == "json" {
				return opts.writeJSON(w, out)
			}
			fmt.Fprintf(w, "Created %d transaction(s)\n", len(out.Created))
			for _, c := range out.Created {
				fmt.Fprintf(w, "  %s  %-7s  %10s  %s\n", c.Date, c.Type, c.Amount, c.Description)
			}
			for _, f := range out.Flagged {
				fmt.Fprintf(w, "Skipped definition %d: %s\n", f.ID, f.Error)
			}
			if out.Failed > 0 {
				return fmt.Errorf("%d occurrence(s) could not be stored and will be retried", out.Failed)
			}
			return nil
		},
	}
}
