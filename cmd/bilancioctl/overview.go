package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"bilancio/internal/insights"
)

func (app *CLIApp) overviewCommand() *cobra.Command {
	overview := &cobra.Command{
		Use:   "overview",
		Short: "Show a user's month-over-month trend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser(cmd)
			if err != nil {
				return err
			}
			months, err := app.months.ListMonths(cmd.Context(), userID)
			if err != nil {
				return err
			}
			ov := insights.ForUser(userID, months)
			if ov.Months == 0 {
				pterm.Info.Printfln("No months for user %s", userID)
				return nil
			}

			data := pterm.TableData{{"Month", "Income", "Expense", "Carry forward"}}
			for _, p := range ov.Trend {
				data = append(data, []string{p.Name, p.Income.String(), p.Expense.String(), p.CarryForward.String()})
			}
			if err := renderTable(data); err != nil {
				return err
			}
			pterm.Info.Printfln("Average carry forward over %d months: %s", ov.Months, ov.AverageCarryForward)
			if ov.Best != nil && ov.Worst != nil {
				pterm.Info.Printfln("Best: %s (%s), worst: %s (%s)",
					ov.Best.Name, ov.Best.CarryForward, ov.Worst.Name, ov.Worst.CarryForward)
			}
			return nil
		},
	}
	overview.Flags().String("user", "", "User id")
	return overview
}
