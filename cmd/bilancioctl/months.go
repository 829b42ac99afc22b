package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"bilancio/internal/core"
)

func (app *CLIApp) monthsCommand() *cobra.Command {
	months := &cobra.Command{
		Use:   "months",
		Short: "Inspect and create ledger months",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's months, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser(cmd)
			if err != nil {
				return err
			}
			ms, err := app.months.ListMonths(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(ms) == 0 {
				pterm.Info.Printfln("No months for user %s", userID)
				return nil
			}
			data := pterm.TableData{{"ID", "Month", "Income", "Expense", "Carry forward", "Revision"}}
			for _, m := range ms {
				data = append(data, []string{
					m.ID, m.Name, m.TotalIncome.String(), m.TotalExpense.String(),
					m.CarryForward.String(), fmt.Sprint(m.Revision),
				})
			}
			return renderTable(data)
		},
	}
	list.Flags().String("user", "", "User id")

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a month seeded from the previous one and recurring templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser(cmd)
			if err != nil {
				return err
			}
			year, _ := cmd.Flags().GetInt("year")
			month, _ := cmd.Flags().GetInt("month")
			if month < 1 || month > 12 {
				return fmt.Errorf("--month must be between 1 and 12")
			}
			m, err := app.months.CreateMonth(cmd.Context(), userID, year, month-1)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Created %s (%s): income %s, expense %s", m.Name, m.ID, m.TotalIncome, m.TotalExpense)
			return nil
		},
	}
	create.Flags().String("user", "", "User id")
	create.Flags().Int("year", 0, "Calendar year")
	create.Flags().Int("month", 0, "Month number, 1 = January")
	_ = create.MarkFlagRequired("year")
	_ = create.MarkFlagRequired("month")

	show := &cobra.Command{
		Use:   "show <month-id>",
		Short: "Show a month's categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.months.GetMonth(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pterm.DefaultSection.Println(m.Name)
			data := pterm.TableData{{"Side", "Category", "Amount", "Entries", "Breakdown"}}
			for _, side := range []core.Side{core.SideIncome, core.SideExpense} {
				for _, c := range m.Categories(side) {
					data = append(data, []string{string(side), c.Name, c.Amount.String(), fmt.Sprint(len(c.Entries)), c.Breakdown})
				}
			}
			if err := renderTable(data); err != nil {
				return err
			}
			pterm.Info.Printfln("Carry forward: %s", m.CarryForward)
			return nil
		},
	}

	months.AddCommand(list, create, show)
	return months
}
