package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (app *CLIApp) recurringCommand() *cobra.Command {
	recurring := &cobra.Command{
		Use:   "recurring",
		Short: "Inspect recurring expense templates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's recurring templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireUser(cmd)
			if err != nil {
				return err
			}
			templates, err := app.recurring.List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(templates) == 0 {
				pterm.Info.Printfln("No recurring templates for user %s", userID)
				return nil
			}
			data := pterm.TableData{{"ID", "Category", "Amount", "Tag", "Note"}}
			for _, t := range templates {
				data = append(data, []string{t.ID, t.Category, t.Amount.String(), string(t.Tag), t.Note})
			}
			return renderTable(data)
		},
	}
	list.Flags().String("user", "", "User id")

	recurring.AddCommand(list)
	return recurring
}
