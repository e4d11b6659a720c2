package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const noHistoryMessage = "no role changes recorded for this cell"

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history CELL_ID",
		Short: "Show the role change history of a cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid cell id: %w", err)
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			records, err := a.client.FetchRoleChangeHistory(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to fetch history: %w", err)
			}
			if a.structured() {
				return printOutput(cmd.OutOrStdout(), a.cfg.Output, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), noHistoryMessage)
				return nil
			}

			rows := make([][]string, 0, len(records))
			for i, r := range records {
				from := "-"
				if r.OldRole != nil {
					from = string(*r.OldRole)
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					r.ChangedAt.Local().Format(time.DateTime),
					from,
					string(r.NewRole),
					r.User.DisplayName,
					truncate(r.Reason, 50),
				})
			}
			return printTable(cmd.OutOrStdout(), []string{"#", "Changed", "From", "To", "By", "Reason"}, rows)
		},
	}
}
