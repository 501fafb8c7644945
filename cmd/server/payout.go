package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func payoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payout",
		Short: "Inspect or drive Ajo payouts",
	}
	cmd.AddCommand(payoutRunCmd(), payoutStatusCmd())
	return cmd
}

func payoutRunCmd() *cobra.Command {
	var groupID uint
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run today's payouts, or a single group with --group",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if groupID != 0 {
				res, err := a.scheduler.RunGroup(ctx, groupID)
				if err != nil {
					return err
				}
				return printJSON(res)
			}
			report, err := a.scheduler.RunDaily(ctx)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().UintVar(&groupID, "group", 0, "Pay out this group now regardless of its due date")
	return cmd
}

func payoutStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last and next scheduled payout run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			st, err := a.scheduler.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println("Payout scheduler")
			fmt.Println(strings.Repeat("=", 40))
			if st.LastRun != nil {
				fmt.Printf("  Last run:  %s (%s)\n", st.LastRun.Format("2006-01-02 15:04 MST"), st.LastStatus)
			} else {
				fmt.Println("  Last run:  never")
			}
			fmt.Printf("  Next run:  %s\n", st.NextRun.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
