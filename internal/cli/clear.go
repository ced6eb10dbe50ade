package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clearModel string
	clearAll   bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete sessions and recompute the leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if clearModel == "" && !clearAll {
			return fmt.Errorf("pass --model <id> or --all")
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()
		ctx := cmd.Context()

		if clearAll {
			if err := app.store.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Println("Cleared all sessions, evaluations and leaderboard entries.")
			return app.aggregator.RecomputeAll(ctx)
		}

		n, err := app.store.ClearModel(ctx, clearModel)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d sessions for %s.\n", n, clearModel)
		return app.aggregator.RecomputeLeaderboard(ctx, clearModel)
	},
}

func init() {
	clearCmd.Flags().StringVarP(&clearModel, "model", "m", "", "clear one model's sessions")
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "clear everything")
	rootCmd.AddCommand(clearCmd)
}
