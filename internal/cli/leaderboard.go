package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Display the evaluation leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()
		return printLeaderboard(cmd.Context(), app)
	},
}

func printLeaderboard(ctx context.Context, app *app) error {
	entries, err := app.store.ListLeaderboard(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Leaderboard is empty. Run evaluations first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tMODEL\tSCORE\tEVALS\tTOOLS\tEMPATHY\tFACTS\tCOMPLETE\tSAFETY")
	for i, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			i+1, e.ModelID, e.OverallScore, e.TotalEvaluations,
			e.Metrics.ToolAccuracy, e.Metrics.Empathy, e.Metrics.FactualCorrectness,
			e.Metrics.Completeness, e.Metrics.SafetyCompliance)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println("\nCategory scores:")
	cw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprint(cw, "MODEL")
	for _, cat := range catalog.Categories {
		fmt.Fprintf(cw, "\t%s", catalog.CategoryDisplay[cat])
	}
	fmt.Fprintln(cw)
	for _, e := range entries {
		fmt.Fprint(cw, e.ModelID)
		for _, cat := range catalog.Categories {
			fmt.Fprintf(cw, "\t%.3f", e.CategoryScores[string(cat)])
		}
		fmt.Fprintln(cw)
	}
	return cw.Flush()
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)
}
