package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

var (
	sessionsModel  string
	sessionsStatus string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List evaluation sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()
		ctx := cmd.Context()

		var sessions []store.Session
		switch {
		case sessionsModel != "":
			sessions, err = app.store.SessionsByModel(ctx, sessionsModel)
		case sessionsStatus != "":
			sessions, err = app.store.SessionsByStatus(ctx, sessionsStatus)
		default:
			sessions, err = app.store.ListSessions(ctx)
		}
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tMODEL\tSCENARIO\tSTATUS\tTURNS\tSCORE\tCREATED")
		for _, sess := range sessions {
			score := "-"
			ev, err := app.store.EvaluationBySession(ctx, sess.ID)
			if err == nil {
				score = fmt.Sprintf("%.3f", ev.OverallScore)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				sess.SessionKey, sess.ModelID, sess.ScenarioTitle, sess.Status,
				sess.TotalTurns, score, sess.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	sessionsCmd.Flags().StringVarP(&sessionsModel, "model", "m", "", "filter by model id")
	sessionsCmd.Flags().StringVar(&sessionsStatus, "status", "", "filter by status")
	rootCmd.AddCommand(sessionsCmd)
}
