package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/events"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/scheduler"
)

var (
	runModels      []string
	runScenarios   []string
	runCategory    string
	runConcurrency int
	runRestart     string
	runNoScorer    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run evaluation sessions",
	Long: `Run evaluation sessions for the selected models and scenarios.

Examples:
  saggiatore run --models gpt-4o --models claude-sonnet-4-5
  saggiatore run -m gpt-4o --category humanitarian
  saggiatore run -m gpt-4o --concurrency 5 --restart skip`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if runCategory != "" && !catalog.ValidCategory(catalog.Category(runCategory)) {
			return fmt.Errorf("unknown category: %s", runCategory)
		}

		modelIDs := runModels
		if len(modelIDs) == 0 {
			for _, m := range app.registry.Available(app.creds) {
				modelIDs = append(modelIDs, m.ModelID)
			}
		}
		if len(modelIDs) == 0 {
			return fmt.Errorf("no models available; set provider API keys or pass --models")
		}

		restart := scheduler.RestartPolicy(runRestart)
		if runRestart == "" {
			restart = scheduler.RestartPolicy(app.cfg.Run.RestartPolicy)
		}
		if restart != "" && !scheduler.ValidRestartPolicy(restart) {
			return fmt.Errorf("restart policy must be skip or duplicate, got %q", restart)
		}

		concurrency := runConcurrency
		if concurrency == 0 {
			concurrency = app.cfg.Run.Concurrency
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if app.cfg.WatchData {
			watcher, err := catalog.NewWatcher(app.catalog, app.log.Zerolog())
			if err != nil {
				return err
			}
			defer watcher.Stop()
		}

		if app.cfg.Events.Enabled {
			hub := events.NewHub(app.broadcaster, app.log.Zerolog())
			go hub.Run(ctx)
			mux := http.NewServeMux()
			mux.Handle("/events", hub)
			srv := &http.Server{Addr: app.cfg.Events.Addr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log := app.log.Zerolog()
					log.Error().Err(err).Msg("Event server stopped")
				}
			}()
			defer srv.Close()
			fmt.Printf("Event stream: ws://%s/events\n", app.cfg.Events.Addr)
		}

		var reconciler *scheduler.Reconciler
		if schedule := app.cfg.Run.ReconcileSchedule; schedule != "" {
			reconciler, err = scheduler.NewReconciler(app.aggregator, schedule, app.log.Zerolog())
			if err != nil {
				return fmt.Errorf("invalid reconcile schedule: %w", err)
			}
			reconciler.Start()
			defer reconciler.Stop()
		}

		sched := scheduler.NewScheduler(scheduler.Config{
			Catalog:        app.catalog,
			Registry:       app.registry,
			Sessions:       app.sessions,
			Store:          app.store,
			Engine:         app.engine,
			Aggregator:     app.aggregator,
			Events:         app.broadcaster,
			Concurrency:    concurrency,
			SessionTimeout: time.Duration(app.cfg.Run.SessionTimeoutMinutes) * time.Minute,
			Restart:        restart,
			Logger:         app.log.Zerolog(),
		})

		// Progress lines from lifecycle events.
		progress, cancelProgress := app.broadcaster.Subscribe()
		defer cancelProgress()
		go func() {
			for ev := range progress {
				data, _ := ev.Data.(map[string]interface{})
				switch ev.Event {
				case events.EventSessionCompleted:
					fmt.Printf("  OK   %v | %v (%v turns)\n", data["model"], data["scenario"], data["totalTurns"])
				case events.EventSessionFailed:
					fmt.Printf("  FAIL %v | %v\n", data["model"], data["scenario"])
				case events.EventSessionTimeout:
					fmt.Printf("  TIME %v | %v\n", data["model"], data["scenario"])
				case events.EventEvaluationRecorded:
					fmt.Printf("       score %.3f (%v) | %v\n", data["overallScore"], data["source"], data["model"])
				}
			}
		}()

		fmt.Printf("Loaded %d personas, %d tools, %d scenarios\n",
			len(app.catalog.Personas()), len(app.catalog.Tools()), len(app.catalog.Scenarios()))
		fmt.Printf("Models: %v\n\n", modelIDs)

		summary, err := sched.Run(ctx, scheduler.RunRequest{
			ModelIDs:       modelIDs,
			Category:       catalog.Category(runCategory),
			ScenarioTitles: runScenarios,
			SkipScoring:    runNoScorer,
		})
		if err != nil {
			return err
		}

		fmt.Printf("\nRun finished in %s: %d completed, %d failed, %d timeout, %d cancelled (%d skipped)\n",
			summary.Duration.Round(time.Second), summary.Completed, summary.Failed,
			summary.Timeout, summary.Cancelled, summary.Skipped)

		return printLeaderboard(cmd.Context(), app)
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&runModels, "models", "m", nil, "model IDs to evaluate (default: all with configured credentials)")
	runCmd.Flags().StringSliceVarP(&runScenarios, "scenarios", "s", nil, "scenario titles (default: all)")
	runCmd.Flags().StringVarP(&runCategory, "category", "c", "", "filter scenarios by category")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "max concurrent sessions")
	runCmd.Flags().StringVar(&runRestart, "restart", "", "restart policy for finished pairs (skip, duplicate)")
	runCmd.Flags().BoolVar(&runNoScorer, "no-scorer", false, "skip scoring entirely")
	rootCmd.AddCommand(runCmd)
}
