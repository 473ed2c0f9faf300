package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tvheim/epgdb/internal/config"
	"github.com/tvheim/epgdb/internal/database"
	"github.com/tvheim/epgdb/internal/notification"
	"github.com/tvheim/epgdb/internal/reconcile"
	"github.com/tvheim/epgdb/internal/sd"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile the local cache with Schedules Direct",
	Long: `Run performs one full reconciliation pass against Schedules Direct:
1. Compares the account's lineups with the cache
2. Refreshes station membership when a lineup changed
3. Checks the schedule digest of every queried station and day
4. Fetches detail for new or changed programs

Only units whose digest differs from the cache are fetched. Individual
station-days or programs that fail are reported and retried on the
next run; authentication problems abort the whole run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		ctx := cmd.Context()

		cfg, err := config.LoadWithCredentials()
		if err != nil {
			return err
		}

		db, err := database.NewDB(cfg.DatabaseDir, log)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		lineups := database.NewLineupRepo(log, db)
		stations := database.NewStationRepo(log, db)
		schedules := database.NewScheduleRepo(log, db)
		programs := database.NewProgramRepo(log, db)

		client := sd.NewClient(log, cfg)
		notifier := notification.NewService(log, cfg.WebhookURL)

		if err := client.Authenticate(ctx); err != nil {
			notifier.SendError(ctx, err)
			return err
		}

		reconciler := reconcile.New(log, client, lineups, stations, schedules, programs,
			cfg.QueryDays, cfg.MaxInFlight)

		summary, err := reconciler.Run(ctx)
		if err != nil {
			if nerr := notifier.SendError(ctx, err); nerr != nil {
				log.Warn().Err(nerr).Msg("failed to send notification")
			}
			return fmt.Errorf("run failed: %w", err)
		}

		log.Info().
			Int("lineups_updated", summary.Lineups.Updated).
			Int("days_updated", summary.ScheduleDays.Updated).
			Int("days_unchanged", summary.ScheduleDays.Skipped).
			Int("days_without_schedule", summary.ScheduleDays.Invalid).
			Int("programs_updated", summary.Programs.Updated).
			Int("programs_unchanged", summary.Programs.Skipped).
			Msg("run completed")

		for _, f := range summary.Failures {
			log.Warn().Str("stage", f.Stage).Str("unit", f.Unit).Err(f.Err).
				Msg("unit failed, will retry next run")
		}

		if nerr := notifier.SendSuccess(ctx, summary); nerr != nil {
			log.Warn().Err(nerr).Msg("failed to send notification")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
