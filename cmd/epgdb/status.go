package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tvheim/epgdb/internal/config"
	"github.com/tvheim/epgdb/internal/database"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		ctx := cmd.Context()

		cfg, err := config.Load()
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

		lineupList, err := lineups.List(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Lineups:")
		for _, l := range lineupList {
			fmt.Printf("  %-20s %-30s modified %s\n", l.LineupID, l.Name,
				time.Unix(l.Modified, 0).Format("2006-01-02"))
		}
		if len(lineupList) == 0 {
			fmt.Println("  (none)")
		}

		total, active, query, dangling, err := stations.Counts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nStations: %d total, %d active, %d enabled for querying\n", total, active, query)
		if dangling > 0 {
			fmt.Printf("  %d flagged stations are no longer in any lineup\n", dangling)
		}

		airings, oldest, newest, err := schedules.Stats(ctx)
		if err != nil {
			return err
		}
		if airings > 0 {
			fmt.Printf("\nAirings: %d (%s to %s)\n", airings, oldest, newest)
		} else {
			fmt.Printf("\nAirings: 0\n")
		}

		programCount, err := programs.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Programs: %d\n", programCount)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
