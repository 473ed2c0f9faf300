package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tvheim/epgdb/internal/config"
	"github.com/tvheim/epgdb/internal/database"
	"github.com/tvheim/epgdb/internal/domain"
	"gopkg.in/yaml.v3"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Inspect and manage station selection",
	Long: `Stations shows which stations the cache knows about and controls the
per-station query flag: only flagged stations have their schedules
fetched and rendered. The flag survives lineup changes; a flagged
station that left all lineups is kept and reported until unflagged.`,
}

var stationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stations enabled for querying",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		db, stations, err := openStations(log)
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := stations.ListActiveQuery(cmd.Context())
		if err != nil {
			return err
		}
		printStations(list)
		return nil
	},
}

var stationsAllCmd = &cobra.Command{
	Use:   "all",
	Short: "List every station in the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		db, stations, err := openStations(log)
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := stations.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		printStations(list)
		return nil
	},
}

var stationsSetCmd = &cobra.Command{
	Use:   "set ID...",
	Short: "Enable querying for the given stations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setQueryFlag(cmd, args, true)
	},
}

var stationsUnsetCmd = &cobra.Command{
	Use:   "unset ID...",
	Short: "Disable querying for the given stations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setQueryFlag(cmd, args, false)
	},
}

// stationIntent is the YAML form of per-station user intent.
type stationIntent struct {
	StationID string `yaml:"station_id"`
	Name      string `yaml:"name"`
	Query     bool   `yaml:"query"`
}

var stationsExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write station selection to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		db, stations, err := openStations(log)
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := stations.ListAll(cmd.Context())
		if err != nil {
			return err
		}

		intents := make([]stationIntent, 0, len(list))
		for _, s := range list {
			intents = append(intents, stationIntent{
				StationID: s.StationID,
				Name:      s.Name,
				Query:     s.QueryFromSD,
			})
		}

		data, err := yaml.Marshal(intents)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return err
		}

		log.Info().Int("stations", len(intents)).Str("file", args[0]).Msg("station selection exported")
		return nil
	},
}

var stationsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Apply station selection from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		db, stations, err := openStations(log)
		if err != nil {
			return err
		}
		defer db.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var intents []stationIntent
		if err := yaml.Unmarshal(data, &intents); err != nil {
			return err
		}

		applied := 0
		for _, in := range intents {
			if err := stations.SetQuery(cmd.Context(), in.StationID, in.Query); err != nil {
				log.Warn().Str("station", in.StationID).Str("name", in.Name).Err(err).
					Msg("skipping station from import file")
				continue
			}
			applied++
		}

		log.Info().Int("applied", applied).Int("total", len(intents)).Msg("station selection imported")
		return nil
	},
}

func setQueryFlag(cmd *cobra.Command, ids []string, query bool) error {
	log := newLogger()
	db, stations, err := openStations(log)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, id := range ids {
		if err := stations.SetQuery(cmd.Context(), id, query); err != nil {
			return err
		}
	}
	return nil
}

func openStations(log zerolog.Logger) (*database.DB, *database.StationRepo, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.NewDB(cfg.DatabaseDir, log)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}

	return db, database.NewStationRepo(log, db), nil
}

func printStations(list []domain.Station) {
	for _, s := range list {
		flags := ""
		if !s.Active {
			flags += " [gone]"
		}
		if s.QueryFromSD {
			flags += " [query]"
		}
		fmt.Printf("%-10s %-8s %s%s\n", s.StationID, s.BroadcastLanguage, s.Name, flags)
	}
}

func init() {
	stationsCmd.AddCommand(stationsListCmd)
	stationsCmd.AddCommand(stationsAllCmd)
	stationsCmd.AddCommand(stationsSetCmd)
	stationsCmd.AddCommand(stationsUnsetCmd)
	stationsCmd.AddCommand(stationsExportCmd)
	stationsCmd.AddCommand(stationsImportCmd)
	rootCmd.AddCommand(stationsCmd)
}
