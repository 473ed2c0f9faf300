package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tvheim/epgdb/internal/config"
	"github.com/tvheim/epgdb/internal/database"
	"github.com/tvheim/epgdb/internal/domain"
	"github.com/tvheim/epgdb/internal/filter"
	"github.com/tvheim/epgdb/internal/render"
)

var renderCmd = &cobra.Command{
	Use:   "render [stationID...]",
	Short: "Render cached guide data as XMLTV or plain text",
	Long: `Render reads the local cache and writes guide data for the selected
stations (all query-enabled stations when none are given). The default
output covers today onward; use --date or --today to narrow it. A rule
file given with --filter decides per program whether it is included.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format != "xmltv" && format != "text" {
			return fmt.Errorf("unknown format %q", format)
		}

		opts := render.Options{
			StationIDs: args,
			Renames:    cfg.StationRenames,
		}

		if dateStr, _ := cmd.Flags().GetString("date"); dateStr != "" {
			day, err := domain.ParseDate(dateStr)
			if err != nil {
				return err
			}
			opts.Day = &day
		} else if today, _ := cmd.Flags().GetBool("today"); today {
			day := domain.Today()
			opts.Day = &day
		}

		if ruleFile, _ := cmd.Flags().GetString("filter"); ruleFile != "" {
			rules, err := filter.ParseFile(ruleFile)
			if err != nil {
				return err
			}
			log.Info().Int("rules", len(rules)).Str("file", ruleFile).Msg("filtering output")
			opts.Include = func(p domain.ProgramRecord) bool {
				return filter.Include(rules, p)
			}
		}

		db, err := database.NewDB(cfg.DatabaseDir, log)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		source := render.NewSource(log,
			database.NewStationRepo(log, db),
			database.NewScheduleRepo(log, db),
			database.NewProgramRepo(log, db))

		groups, err := source.Load(ctx, opts)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		if format == "text" {
			return render.WriteText(out, groups)
		}
		return render.WriteXMLTV(out, groups)
	},
}

func init() {
	renderCmd.Flags().String("format", "xmltv", "output format: 'xmltv' or 'text'")
	renderCmd.Flags().String("filter", "", "rule file deciding which programs are included")
	renderCmd.Flags().String("date", "", "render a single day (YYYY-MM-DD)")
	renderCmd.Flags().Bool("today", false, "render today only")
	renderCmd.Flags().String("output", "", "write to this file instead of stdout")
	rootCmd.AddCommand(renderCmd)
}
