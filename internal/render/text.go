package render

import (
	"fmt"
	"io"
	"time"
)

// WriteText renders a human-readable listing, one block per station,
// grouped by local day in airtime order.
func WriteText(w io.Writer, groups []StationListings) error {
	for i, g := range groups {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "== %s ==\n", g.Station.Name); err != nil {
			return err
		}

		var day string
		var blockEnd time.Time
		for _, l := range g.Listings {
			start := time.Unix(l.Entry.Airtime, 0).Local()
			end := start.Add(time.Duration(l.Entry.Duration) * time.Second)

			if d := start.Format("Mon 2006-01-02"); d != day {
				if day != "" {
					if _, err := fmt.Fprintf(w, "%s end\n", blockEnd.Format("15:04")); err != nil {
						return err
					}
				}
				day = d
				if _, err := fmt.Fprintf(w, "\n%s\n", day); err != nil {
					return err
				}
			}

			line := fmt.Sprintf("%s %s", start.Format("15:04"), l.Program.Title)
			if l.Program.EpisodeTitle != "" {
				line += fmt.Sprintf(" (%s)", l.Program.EpisodeTitle)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
			blockEnd = end
		}

		if day != "" {
			if _, err := fmt.Fprintf(w, "%s end\n", blockEnd.Format("15:04")); err != nil {
				return err
			}
		}
	}
	return nil
}
