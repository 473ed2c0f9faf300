package render

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/tvheim/epgdb/internal/database"
	"github.com/tvheim/epgdb/internal/domain"
)

// Listing is one airing joined with its program detail, ready for
// output.
type Listing struct {
	Entry   domain.ScheduleEntry
	Program domain.ProgramRecord
	Artwork *domain.Artwork
}

// StationListings groups a station's airings in airtime order. Name
// renames from config are already applied to the station.
type StationListings struct {
	Station  domain.Station
	Listings []Listing
}

// Options narrows what Load reads from the cache.
type Options struct {
	// StationIDs restricts output to these stations. Empty means all
	// query-enabled stations.
	StationIDs []string
	// Day restricts output to a single day. Nil means today onward.
	Day *domain.Date
	// Renames maps station ID to a replacement display name.
	Renames map[string]string
	// Include decides per program whether it appears in the output.
	// Nil includes everything.
	Include func(domain.ProgramRecord) bool
}

// Source reads the ordered candidate stream for the renderers.
type Source struct {
	log       zerolog.Logger
	stations  *database.StationRepo
	schedules *database.ScheduleRepo
	programs  *database.ProgramRepo
}

func NewSource(log zerolog.Logger, stations *database.StationRepo,
	schedules *database.ScheduleRepo, programs *database.ProgramRepo) *Source {
	return &Source{
		log:       log.With().Str("module", "render").Logger(),
		stations:  stations,
		schedules: schedules,
		programs:  programs,
	}
}

// Load reads every requested station's cached airings, joined with
// program detail and the stored artwork link. Airings whose program
// is missing from the cache are dropped with a warning.
func (s *Source) Load(ctx context.Context, opts Options) ([]StationListings, error) {
	stations, err := s.selectStations(ctx, opts.StationIDs)
	if err != nil {
		return nil, err
	}
	s.applyRenames(stations, opts.Renames)

	// Program detail and artwork repeat across airings; resolve each
	// program once.
	programCache := make(map[string]*domain.ProgramRecord)
	artworkCache := make(map[string]*domain.Artwork)

	var out []StationListings
	for _, st := range stations {
		days, err := s.schedules.ListDays(ctx, st.StationID)
		if err != nil {
			return nil, err
		}

		group := StationListings{Station: st}
		for _, day := range days {
			if !s.wantDay(day.StartDate, opts.Day) {
				continue
			}

			entries, err := s.schedules.EntriesForIndex(ctx, day.ID)
			if err != nil {
				return nil, err
			}

			for _, e := range entries {
				p, ok := programCache[e.ProgramID]
				if !ok {
					p, err = s.programs.Get(ctx, e.ProgramID)
					if err != nil {
						return nil, err
					}
					programCache[e.ProgramID] = p
					if p != nil {
						artworkCache[e.ProgramID] = s.firstArtwork(ctx, e.ProgramID)
					}
				}
				if p == nil {
					s.log.Warn().Str("program", e.ProgramID).Str("station", st.StationID).
						Msg("airing references a program missing from the cache")
					continue
				}
				if opts.Include != nil && !opts.Include(*p) {
					continue
				}

				group.Listings = append(group.Listings, Listing{
					Entry:   e,
					Program: *p,
					Artwork: artworkCache[e.ProgramID],
				})
			}
		}

		sort.Slice(group.Listings, func(i, j int) bool {
			return group.Listings[i].Entry.Airtime < group.Listings[j].Entry.Airtime
		})
		out = append(out, group)
	}

	return out, nil
}

func (s *Source) selectStations(ctx context.Context, ids []string) ([]domain.Station, error) {
	all, err := s.stations.ListActiveQuery(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return all, nil
	}

	byID := make(map[string]domain.Station, len(all))
	for _, st := range all {
		byID[st.StationID] = st
	}

	var selected []domain.Station
	for _, id := range ids {
		st, ok := byID[id]
		if !ok {
			s.log.Warn().Str("station", id).Msg("station not found or not enabled for querying")
			continue
		}
		selected = append(selected, st)
	}
	return selected, nil
}

// applyRenames replaces station display names in place. A rename that
// collides with another station's name would merge their output
// channels, so it is reported.
func (s *Source) applyRenames(stations []domain.Station, renames map[string]string) {
	if len(renames) == 0 {
		return
	}

	names := make(map[string]string, len(stations))
	for _, st := range stations {
		names[st.Name] = st.StationID
	}

	for i, st := range stations {
		newName, ok := renames[st.StationID]
		if !ok {
			continue
		}
		if other, taken := names[newName]; taken && other != st.StationID {
			s.log.Warn().Str("station", st.StationID).Str("name", newName).
				Str("conflicts_with", other).Msg("station rename collides with an existing station name")
		}
		stations[i].Name = newName
	}
}

func (s *Source) wantDay(day domain.Date, only *domain.Date) bool {
	if only != nil {
		return day == *only
	}
	return day >= domain.Today()
}

func (s *Source) firstArtwork(ctx context.Context, programID string) *domain.Artwork {
	art, err := s.programs.GetArtwork(ctx, programID)
	if err != nil {
		s.log.Warn().Err(err).Str("program", programID).Msg("artwork lookup failed")
		return nil
	}
	if len(art) == 0 {
		return nil
	}
	return &art[0]
}
