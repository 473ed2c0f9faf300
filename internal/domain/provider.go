package domain

import "context"

// ScheduleDigest is the provider's per-station, per-day content
// summary used to decide whether the day's airings must be refetched.
type ScheduleDigest struct {
	MD5          string
	LastModified int64
}

// ScheduleAiring is one airing in a full schedule payload. MD5 is the
// digest of the referenced program's detail as of this payload.
type ScheduleAiring struct {
	ProgramID       string
	MD5             string
	Airtime         int64
	Duration        int
	AudioProperties string
	VideoProperties string
}

// ProgramDetail is the flattened detail payload for one program. The
// provider client resolves language preferences and joins list-valued
// fields into the cache's tab-separated encoding before returning.
type ProgramDetail struct {
	ProgramID        string
	MD5              string
	Title            string
	EpisodeTitle     string
	DescriptionShort string
	DescriptionLong  string
	Genres           string
	Cast             string
	Crew             string
	EntityType       string
	ShowType         string
	MovieYear        int
}

// ArtworkLink is the best-matching image the provider offers for a
// program.
type ArtworkLink struct {
	URI     string
	Aspect  string
	Caption string
	Width   int
	Height  int
}

// ProviderClient is the boundary to the remote guide provider. All
// methods return a typed error on failure: *AuthError and
// *TransportError are fatal to a run, anything else means the single
// unit failed and its cached state stands.
type ProviderClient interface {
	// Authenticate obtains a session token and verifies the account is
	// usable. Must be called before any other method.
	Authenticate(ctx context.Context) error

	FetchLineups(ctx context.Context) ([]Lineup, error)
	FetchStations(ctx context.Context, lineupURI string) ([]Station, error)

	// FetchScheduleDigest returns ErrNoSchedule when the provider has
	// no schedule for the station/day.
	FetchScheduleDigest(ctx context.Context, stationID string, day Date) (ScheduleDigest, error)
	FetchSchedule(ctx context.Context, stationID string, day Date) ([]ScheduleAiring, error)

	FetchProgramDigest(ctx context.Context, programID string) (string, error)
	FetchProgramDetail(ctx context.Context, programID string) (ProgramDetail, error)

	// FetchArtworkLink returns (nil, nil) when the provider has no
	// usable artwork for the program.
	FetchArtworkLink(ctx context.Context, programID string) (*ArtworkLink, error)
}
