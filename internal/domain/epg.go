package domain

// Lineup is a named collection of stations receivable via one access
// method (cable head-end, satellite, antenna market). Lineups are
// mirrored from the provider account; a lineup disappears locally only
// when it disappears from the account.
type Lineup struct {
	LineupID string
	Name     string
	URI      string
	Modified int64
}

// Station is a single broadcast channel with a provider-assigned,
// lineup-independent identifier. Stations are never deleted, only
// deactivated, so the user's QueryFromSD intent survives lineup churn.
type Station struct {
	StationID         string
	Name              string
	BroadcastLanguage string
	Active            bool
	QueryFromSD       bool
	Logo              *StationLogo
	LastModified      int64
}

// StationLogo is provider metadata attached to a station. Only the
// link is cached; the image payload is not downloaded.
type StationLogo struct {
	URI    string
	Width  int
	Height int
	MD5    string
}

// ScheduleIndexEntry records the remote state of one station's
// schedule for one day as of the last check. Rows are created by the
// reconciler only, never speculatively.
type ScheduleIndexEntry struct {
	ID           int64
	StationID    string
	StartDate    Date
	MD5          string
	LastModified int64
}

// ScheduleEntry is a single program airing. Entries exist only under a
// ScheduleIndexEntry and are fully replaced whenever the parent digest
// changes.
type ScheduleEntry struct {
	ID              int64
	StationID       string
	ScheduleIndexID int64
	ProgramID       string
	Airtime         int64
	Duration        int
	AudioProperties string
	VideoProperties string
}

// ProgramRecord holds the cached detail for one distinct program,
// shared across all airings. List-valued fields (genres, cast, crew)
// are stored tab-joined, with "name|role" sub-entries where a role is
// known.
type ProgramRecord struct {
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
	LastAccess       int64
}

// Artwork is one cached image link for a program. The payload column
// is reserved; only the link metadata is populated.
type Artwork struct {
	ID        int64
	ProgramID string
	URI       string
	Aspect    string
	Caption   string
	Width     int
	Height    int
	Data      []byte
}
