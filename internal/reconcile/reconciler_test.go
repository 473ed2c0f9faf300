package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tvheim/epgdb/internal/database"
	"github.com/tvheim/epgdb/internal/domain"
)

// fakeProvider is a scripted in-memory ProviderClient. Every fetch is
// counted so tests can assert that unchanged digests suppress the
// expensive calls.
type fakeProvider struct {
	mu sync.Mutex

	lineups  []domain.Lineup
	stations map[string][]domain.Station // by lineup URI
	digests  map[string]domain.ScheduleDigest
	airings  map[string][]domain.ScheduleAiring
	details  map[string]domain.ProgramDetail
	art      map[string]*domain.ArtworkLink

	digestErr map[string]error

	stationCalls  int
	scheduleCalls int
	detailCalls   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		stations:  make(map[string][]domain.Station),
		digests:   make(map[string]domain.ScheduleDigest),
		airings:   make(map[string][]domain.ScheduleAiring),
		details:   make(map[string]domain.ProgramDetail),
		art:       make(map[string]*domain.ArtworkLink),
		digestErr: make(map[string]error),
	}
}

func dayKey(stationID string, day domain.Date) string {
	return fmt.Sprintf("%s/%d", stationID, int(day))
}

func (f *fakeProvider) Authenticate(ctx context.Context) error { return nil }

func (f *fakeProvider) FetchLineups(ctx context.Context) ([]domain.Lineup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Lineup(nil), f.lineups...), nil
}

func (f *fakeProvider) FetchStations(ctx context.Context, lineupURI string) ([]domain.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stationCalls++
	return append([]domain.Station(nil), f.stations[lineupURI]...), nil
}

func (f *fakeProvider) FetchScheduleDigest(ctx context.Context, stationID string, day domain.Date) (domain.ScheduleDigest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.digestErr[dayKey(stationID, day)]; ok {
		return domain.ScheduleDigest{}, err
	}
	d, ok := f.digests[dayKey(stationID, day)]
	if !ok {
		return domain.ScheduleDigest{}, domain.ErrNoSchedule
	}
	return d, nil
}

func (f *fakeProvider) FetchSchedule(ctx context.Context, stationID string, day domain.Date) ([]domain.ScheduleAiring, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduleCalls++
	return append([]domain.ScheduleAiring(nil), f.airings[dayKey(stationID, day)]...), nil
}

func (f *fakeProvider) FetchProgramDigest(ctx context.Context, programID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.details[programID].MD5, nil
}

func (f *fakeProvider) FetchProgramDetail(ctx context.Context, programID string) (domain.ProgramDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	d, ok := f.details[programID]
	if !ok {
		return domain.ProgramDetail{}, &domain.UnitFetchError{Unit: programID, Err: errors.New("unknown program")}
	}
	return d, nil
}

func (f *fakeProvider) FetchArtworkLink(ctx context.Context, programID string) (*domain.ArtworkLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.art[programID], nil
}

type harness struct {
	provider  *fakeProvider
	db        *database.DB
	lineups   *database.LineupRepo
	stations  *database.StationRepo
	schedules *database.ScheduleRepo
	programs  *database.ProgramRepo
	queryDays int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := zerolog.Nop()
	db, err := database.NewDB(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	return &harness{
		provider:  newFakeProvider(),
		db:        db,
		lineups:   database.NewLineupRepo(log, db),
		stations:  database.NewStationRepo(log, db),
		schedules: database.NewScheduleRepo(log, db),
		programs:  database.NewProgramRepo(log, db),
		queryDays: 2,
	}
}

func (h *harness) run(t *testing.T) (*domain.RunSummary, error) {
	t.Helper()
	r := New(zerolog.Nop(), h.provider, h.lineups, h.stations, h.schedules, h.programs, h.queryDays, 2)
	return r.Run(context.Background())
}

// seed sets up one lineup with two stations, schedules for station S1
// on both window days and two programs.
func (h *harness) seed() {
	const uri = "/20141201/lineups/TEST-LINEUP"
	h.provider.lineups = []domain.Lineup{
		{LineupID: "TEST-LINEUP", Name: "Test Lineup", URI: uri, Modified: 100},
	}
	h.provider.stations[uri] = []domain.Station{
		{StationID: "S1", Name: "One TV", BroadcastLanguage: "en"},
		{StationID: "S2", Name: "Two TV", BroadcastLanguage: "en"},
	}

	today := domain.Today()
	h.provider.digests[dayKey("S1", today)] = domain.ScheduleDigest{MD5: "day0-v1", LastModified: 100}
	h.provider.digests[dayKey("S1", today.Add(1))] = domain.ScheduleDigest{MD5: "day1-v1", LastModified: 100}
	h.provider.airings[dayKey("S1", today)] = []domain.ScheduleAiring{
		{ProgramID: "P1", MD5: "p1-v1", Airtime: today.Time().Unix(), Duration: 3600},
		{ProgramID: "P2", MD5: "p2-v1", Airtime: today.Time().Unix() + 3600, Duration: 1800},
	}
	h.provider.airings[dayKey("S1", today.Add(1))] = []domain.ScheduleAiring{
		{ProgramID: "P1", MD5: "p1-v1", Airtime: today.Add(1).Time().Unix(), Duration: 3600},
	}
	h.provider.details["P1"] = domain.ProgramDetail{ProgramID: "P1", MD5: "p1-v1", Title: "Show One"}
	h.provider.details["P2"] = domain.ProgramDetail{ProgramID: "P2", MD5: "p2-v1", Title: "Show Two"}
}

// syncAndEnable performs the first run that discovers stations, then
// flags S1 for querying and runs again so schedules are fetched.
func (h *harness) syncAndEnable(t *testing.T) *domain.RunSummary {
	t.Helper()
	ctx := context.Background()

	_, err := h.run(t)
	require.NoError(t, err)
	require.NoError(t, h.stations.SetQuery(ctx, "S1", true))

	summary, err := h.run(t)
	require.NoError(t, err)
	return summary
}

func TestRunInitialSync(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx := context.Background()

	summary, err := h.run(t)
	require.NoError(t, err)

	assert.True(t, summary.LineupsChanged)
	assert.Equal(t, 1, summary.Lineups.Updated)

	s1, err := h.stations.Get(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, s1)
	assert.True(t, s1.Active)
	assert.False(t, s1.QueryFromSD)

	// Nothing is flagged for querying yet, so no schedules were read.
	assert.Zero(t, summary.ScheduleDays.Total())
	assert.Zero(t, h.provider.scheduleCalls)
}

func TestRunFetchesEnabledStations(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx := context.Background()

	summary := h.syncAndEnable(t)

	assert.Equal(t, 2, summary.ScheduleDays.Updated)
	assert.Equal(t, 2, summary.Programs.Updated)
	assert.Empty(t, summary.Failures)

	today := domain.Today()
	idx, err := h.schedules.GetIndex(ctx, "S1", today)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, "day0-v1", idx.MD5)

	entries, err := h.schedules.EntriesForIndex(ctx, idx.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	p1, err := h.programs.Get(ctx, "P1")
	require.NoError(t, err)
	require.NotNil(t, p1)
	assert.Equal(t, "Show One", p1.Title)
}

func TestRunIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seed()

	h.syncAndEnable(t)
	scheduleCalls := h.provider.scheduleCalls
	stationCalls := h.provider.stationCalls
	detailCalls := h.provider.detailCalls

	summary, err := h.run(t)
	require.NoError(t, err)

	assert.False(t, summary.LineupsChanged)
	assert.Zero(t, summary.ScheduleDays.Updated)
	assert.Equal(t, 2, summary.ScheduleDays.Skipped)
	assert.Zero(t, summary.Programs.Updated)

	// Unchanged digests must suppress every payload fetch.
	assert.Equal(t, scheduleCalls, h.provider.scheduleCalls)
	assert.Equal(t, stationCalls, h.provider.stationCalls)
	assert.Equal(t, detailCalls, h.provider.detailCalls)
}

func TestStationLeavingLineupIsSoftDeleted(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx := context.Background()

	h.syncAndEnable(t)
	require.NoError(t, h.stations.SetQuery(ctx, "S2", true))

	// S2 drops out of the lineup upstream.
	const uri = "/20141201/lineups/TEST-LINEUP"
	h.provider.stations[uri] = h.provider.stations[uri][:1]
	h.provider.lineups[0].Modified = 200

	summary, err := h.run(t)
	require.NoError(t, err)

	s2, err := h.stations.Get(ctx, "S2")
	require.NoError(t, err)
	require.NotNil(t, s2)
	assert.False(t, s2.Active, "station should be deactivated, not deleted")
	assert.True(t, s2.QueryFromSD, "user intent must survive deactivation")

	require.Len(t, summary.DanglingStations, 1)
	assert.Equal(t, "S2", summary.DanglingStations[0].StationID)

	// S1 is untouched.
	s1, err := h.stations.Get(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, s1.Active)
}

func TestSentinelDayIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx := context.Background()

	today := domain.Today()
	delete(h.provider.digests, dayKey("S1", today.Add(1)))

	summary := h.syncAndEnable(t)

	assert.Equal(t, 1, summary.ScheduleDays.Updated)
	assert.Equal(t, 1, summary.ScheduleDays.Invalid)
	assert.Empty(t, summary.Failures)

	idx, err := h.schedules.GetIndex(ctx, "S1", today.Add(1))
	require.NoError(t, err)
	assert.Nil(t, idx, "no index row may be written for a day without a schedule")
}

func TestScheduleChangeReplacesDayAtomically(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx := context.Background()

	h.syncAndEnable(t)

	// The day's schedule shrinks to a single different airing.
	today := domain.Today()
	h.provider.digests[dayKey("S1", today)] = domain.ScheduleDigest{MD5: "day0-v2", LastModified: 200}
	h.provider.airings[dayKey("S1", today)] = []domain.ScheduleAiring{
		{ProgramID: "P2", MD5: "p2-v1", Airtime: today.Time().Unix() + 7200, Duration: 1800},
	}

	summary, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ScheduleDays.Updated)

	idx, err := h.schedules.GetIndex(ctx, "S1", today)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, "day0-v2", idx.MD5)

	entries, err := h.schedules.EntriesForIndex(ctx, idx.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1, "stale airings must not survive a replace")
	assert.Equal(t, "P2", entries[0].ProgramID)
}

func TestUnitFailureDoesNotAbortStage(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx := context.Background()

	today := domain.Today()
	h.provider.digestErr[dayKey("S1", today)] = &domain.UnitFetchError{
		Unit: "S1", Err: errors.New("boom"),
	}

	summary := h.syncAndEnable(t)

	assert.Equal(t, 1, summary.ScheduleDays.Failed)
	assert.Equal(t, 1, summary.ScheduleDays.Updated)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "schedule", summary.Failures[0].Stage)

	// The failed unit's cached state stands: no index row was written.
	idx, err := h.schedules.GetIndex(ctx, "S1", today)
	require.NoError(t, err)
	assert.Nil(t, idx)

	// The other day committed normally.
	idx, err = h.schedules.GetIndex(ctx, "S1", today.Add(1))
	require.NoError(t, err)
	assert.NotNil(t, idx)
}

func TestAuthErrorAbortsRun(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx := context.Background()

	_, err := h.run(t)
	require.NoError(t, err)
	require.NoError(t, h.stations.SetQuery(ctx, "S1", true))

	h.provider.digestErr[dayKey("S1", domain.Today())] = &domain.AuthError{Reason: "token expired"}

	_, err = h.run(t)
	require.Error(t, err)
	assert.True(t, domain.IsRunFatal(err))
}

func TestProgramUpdateOnDigestChange(t *testing.T) {
	h := newHarness(t)
	h.seed()
	ctx := context.Background()

	h.syncAndEnable(t)

	// P1's detail changes; the day digest changes with it because the
	// airing payload embeds the program digest.
	today := domain.Today()
	h.provider.digests[dayKey("S1", today)] = domain.ScheduleDigest{MD5: "day0-v2", LastModified: 200}
	airings := h.provider.airings[dayKey("S1", today)]
	airings[0].MD5 = "p1-v2"
	h.provider.details["P1"] = domain.ProgramDetail{ProgramID: "P1", MD5: "p1-v2", Title: "Show One Renamed"}

	summary, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Programs.Updated)

	p1, err := h.programs.Get(ctx, "P1")
	require.NoError(t, err)
	require.NotNil(t, p1)
	assert.Equal(t, "Show One Renamed", p1.Title)
	assert.Equal(t, "p1-v2", p1.MD5)
}
