package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tvheim/epgdb/internal/database"
	"github.com/tvheim/epgdb/internal/domain"
)

// Reconciler brings the local cache into agreement with remote state
// in four strictly ordered stages: lineups, station membership,
// schedule days, program detail. Each stage short-circuits on
// unchanged digests; later stages only see units that survived the
// earlier ones in the same run.
type Reconciler struct {
	log         zerolog.Logger
	client      domain.ProviderClient
	lineups     *database.LineupRepo
	stations    *database.StationRepo
	schedules   *database.ScheduleRepo
	programs    *database.ProgramRepo
	queryDays   int
	maxInFlight int
}

func New(log zerolog.Logger, client domain.ProviderClient, lineups *database.LineupRepo,
	stations *database.StationRepo, schedules *database.ScheduleRepo,
	programs *database.ProgramRepo, queryDays, maxInFlight int) *Reconciler {
	return &Reconciler{
		log:         log.With().Str("module", "reconcile").Logger(),
		client:      client,
		lineups:     lineups,
		stations:    stations,
		schedules:   schedules,
		programs:    programs,
		queryDays:   queryDays,
		maxInFlight: maxInFlight,
	}
}

// Run executes one full reconciliation pass. Per-unit failures are
// accumulated in the summary; only authentication and top-level
// transport failures abort the run.
func (r *Reconciler) Run(ctx context.Context) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{}

	remote, err := r.syncLineups(ctx, summary)
	if err != nil {
		return summary, err
	}

	if summary.LineupsChanged {
		if err := r.syncMembership(ctx, remote, summary); err != nil {
			return summary, err
		}
	}

	dangling, err := r.stations.ListDanglingQuery(ctx)
	if err != nil {
		return summary, err
	}
	summary.DanglingStations = dangling
	for _, s := range dangling {
		r.log.Warn().Str("station", s.StationID).Str("name", s.Name).
			Msg("station flagged for querying is no longer in any lineup")
	}

	touched, err := r.syncSchedules(ctx, summary)
	if err != nil {
		return summary, err
	}

	if err := r.syncPrograms(ctx, touched, summary); err != nil {
		return summary, err
	}

	return summary, nil
}

// syncLineups is stage 1: diff the remote lineup set against the cache
// by identifier and modification timestamp. Gone lineups are removed,
// new and changed ones are written back. LineupsChanged gates stage 2.
func (r *Reconciler) syncLineups(ctx context.Context, summary *domain.RunSummary) ([]domain.Lineup, error) {
	remote, err := r.client.FetchLineups(ctx)
	if err != nil {
		// Stage 1 has no per-unit granularity: any failure here is
		// provider-wide and fatal.
		return nil, err
	}

	local, err := r.lineups.List(ctx)
	if err != nil {
		return nil, err
	}

	localByID := make(map[string]domain.Lineup, len(local))
	for _, l := range local {
		localByID[l.LineupID] = l
	}

	for _, l := range remote {
		state := domain.ChangeNew
		if cached, ok := localByID[l.LineupID]; ok {
			if cached.Modified == l.Modified {
				state = domain.ChangeUnchanged
			} else {
				state = domain.ChangeChanged
			}
			delete(localByID, l.LineupID)
		}

		r.log.Debug().Str("lineup", l.LineupID).Stringer("state", state).Msg("lineup compared")

		if state == domain.ChangeUnchanged {
			summary.Lineups.Skipped++
			continue
		}

		if err := r.lineups.Upsert(ctx, l); err != nil {
			return nil, err
		}
		summary.Lineups.Updated++
	}

	// Whatever is left in localByID vanished from the account.
	for id := range localByID {
		r.log.Info().Str("lineup", id).Msg("lineup gone from account, removing")
		if err := r.lineups.Delete(ctx, id); err != nil {
			return nil, err
		}
		summary.Lineups.Updated++
	}

	summary.LineupsChanged = summary.Lineups.Updated > 0
	return remote, nil
}

// syncMembership is stage 2: re-derive every station's active flag
// from the fresh membership lists of all subscribed lineups. Stations
// are soft-deleted only; query_from_sd is user intent and is never
// touched here.
func (r *Reconciler) syncMembership(ctx context.Context, remote []domain.Lineup, summary *domain.RunSummary) error {
	// Fetch every member list before flipping any flag, so that a
	// failed lineup fetch leaves all previous active flags in place.
	members := make(map[string][]domain.Station, len(remote))
	for _, l := range remote {
		stations, err := r.client.FetchStations(ctx, l.URI)
		if err != nil {
			if domain.IsRunFatal(err) {
				return err
			}
			summary.AddFailure("membership", l.LineupID, err)
			continue
		}
		members[l.LineupID] = stations
	}

	if len(members) < len(remote) {
		r.log.Warn().Int("failed", len(remote)-len(members)).
			Msg("membership fetch incomplete, keeping previous active flags")
		return nil
	}

	if err := r.stations.DeactivateAll(ctx); err != nil {
		return err
	}

	for _, l := range remote {
		for _, s := range members[l.LineupID] {
			if err := r.stations.UpsertMember(ctx, s); err != nil {
				return err
			}
		}
		r.log.Info().Str("lineup", l.LineupID).Int("stations", len(members[l.LineupID])).
			Msg("lineup membership applied")
	}

	return nil
}

// stationDay is one stage-3 unit.
type stationDay struct {
	stationID string
	day       domain.Date
}

func (u stationDay) String() string {
	return fmt.Sprintf("%s/%s", u.stationID, u.day)
}

// syncSchedules is stage 3: for every active, query-enabled station
// and every day in the query window, compare the remote digest with
// the cached schedule index and replace the day's airings on mismatch.
// Units are independent and run concurrently under the in-flight
// limit; each unit commits atomically. Returns the digests of all
// programs referenced by rewritten days.
func (r *Reconciler) syncSchedules(ctx context.Context, summary *domain.RunSummary) (map[string]string, error) {
	stations, err := r.stations.ListActiveQuery(ctx)
	if err != nil {
		return nil, err
	}

	var units []stationDay
	start := domain.Today()
	for _, s := range stations {
		for i := 0; i < r.queryDays; i++ {
			units = append(units, stationDay{stationID: s.StationID, day: start.Add(i)})
		}
	}

	r.log.Info().Int("stations", len(stations)).Int("units", len(units)).Msg("checking schedules")

	touched := make(map[string]string)
	var mu sync.Mutex

	err = r.forEachUnit(ctx, len(units), func(i int) error {
		unit := units[i]

		fail := func(err error) error {
			if domain.IsRunFatal(err) {
				return err
			}
			mu.Lock()
			summary.ScheduleDays.Failed++
			summary.AddFailure("schedule", unit.String(), err)
			mu.Unlock()
			return nil
		}

		digest, err := r.client.FetchScheduleDigest(ctx, unit.stationID, unit.day)
		if errors.Is(err, domain.ErrNoSchedule) {
			mu.Lock()
			summary.ScheduleDays.Invalid++
			mu.Unlock()
			return nil
		}
		if err != nil {
			return fail(err)
		}

		cached, err := r.schedules.GetIndex(ctx, unit.stationID, unit.day)
		if err != nil {
			return fail(err)
		}

		if cached != nil && cached.MD5 == digest.MD5 {
			mu.Lock()
			summary.ScheduleDays.Skipped++
			mu.Unlock()
			return nil
		}

		state := domain.ChangeNew
		if cached != nil {
			state = domain.ChangeChanged
		}
		r.log.Info().Str("unit", unit.String()).Stringer("state", state).Msg("schedule changed")

		airings, err := r.client.FetchSchedule(ctx, unit.stationID, unit.day)
		if err != nil {
			return fail(err)
		}

		if err := r.schedules.ReplaceDay(ctx, unit.stationID, unit.day, digest, airings); err != nil {
			return fail(err)
		}

		mu.Lock()
		summary.ScheduleDays.Updated++
		for _, a := range airings {
			touched[a.ProgramID] = a.MD5
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c := summary.ScheduleDays; c.Failed > 0 && c.Failed == c.Total() {
		return nil, errors.New("every schedule unit failed")
	}

	return touched, nil
}

// syncPrograms is stage 4: fetch detail for programs referenced by
// rewritten schedule days plus any program an airing references that
// the cache has never seen. Digest-equal programs are skipped. The
// artwork link is fetched best-effort alongside each program.
func (r *Reconciler) syncPrograms(ctx context.Context, touched map[string]string, summary *domain.RunSummary) error {
	missing, err := r.schedules.MissingProgramIDs(ctx)
	if err != nil {
		return err
	}

	idSet := make(map[string]struct{}, len(touched)+len(missing))
	for id := range touched {
		idSet[id] = struct{}{}
	}
	for _, id := range missing {
		idSet[id] = struct{}{}
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	r.log.Info().Int("programs", len(ids)).Msg("checking programs")

	var mu sync.Mutex

	err = r.forEachUnit(ctx, len(ids), func(i int) error {
		id := ids[i]

		fail := func(err error) error {
			if domain.IsRunFatal(err) {
				return err
			}
			mu.Lock()
			summary.Programs.Failed++
			summary.AddFailure("program", id, err)
			mu.Unlock()
			return nil
		}

		remoteDigest, err := r.client.FetchProgramDigest(ctx, id)
		if err != nil {
			return fail(err)
		}

		cachedDigest, err := r.programs.GetDigest(ctx, id)
		if err != nil {
			return fail(err)
		}

		if cachedDigest != "" && cachedDigest == remoteDigest {
			mu.Lock()
			summary.Programs.Skipped++
			mu.Unlock()
			return nil
		}

		detail, err := r.client.FetchProgramDetail(ctx, id)
		if err != nil {
			return fail(err)
		}

		art, err := r.client.FetchArtworkLink(ctx, id)
		if err != nil {
			// Artwork is an extra; a failed lookup must not lose the
			// program detail already in hand.
			r.log.Warn().Err(err).Str("program", id).Msg("artwork lookup failed")
			art = nil
		}

		record := domain.ProgramRecord{
			ProgramID:        detail.ProgramID,
			MD5:              detail.MD5,
			Title:            detail.Title,
			EpisodeTitle:     detail.EpisodeTitle,
			DescriptionShort: detail.DescriptionShort,
			DescriptionLong:  detail.DescriptionLong,
			Genres:           detail.Genres,
			Cast:             detail.Cast,
			Crew:             detail.Crew,
			EntityType:       detail.EntityType,
			ShowType:         detail.ShowType,
			MovieYear:        detail.MovieYear,
		}

		if err := r.programs.Upsert(ctx, record, art); err != nil {
			return fail(err)
		}

		mu.Lock()
		summary.Programs.Updated++
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	if c := summary.Programs; c.Failed > 0 && c.Failed == c.Total() {
		return errors.New("every program unit failed")
	}

	return nil
}

// forEachUnit runs fn for indices 0..total-1 with bounded concurrency.
// A non-nil return from fn is run-fatal: dispatch stops and the first
// such error is returned. Dispatch also stops on context cancellation;
// units already in flight finish their atomic commit first.
func (r *Reconciler) forEachUnit(ctx context.Context, total int, fn func(i int) error) error {
	sem := make(chan struct{}, r.maxInFlight)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatal error

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		mu.Lock()
		abort := fatal != nil
		mu.Unlock()
		if abort {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(i); err != nil {
				mu.Lock()
				if fatal == nil {
					fatal = err
				}
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	if fatal != nil {
		return fatal
	}
	return ctx.Err()
}
