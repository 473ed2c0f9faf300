package database

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tvheim/epgdb/internal/domain"
)

// ScheduleRepo persists the schedule index and its airings.
type ScheduleRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewScheduleRepo(log zerolog.Logger, db *DB) *ScheduleRepo {
	return &ScheduleRepo{
		log: log.With().Str("repo", "schedule").Logger(),
		db:  db,
	}
}

// GetIndex returns the cached index entry for a station/day, or nil
// when the day has never been fetched.
func (r *ScheduleRepo) GetIndex(ctx context.Context, stationID string, day domain.Date) (*domain.ScheduleIndexEntry, error) {
	queryBuilder := r.db.squirrel.
		Select("id", "station_id", "start_date", "md5", "last_modified").
		From("schedule_index").
		Where(sq.Eq{"station_id": stationID, "start_date": int(day)})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("GetIndex")

	var e domain.ScheduleIndexEntry
	var startDate int
	err = r.db.handler.QueryRowContext(ctx, query, args...).
		Scan(&e.ID, &e.StationID, &startDate, &e.MD5, &e.LastModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error scanning row")
	}
	e.StartDate = domain.Date(startDate)

	return &e, nil
}

// ReplaceDay atomically replaces one station-day: the index row is
// inserted or updated with the new digest and every airing under it is
// deleted and re-inserted. All rows for the unit commit together or
// not at all, so a crash mid-run never leaves a partially written day.
func (r *ScheduleRepo) ReplaceDay(ctx context.Context, stationID string, day domain.Date, digest domain.ScheduleDigest, airings []domain.ScheduleAiring) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	indexBuilder := r.db.squirrel.
		Insert("schedule_index").
		Columns("station_id", "start_date", "md5", "last_modified").
		Values(stationID, int(day), digest.MD5, digest.LastModified).
		Suffix("ON CONFLICT (station_id, start_date) DO UPDATE SET md5 = excluded.md5, last_modified = excluded.last_modified")

	query, args, err := indexBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("ReplaceDay index")

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error upserting schedule index")
	}

	var indexID int64
	idQuery, idArgs, err := r.db.squirrel.
		Select("id").
		From("schedule_index").
		Where(sq.Eq{"station_id": stationID, "start_date": int(day)}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}
	if err := tx.QueryRowContext(ctx, idQuery, idArgs...).Scan(&indexID); err != nil {
		return errors.Wrap(err, "error reading schedule index id")
	}

	delQuery, delArgs, err := r.db.squirrel.
		Delete("schedule").
		Where(sq.Eq{"schedule_index_id": indexID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}
	if _, err = tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return errors.Wrap(err, "error deleting stale airings")
	}

	for _, a := range airings {
		insQuery, insArgs, err := r.db.squirrel.
			Insert("schedule").
			Columns("station_id", "schedule_index_id", "program_id", "airtime",
				"duration", "audio_properties", "video_properties").
			Values(stationID, indexID, a.ProgramID, a.Airtime,
				a.Duration, a.AudioProperties, a.VideoProperties).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "error building query")
		}
		if _, err = tx.ExecContext(ctx, insQuery, insArgs...); err != nil {
			return errors.Wrap(err, "error inserting airing")
		}
	}

	return tx.Commit()
}

// ListDays returns the cached index entries of one station in date
// order.
func (r *ScheduleRepo) ListDays(ctx context.Context, stationID string) ([]domain.ScheduleIndexEntry, error) {
	queryBuilder := r.db.squirrel.
		Select("id", "station_id", "start_date", "md5", "last_modified").
		From("schedule_index").
		Where(sq.Eq{"station_id": stationID}).
		OrderBy("start_date")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("ListDays")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var entries []domain.ScheduleIndexEntry
	for rows.Next() {
		var e domain.ScheduleIndexEntry
		var startDate int
		if err := rows.Scan(&e.ID, &e.StationID, &startDate, &e.MD5, &e.LastModified); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		e.StartDate = domain.Date(startDate)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return entries, nil
}

// EntriesForIndex returns the airings under one index entry in airtime
// order, the read contract the renderer depends on.
func (r *ScheduleRepo) EntriesForIndex(ctx context.Context, indexID int64) ([]domain.ScheduleEntry, error) {
	queryBuilder := r.db.squirrel.
		Select("id", "station_id", "schedule_index_id", "program_id", "airtime",
			"duration", "audio_properties", "video_properties").
		From("schedule").
		Where(sq.Eq{"schedule_index_id": indexID}).
		OrderBy("airtime")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("EntriesForIndex")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var entries []domain.ScheduleEntry
	for rows.Next() {
		var e domain.ScheduleEntry
		var audio, video sql.NullString
		if err := rows.Scan(&e.ID, &e.StationID, &e.ScheduleIndexID, &e.ProgramID,
			&e.Airtime, &e.Duration, &audio, &video); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		e.AudioProperties = audio.String
		e.VideoProperties = video.String
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return entries, nil
}

// MissingProgramIDs returns program identifiers referenced by airings
// but absent from the program cache.
func (r *ScheduleRepo) MissingProgramIDs(ctx context.Context) ([]string, error) {
	queryBuilder := r.db.squirrel.
		Select("DISTINCT s.program_id").
		From("schedule s").
		LeftJoin("programs p ON s.program_id = p.program_id").
		Where("p.program_id IS NULL")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Msg("MissingProgramIDs")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return ids, nil
}

// Stats returns the airing count and the oldest/newest indexed day.
func (r *ScheduleRepo) Stats(ctx context.Context) (count int, oldest, newest domain.Date, err error) {
	err = r.db.handler.QueryRowContext(ctx, "SELECT count(*) FROM schedule").Scan(&count)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "error counting airings")
	}

	var min, max sql.NullInt64
	err = r.db.handler.QueryRowContext(ctx,
		"SELECT min(start_date), max(start_date) FROM schedule_index").Scan(&min, &max)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "error reading index range")
	}

	return count, domain.Date(min.Int64), domain.Date(max.Int64), nil
}
