package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tvheim/epgdb/internal/domain"
)

// StationRepo persists stations. Stations are never deleted: the
// membership pass flips the active flag, the user owns query_from_sd.
type StationRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewStationRepo(log zerolog.Logger, db *DB) *StationRepo {
	return &StationRepo{
		log: log.With().Str("repo", "station").Logger(),
		db:  db,
	}
}

// DeactivateAll clears the active flag on every station. The
// membership pass re-activates the ones still present in a lineup.
func (r *StationRepo) DeactivateAll(ctx context.Context) error {
	queryBuilder := r.db.squirrel.
		Update("stations").
		Set("active", 0)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Msg("DeactivateAll")

	_, err = r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// UpsertMember marks a station active as part of a lineup membership
// pass, creating the row with query_from_sd=0 if it was never seen
// before. An existing row keeps its query_from_sd value.
func (r *StationRepo) UpsertMember(ctx context.Context, s domain.Station) error {
	now := time.Now().Unix()

	var logoURI, logoMD5 interface{}
	var logoWidth, logoHeight interface{}
	if s.Logo != nil {
		logoURI = s.Logo.URI
		logoWidth = s.Logo.Width
		logoHeight = s.Logo.Height
		logoMD5 = s.Logo.MD5
	}

	queryBuilder := r.db.squirrel.
		Insert("stations").
		Columns("station_id", "name", "broadcast_language", "active", "query_from_sd",
			"logo_uri", "logo_width", "logo_height", "logo_md5", "last_modified").
		Values(s.StationID, s.Name, s.BroadcastLanguage, 1, 0,
			logoURI, logoWidth, logoHeight, logoMD5, now).
		Suffix(`ON CONFLICT (station_id) DO UPDATE SET
			name = excluded.name,
			broadcast_language = excluded.broadcast_language,
			active = 1,
			logo_uri = COALESCE(excluded.logo_uri, stations.logo_uri),
			logo_width = COALESCE(excluded.logo_width, stations.logo_width),
			logo_height = COALESCE(excluded.logo_height, stations.logo_height),
			logo_md5 = COALESCE(excluded.logo_md5, stations.logo_md5),
			last_modified = excluded.last_modified`)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("UpsertMember")

	_, err = r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// SetQuery sets or clears the user's query intent for a station.
func (r *StationRepo) SetQuery(ctx context.Context, stationID string, query bool) error {
	queryBuilder := r.db.squirrel.
		Update("stations").
		Set("query_from_sd", boolToInt(query)).
		Where(sq.Eq{"station_id": stationID})

	q, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", q).Interface("args", args).Msg("SetQuery")

	res, err := r.db.handler.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error reading affected rows")
	}
	if n == 0 {
		return errors.Errorf("station %s not found", stationID)
	}

	return nil
}

// ListActiveQuery returns stations that are both active and flagged
// for querying, the scope of the schedule stage.
func (r *StationRepo) ListActiveQuery(ctx context.Context) ([]domain.Station, error) {
	return r.list(ctx, sq.Eq{"active": 1, "query_from_sd": 1})
}

// ListDanglingQuery returns stations the user wants queried that are
// no longer a member of any subscribed lineup.
func (r *StationRepo) ListDanglingQuery(ctx context.Context) ([]domain.Station, error) {
	return r.list(ctx, sq.Eq{"active": 0, "query_from_sd": 1})
}

// ListAll returns every cached station ordered by name.
func (r *StationRepo) ListAll(ctx context.Context) ([]domain.Station, error) {
	return r.list(ctx, nil)
}

func (r *StationRepo) list(ctx context.Context, pred interface{}) ([]domain.Station, error) {
	queryBuilder := r.db.squirrel.
		Select("station_id", "name", "broadcast_language", "active", "query_from_sd",
			"logo_uri", "logo_width", "logo_height", "logo_md5", "last_modified").
		From("stations").
		OrderBy("name")

	if pred != nil {
		queryBuilder = queryBuilder.Where(pred)
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("list")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var stations []domain.Station
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return stations, nil
}

// Get returns a single station, or nil when unknown.
func (r *StationRepo) Get(ctx context.Context, stationID string) (*domain.Station, error) {
	queryBuilder := r.db.squirrel.
		Select("station_id", "name", "broadcast_language", "active", "query_from_sd",
			"logo_uri", "logo_width", "logo_height", "logo_md5", "last_modified").
		From("stations").
		Where(sq.Eq{"station_id": stationID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Get")

	row := r.db.handler.QueryRowContext(ctx, query, args...)
	s, err := scanStation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &s, nil
}

// Counts returns station totals for the status report.
func (r *StationRepo) Counts(ctx context.Context) (total, active, query, dangling int, err error) {
	row := r.db.handler.QueryRowContext(ctx, `SELECT
		count(*),
		sum(active),
		sum(query_from_sd),
		sum(CASE WHEN query_from_sd = 1 AND active = 0 THEN 1 ELSE 0 END)
		FROM stations`)

	var sumActive, sumQuery, sumDangling sql.NullInt64
	if err = row.Scan(&total, &sumActive, &sumQuery, &sumDangling); err != nil {
		return 0, 0, 0, 0, errors.Wrap(err, "error counting stations")
	}

	return total, int(sumActive.Int64), int(sumQuery.Int64), int(sumDangling.Int64), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStation(row rowScanner) (domain.Station, error) {
	var s domain.Station
	var lang sql.NullString
	var active, query int
	var logoURI, logoMD5 sql.NullString
	var logoWidth, logoHeight sql.NullInt64

	err := row.Scan(&s.StationID, &s.Name, &lang, &active, &query,
		&logoURI, &logoWidth, &logoHeight, &logoMD5, &s.LastModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, errors.Wrap(err, "error scanning row")
	}

	s.BroadcastLanguage = lang.String
	s.Active = active != 0
	s.QueryFromSD = query != 0
	if logoURI.Valid {
		s.Logo = &domain.StationLogo{
			URI:    logoURI.String,
			Width:  int(logoWidth.Int64),
			Height: int(logoHeight.Int64),
			MD5:    logoMD5.String,
		}
	}

	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
