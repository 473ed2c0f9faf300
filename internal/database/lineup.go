package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tvheim/epgdb/internal/domain"
)

// LineupRepo persists the mirrored lineup set.
type LineupRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewLineupRepo(log zerolog.Logger, db *DB) *LineupRepo {
	return &LineupRepo{
		log: log.With().Str("repo", "lineup").Logger(),
		db:  db,
	}
}

// List returns all cached lineups.
func (r *LineupRepo) List(ctx context.Context) ([]domain.Lineup, error) {
	queryBuilder := r.db.squirrel.
		Select("lineup_id", "name", "uri", "modified").
		From("lineups")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("List")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var lineups []domain.Lineup
	for rows.Next() {
		var l domain.Lineup
		if err := rows.Scan(&l.LineupID, &l.Name, &l.URI, &l.Modified); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		lineups = append(lineups, l)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return lineups, nil
}

// Upsert inserts or updates a lineup row.
func (r *LineupRepo) Upsert(ctx context.Context, l domain.Lineup) error {
	queryBuilder := r.db.squirrel.
		Insert("lineups").
		Columns("lineup_id", "name", "uri", "modified").
		Values(l.LineupID, l.Name, l.URI, l.Modified).
		Suffix("ON CONFLICT (lineup_id) DO UPDATE SET name = excluded.name, uri = excluded.uri, modified = excluded.modified")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Upsert")

	_, err = r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// Delete removes a lineup the account no longer subscribes to.
// Stations stay behind and are handled by the membership pass.
func (r *LineupRepo) Delete(ctx context.Context, lineupID string) error {
	queryBuilder := r.db.squirrel.
		Delete("lineups").
		Where(sq.Eq{"lineup_id": lineupID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Delete")

	_, err = r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}
