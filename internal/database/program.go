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

// ProgramRepo persists program detail and attached artwork links.
type ProgramRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewProgramRepo(log zerolog.Logger, db *DB) *ProgramRepo {
	return &ProgramRepo{
		log: log.With().Str("repo", "program").Logger(),
		db:  db,
	}
}

// GetDigest returns the cached content digest for a program, or ""
// when the program is not cached.
func (r *ProgramRepo) GetDigest(ctx context.Context, programID string) (string, error) {
	queryBuilder := r.db.squirrel.
		Select("md5").
		From("programs").
		Where(sq.Eq{"program_id": programID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return "", errors.Wrap(err, "error building query")
	}

	var md5 string
	err = r.db.handler.QueryRowContext(ctx, query, args...).Scan(&md5)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", errors.Wrap(err, "error scanning row")
	}

	return md5, nil
}

// Upsert stores one program and replaces its artwork links in a
// single transaction.
func (r *ProgramRepo) Upsert(ctx context.Context, p domain.ProgramRecord, art *domain.ArtworkLink) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	queryBuilder := r.db.squirrel.
		Insert("programs").
		Columns("program_id", "md5", "title", "episode_title", "description_short",
			"description_long", "genres", "cast_names", "crew_names", "entity_type",
			"show_type", "movie_year", "last_access").
		Values(p.ProgramID, p.MD5, p.Title, p.EpisodeTitle, p.DescriptionShort,
			p.DescriptionLong, p.Genres, p.Cast, p.Crew, p.EntityType,
			p.ShowType, p.MovieYear, now).
		Suffix(`ON CONFLICT (program_id) DO UPDATE SET
			md5 = excluded.md5,
			title = excluded.title,
			episode_title = excluded.episode_title,
			description_short = excluded.description_short,
			description_long = excluded.description_long,
			genres = excluded.genres,
			cast_names = excluded.cast_names,
			crew_names = excluded.crew_names,
			entity_type = excluded.entity_type,
			show_type = excluded.show_type,
			movie_year = excluded.movie_year,
			last_access = excluded.last_access`)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Upsert")

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error upserting program")
	}

	delQuery, delArgs, err := r.db.squirrel.
		Delete("artwork").
		Where(sq.Eq{"program_id": p.ProgramID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}
	if _, err = tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return errors.Wrap(err, "error deleting artwork")
	}

	if art != nil {
		artQuery, artArgs, err := r.db.squirrel.
			Insert("artwork").
			Columns("program_id", "uri", "aspect", "caption", "width", "height").
			Values(p.ProgramID, art.URI, art.Aspect, art.Caption, art.Width, art.Height).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "error building query")
		}
		if _, err = tx.ExecContext(ctx, artQuery, artArgs...); err != nil {
			return errors.Wrap(err, "error inserting artwork")
		}
	}

	return tx.Commit()
}

// Get returns one program and bumps its last-access stamp. Returns nil
// when the program is not cached.
func (r *ProgramRepo) Get(ctx context.Context, programID string) (*domain.ProgramRecord, error) {
	queryBuilder := r.db.squirrel.
		Select("program_id", "md5", "title", "episode_title", "description_short",
			"description_long", "genres", "cast_names", "crew_names", "entity_type",
			"show_type", "movie_year", "last_access").
		From("programs").
		Where(sq.Eq{"program_id": programID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	var p domain.ProgramRecord
	var title, episodeTitle, descShort, descLong sql.NullString
	var genres, cast, crew, entityType, showType sql.NullString
	var movieYear sql.NullInt64

	err = r.db.handler.QueryRowContext(ctx, query, args...).
		Scan(&p.ProgramID, &p.MD5, &title, &episodeTitle, &descShort,
			&descLong, &genres, &cast, &crew, &entityType,
			&showType, &movieYear, &p.LastAccess)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error scanning row")
	}

	p.Title = title.String
	p.EpisodeTitle = episodeTitle.String
	p.DescriptionShort = descShort.String
	p.DescriptionLong = descLong.String
	p.Genres = genres.String
	p.Cast = cast.String
	p.Crew = crew.String
	p.EntityType = entityType.String
	p.ShowType = showType.String
	p.MovieYear = int(movieYear.Int64)

	touchQuery, touchArgs, err := r.db.squirrel.
		Update("programs").
		Set("last_access", time.Now().Unix()).
		Where(sq.Eq{"program_id": programID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}
	if _, err = r.db.handler.ExecContext(ctx, touchQuery, touchArgs...); err != nil {
		return nil, errors.Wrap(err, "error updating last access")
	}

	return &p, nil
}

// GetArtwork returns the artwork links for a program.
func (r *ProgramRepo) GetArtwork(ctx context.Context, programID string) ([]domain.Artwork, error) {
	queryBuilder := r.db.squirrel.
		Select("id", "program_id", "uri", "aspect", "caption", "width", "height").
		From("artwork").
		Where(sq.Eq{"program_id": programID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var artworks []domain.Artwork
	for rows.Next() {
		var a domain.Artwork
		var aspect, caption sql.NullString
		var width, height sql.NullInt64
		if err := rows.Scan(&a.ID, &a.ProgramID, &a.URI, &aspect, &caption, &width, &height); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		a.Aspect = aspect.String
		a.Caption = caption.String
		a.Width = int(width.Int64)
		a.Height = int(height.Int64)
		artworks = append(artworks, a)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return artworks, nil
}

// Count returns the number of cached programs.
func (r *ProgramRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.handler.QueryRow("SELECT count(*) FROM programs").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "error counting programs")
	}
	return n, nil
}
