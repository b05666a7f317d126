package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/tokenledger/internal/models"
	"github.com/baharkarakas/tokenledger/internal/repository"
)

type sessionsRepo struct{ pool *pgxpool.Pool }

const sessionCols = `id, user_id, status, cost, voice, locale, meta, started_at, ended_at`

func scanSession(row rowScanner) (models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Status, &s.Cost, &s.Voice, &s.Locale, &s.Meta, &s.StartedAt, &s.EndedAt)
	return s, err
}

func (r *sessionsRepo) GetByID(ctx context.Context, id string) (models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM broadcast_sessions WHERE id=$1`, id))
	return s, mapErr(err)
}

func (r *sessionsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionCols+`
		   FROM broadcast_sessions
		  WHERE user_id=$1
		  ORDER BY started_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) End(ctx context.Context, id string, at time.Time) (models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`UPDATE broadcast_sessions SET status='ENDED', ended_at=$2
		  WHERE id=$1 AND status='ACTIVE'
		  RETURNING `+sessionCols,
		id, at,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// ya zaten ENDED ya da hiç yok
		return r.GetByID(ctx, id)
	}
	return s, mapErr(err)
}

var _ repository.Sessions = (*sessionsRepo)(nil)
