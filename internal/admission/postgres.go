package admission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// PostgresStore reads booking-owned session rows. The call layer never
// writes this table; completion and billing transitions belong to the
// booking domain.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) SessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, room_id, tutor_id, student_id, tutor_token, student_token,
		        scheduled_start, scheduled_end, expires_at, status, paid
		 FROM lesson_sessions
		 WHERE tutor_token=$1 OR student_token=$1`,
		token,
	)

	var sess domain.Session
	err := row.Scan(
		&sess.ID,
		&sess.RoomID,
		&sess.TutorID,
		&sess.StudentID,
		&sess.TutorToken,
		&sess.StudentToken,
		&sess.ScheduledStart,
		&sess.ScheduledEnd,
		&sess.ExpiresAt,
		&sess.Status,
		&sess.Paid,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUnknownToken
	}
	if err != nil {
		return nil, fmt.Errorf("session by token: %w", err)
	}
	return &sess, nil
}
