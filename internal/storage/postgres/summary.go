package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tobyv/gamenight/internal/gameserver"
)

// ErrSummaryNotFound is returned when a summary lookup yields no results.
var ErrSummaryNotFound = errors.New("session summary not found")

// ErrSummaryExists is returned when a session's summary was already stored.
var ErrSummaryExists = errors.New("session summary already exists")

// SummaryRecord is a stored session summary row.
type SummaryRecord struct {
	ID          int64
	SessionID   string
	GameType    string
	HostID      string
	Winner      string
	Rounds      int
	PlayerCount int
	StartedAt   time.Time
	EndedAt     time.Time
	CreatedAt   time.Time
}

// SummaryRepository persists completed session summaries.
type SummaryRepository struct {
	db *pgxpool.Pool
}

// NewSummaryRepository creates a SummaryRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSummaryRepository(db *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Append inserts a summary for a completed session.
//
// Precondition: s.SessionID must be non-empty.
// Postcondition: The summary is durably stored, or a non-nil error is returned.
func (r *SummaryRepository) Append(ctx context.Context, s gameserver.Summary) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO session_summaries
		   (session_id, game_type, host_id, winner, rounds, player_count, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.SessionID, s.GameType, s.HostID, s.Winner, s.Rounds, s.PlayerCount, s.StartedAt, s.EndedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("session %s: %w", s.SessionID, ErrSummaryExists)
		}
		return fmt.Errorf("inserting session summary: %w", err)
	}
	return nil
}

// GetBySessionID returns the stored summary for the given session.
//
// Postcondition: Returns the record, or ErrSummaryNotFound if no summary
// exists for the session.
func (r *SummaryRepository) GetBySessionID(ctx context.Context, sessionID string) (SummaryRecord, error) {
	var rec SummaryRecord
	err := r.db.QueryRow(ctx,
		`SELECT id, session_id, game_type, host_id, winner, rounds, player_count,
		        started_at, ended_at, created_at
		 FROM session_summaries
		 WHERE session_id = $1`,
		sessionID,
	).Scan(&rec.ID, &rec.SessionID, &rec.GameType, &rec.HostID, &rec.Winner,
		&rec.Rounds, &rec.PlayerCount, &rec.StartedAt, &rec.EndedAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SummaryRecord{}, ErrSummaryNotFound
		}
		return SummaryRecord{}, fmt.Errorf("querying session summary: %w", err)
	}
	return rec, nil
}

// ListRecent returns up to limit summaries ordered by most recently ended.
//
// Precondition: limit must be > 0.
func (r *SummaryRepository) ListRecent(ctx context.Context, limit int) ([]SummaryRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, game_type, host_id, winner, rounds, player_count,
		        started_at, ended_at, created_at
		 FROM session_summaries
		 ORDER BY ended_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying session summaries: %w", err)
	}
	defer rows.Close()

	var recs []SummaryRecord
	for rows.Next() {
		var rec SummaryRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.GameType, &rec.HostID, &rec.Winner,
			&rec.Rounds, &rec.PlayerCount, &rec.StartedAt, &rec.EndedAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning session summary: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session summaries: %w", err)
	}
	return recs, nil
}
