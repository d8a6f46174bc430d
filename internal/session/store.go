// Package session persists conversations in PostgreSQL: session metadata
// plus an append-only, sequence-numbered log of canonical turns.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helpline-ai/helpline/internal/provider"
)

// ErrNotFound indicates the session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is conversation metadata; the turns live in session_turns.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DB is the pgx surface the store needs, satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is safe for concurrent use. Turn appends are serialized per session
// by a row lock, so sequence numbers never collide.
type Store struct {
	db     DB
	logger *slog.Logger
}

func NewStore(db DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Create starts a new session.
func (s *Store) Create(ctx context.Context, title string) (*Session, error) {
	sess := &Session{ID: uuid.New(), Title: title}

	const q = `
		INSERT INTO sessions (id, title)
		VALUES ($1, $2)
		RETURNING created_at, updated_at`
	if err := s.db.QueryRow(ctx, q, sess.ID, sess.Title).Scan(&sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID)
	return sess, nil
}

// Get returns one session's metadata.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess := &Session{ID: id}

	const q = `SELECT title, created_at, updated_at FROM sessions WHERE id = $1`
	err := s.db.QueryRow(ctx, q, id).Scan(&sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// List returns sessions ordered by most recent activity.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Session, error) {
	const q = `
		SELECT id, title, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and its turns (CASCADE).
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.logger.Debug("deleted session", "id", id)
	return nil
}

// DeleteAll removes every session and reports how many were deleted.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("deleting sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AppendTurns appends turns to a session in one transaction. The session
// row is locked first so concurrent appends to the same session cannot
// interleave sequence numbers.
func (s *Store) AppendTurns(ctx context.Context, id uuid.UUID, turns []provider.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("locking session %s: %w", id, err)
	}

	var maxSeq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), -1) FROM session_turns WHERE session_id = $1`, id).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("reading max sequence: %w", err)
	}

	for i, turn := range turns {
		payload, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshaling turn %d: %w", i, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO session_turns (session_id, seq, turn) VALUES ($1, $2, $3)`,
			id, maxSeq+1+i, payload)
		if err != nil {
			return fmt.Errorf("inserting turn %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE sessions SET updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("appended turns", "session_id", id, "count", len(turns))
	return nil
}

// History returns all turns of a session in append order.
func (s *Store) History(ctx context.Context, id uuid.UUID) ([]provider.Turn, error) {
	const q = `SELECT turn FROM session_turns WHERE session_id = $1 ORDER BY seq`

	rows, err := s.db.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", id, err)
	}
	defer rows.Close()

	var turns []provider.Turn
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		var turn provider.Turn
		if err := json.Unmarshal(payload, &turn); err != nil {
			return nil, fmt.Errorf("unmarshaling turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return turns, nil
}
