// Package store archives sessions and transcripts in PostgreSQL. The archive
// is optional: a nil *Archive is a valid no-op store, so deployments without
// DATABASE_URL run unchanged.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRecord is one archived session row.
type SessionRecord struct {
	ID        string
	RoomName  string
	RoomURL   string
	Language  string
	ModelID   string
	VoiceID   string
	StartedAt time.Time
	EndedAt   *time.Time
}

// TranscriptRecord is one archived transcript line.
type TranscriptRecord struct {
	ID        string
	SessionID string
	Speaker   string
	Text      string
	SpokenAt  time.Time
}

// Archive persists session metadata and transcript lines.
type Archive struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Archive{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			room_name TEXT NOT NULL,
			room_url TEXT NOT NULL,
			language TEXT NOT NULL,
			model_id TEXT NOT NULL,
			voice_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			spoken_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_session_spoken ON transcripts (session_id, spoken_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// BeginSession records a new session and returns its archive id. Nil-safe.
func (a *Archive) BeginSession(ctx context.Context, rec SessionRecord) (string, error) {
	if a == nil {
		return "", nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	_, err := a.pool.Exec(ctx,
		`INSERT INTO sessions (id, room_name, room_url, language, model_id, voice_id, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.RoomName, rec.RoomURL, rec.Language, rec.ModelID, rec.VoiceID, rec.StartedAt,
	)
	if err != nil {
		return "", fmt.Errorf("archive session: %w", err)
	}
	return rec.ID, nil
}

// EndSession stamps the session's end time. Nil-safe.
func (a *Archive) EndSession(ctx context.Context, sessionID string) error {
	if a == nil || sessionID == "" {
		return nil
	}
	_, err := a.pool.Exec(ctx, `UPDATE sessions SET ended_at = now() WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("close archived session: %w", err)
	}
	return nil
}

// SaveTranscript appends one transcript line. Nil-safe.
func (a *Archive) SaveTranscript(ctx context.Context, rec TranscriptRecord) error {
	if a == nil || rec.SessionID == "" {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SpokenAt.IsZero() {
		rec.SpokenAt = time.Now().UTC()
	}
	_, err := a.pool.Exec(ctx,
		`INSERT INTO transcripts (id, session_id, speaker, text, spoken_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.SessionID, rec.Speaker, rec.Text, rec.SpokenAt,
	)
	if err != nil {
		return fmt.Errorf("archive transcript: %w", err)
	}
	return nil
}

// Transcript returns a session's lines in spoken order. Nil-safe.
func (a *Archive) Transcript(ctx context.Context, sessionID string) ([]TranscriptRecord, error) {
	if a == nil {
		return nil, nil
	}
	rows, err := a.pool.Query(ctx,
		`SELECT id, session_id, speaker, text, spoken_at
		 FROM transcripts WHERE session_id = $1 ORDER BY spoken_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var items []TranscriptRecord
	for rows.Next() {
		var r TranscriptRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Speaker, &r.Text, &r.SpokenAt); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows: %w", err)
	}
	return items, nil
}

// Close releases the pool. Nil-safe.
func (a *Archive) Close() {
	if a != nil {
		a.pool.Close()
	}
}
