// Package postgres provides a PostgreSQL-backed implementation of
// [store.Store] using a single pgx connection pool.
//
// The schema is created on first connect via [New]; message ordering relies
// on the BIGSERIAL id, so RecentMessages and Messages are stable even when
// two appends land within the same timestamp tick.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hkuriyama/hanako/internal/store"
)

// Schema is the SQL DDL for the session store. Executed by [New]; safe to
// re-run.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id         BIGSERIAL    PRIMARY KEY,
    title      TEXT         NOT NULL DEFAULT '',
    created_ts TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
    id         BIGSERIAL    PRIMARY KEY,
    session_id BIGINT       NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    role       TEXT         NOT NULL,
    text       TEXT         NOT NULL,
    ts         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages (session_id, id);

CREATE TABLE IF NOT EXISTS characters (
    id                 BIGSERIAL PRIMARY KEY,
    name               TEXT      NOT NULL,
    system_prompt      TEXT      NOT NULL DEFAULT '',
    avatar_url         TEXT      NOT NULL DEFAULT '',
    voice_id           TEXT      NOT NULL DEFAULT '',
    tts_provider       TEXT      NOT NULL DEFAULT '',
    personality_traits JSONB     NOT NULL DEFAULT '[]'
);

INSERT INTO characters (id, name, system_prompt)
VALUES (1, 'Hanako', 'You are a friendly anime companion.')
ON CONFLICT (id) DO NOTHING;

SELECT setval('characters_id_seq', GREATEST((SELECT MAX(id) FROM characters), 1));
`

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a [store.Store] backed by PostgreSQL. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, pings it, and ensures the schema
// (including the seeded default character) exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// CreateSession implements [store.Store.CreateSession].
func (s *Store) CreateSession(ctx context.Context, title string) (store.Session, error) {
	const q = `INSERT INTO sessions (title) VALUES ($1) RETURNING id, title, created_ts`
	var sess store.Session
	if err := s.pool.QueryRow(ctx, q, title).Scan(&sess.ID, &sess.Title, &sess.CreatedAt); err != nil {
		return store.Session{}, fmt.Errorf("postgres: create session: %w", err)
	}
	return sess, nil
}

// EnsureSession implements [store.Store.EnsureSession].
func (s *Store) EnsureSession(ctx context.Context, id int64, title string) error {
	const q = `
		INSERT INTO sessions (id, title) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, q, id, title); err != nil {
		return fmt.Errorf("postgres: ensure session: %w", err)
	}
	// Keep the sequence ahead of explicitly-chosen ids.
	const bump = `SELECT setval('sessions_id_seq', GREATEST((SELECT MAX(id) FROM sessions), 1))`
	if _, err := s.pool.Exec(ctx, bump); err != nil {
		return fmt.Errorf("postgres: bump session sequence: %w", err)
	}
	return nil
}

// ListSessions implements [store.Store.ListSessions].
func (s *Store) ListSessions(ctx context.Context) ([]store.Session, error) {
	const q = `
		SELECT s.id, s.title, s.created_ts, COUNT(m.id)
		FROM   sessions s
		LEFT JOIN messages m ON s.id = m.session_id
		GROUP  BY s.id
		ORDER  BY s.created_ts DESC, s.id DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Session, error) {
		var sess store.Session
		var count int64
		if err := row.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &count); err != nil {
			return store.Session{}, err
		}
		sess.MessageCount = int(count)
		return sess, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan sessions: %w", err)
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return sessions, nil
}

// RenameSession implements [store.Store.RenameSession].
func (s *Store) RenameSession(ctx context.Context, id int64, title string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return fmt.Errorf("postgres: rename session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}

// DeleteSession implements [store.Store.DeleteSession]. Messages cascade via
// the foreign key.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}

// AppendMessage implements [store.Store.AppendMessage].
func (s *Store) AppendMessage(ctx context.Context, sessionID int64, role, text string) (store.Message, error) {
	const q = `
		INSERT INTO messages (session_id, role, text)
		VALUES ($1, $2, $3)
		RETURNING id, session_id, role, text, ts`
	var m store.Message
	err := s.pool.QueryRow(ctx, q, sessionID, role, text).
		Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &m.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.Message{}, store.ErrSessionNotFound
		}
		return store.Message{}, fmt.Errorf("postgres: append message: %w", err)
	}
	return m, nil
}

// RecentMessages implements [store.Store.RecentMessages]. The inner query
// selects the newest rows; the outer one restores chronological order.
func (s *Store) RecentMessages(ctx context.Context, sessionID int64, limit int) ([]store.Message, error) {
	if limit <= 0 {
		return []store.Message{}, nil
	}
	const q = `
		SELECT id, session_id, role, text, ts FROM (
			SELECT id, session_id, role, text, ts
			FROM   messages
			WHERE  session_id = $1
			ORDER  BY id DESC
			LIMIT  $2
		) recent
		ORDER BY id ASC`
	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent messages: %w", err)
	}
	return collectMessages(rows)
}

// Messages implements [store.Store.Messages].
func (s *Store) Messages(ctx context.Context, sessionID int64) ([]store.Message, error) {
	const q = `
		SELECT id, session_id, role, text, ts
		FROM   messages
		WHERE  session_id = $1
		ORDER  BY id ASC`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: messages: %w", err)
	}
	return collectMessages(rows)
}

// CreateCharacter implements [store.Store.CreateCharacter].
func (s *Store) CreateCharacter(ctx context.Context, c store.Character) (store.Character, error) {
	traits, err := json.Marshal(emptySlice(c.PersonalityTraits))
	if err != nil {
		return store.Character{}, fmt.Errorf("postgres: marshal traits: %w", err)
	}
	const q = `
		INSERT INTO characters (name, system_prompt, avatar_url, voice_id, tts_provider, personality_traits)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err = s.pool.QueryRow(ctx, q,
		c.Name, c.SystemPrompt, c.AvatarURL, c.VoiceID, c.TTSProvider, traits,
	).Scan(&c.ID)
	if err != nil {
		return store.Character{}, fmt.Errorf("postgres: create character: %w", err)
	}
	return c, nil
}

// GetCharacter implements [store.Store.GetCharacter].
func (s *Store) GetCharacter(ctx context.Context, id int64) (store.Character, error) {
	const q = `
		SELECT id, name, system_prompt, avatar_url, voice_id, tts_provider, personality_traits
		FROM   characters
		WHERE  id = $1`
	c, err := scanCharacter(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Character{}, fmt.Errorf("%w: id %d", store.ErrCharacterNotFound, id)
		}
		return store.Character{}, fmt.Errorf("postgres: get character: %w", err)
	}
	return c, nil
}

// ListCharacters implements [store.Store.ListCharacters].
func (s *Store) ListCharacters(ctx context.Context) ([]store.Character, error) {
	const q = `
		SELECT id, name, system_prompt, avatar_url, voice_id, tts_provider, personality_traits
		FROM   characters
		ORDER  BY id ASC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list characters: %w", err)
	}
	chars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Character, error) {
		return scanCharacter(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan characters: %w", err)
	}
	if chars == nil {
		chars = []store.Character{}
	}
	return chars, nil
}

// UpdateCharacter implements [store.Store.UpdateCharacter] by building a
// SET clause from the non-nil fields of upd.
func (s *Store) UpdateCharacter(ctx context.Context, id int64, upd store.CharacterUpdate) error {
	sets := []string{}
	args := []any{}
	next := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil {
		next("name", *upd.Name)
	}
	if upd.SystemPrompt != nil {
		next("system_prompt", *upd.SystemPrompt)
	}
	if upd.AvatarURL != nil {
		next("avatar_url", *upd.AvatarURL)
	}
	if upd.VoiceID != nil {
		next("voice_id", *upd.VoiceID)
	}
	if upd.TTSProvider != nil {
		next("tts_provider", *upd.TTSProvider)
	}
	if upd.PersonalityTraits != nil {
		traits, err := json.Marshal(emptySlice(*upd.PersonalityTraits))
		if err != nil {
			return fmt.Errorf("postgres: marshal traits: %w", err)
		}
		next("personality_traits", traits)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE characters SET %s WHERE id = $%d", joinSets(sets), len(args))
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres: update character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", store.ErrCharacterNotFound, id)
	}
	return nil
}

// DeleteCharacter implements [store.Store.DeleteCharacter].
func (s *Store) DeleteCharacter(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", store.ErrCharacterNotFound, id)
	}
	return nil
}

// ---- helpers ----------------------------------------------------------------

// collectMessages scans pgx rows into a slice of Message values.
func collectMessages(rows pgx.Rows) ([]store.Message, error) {
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Message, error) {
		var m store.Message
		err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan messages: %w", err)
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return msgs, nil
}

// scanCharacter scans one character row, decoding the JSONB traits column.
func scanCharacter(row pgx.Row) (store.Character, error) {
	var (
		c      store.Character
		traits []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.SystemPrompt, &c.AvatarURL, &c.VoiceID, &c.TTSProvider, &traits); err != nil {
		return store.Character{}, err
	}
	if len(traits) > 0 {
		if err := json.Unmarshal(traits, &c.PersonalityTraits); err != nil {
			return store.Character{}, fmt.Errorf("decode personality_traits: %w", err)
		}
	}
	if c.PersonalityTraits == nil {
		c.PersonalityTraits = []string{}
	}
	return c, nil
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23503"
	}
	return false
}
