// Package store defines the durable record of sessions, characters, and
// their ordered messages.
//
// Two implementations exist: a PostgreSQL store (subpackage postgres) for
// deployments and a thread-safe in-memory store (subpackage memstore) for
// tests and DB-less runs. Both satisfy [Store].
package store

import (
	"context"
	"errors"
	"time"
)

// DefaultCharacterID is the reserved character that ships with every
// deployment. It can be edited but never deleted; the guard lives at the
// API boundary, not in the storage layer.
const DefaultCharacterID = 1

var (
	// ErrSessionNotFound is returned when a session id does not exist.
	ErrSessionNotFound = errors.New("store: session not found")

	// ErrCharacterNotFound is returned when a character id does not exist.
	ErrCharacterNotFound = errors.New("store: character not found")
)

// Role values for [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is one conversation thread.
type Session struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_ts"`

	// MessageCount is populated by ListSessions only.
	MessageCount int `json:"message_count"`
}

// Message is a single utterance within a session. Messages are immutable
// once written and append-only within a session; they are removed only when
// their session is deleted.
type Message struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"ts"`
}

// Character is a persona the companion can play: a system prompt plus
// optional avatar and voice overrides.
type Character struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	SystemPrompt      string   `json:"system_prompt"`
	AvatarURL         string   `json:"avatar_url"`
	VoiceID           string   `json:"voice_id"`
	TTSProvider       string   `json:"tts_provider"`
	PersonalityTraits []string `json:"personality_traits"`
}

// CharacterUpdate carries a partial character edit. Nil fields are left
// unchanged.
type CharacterUpdate struct {
	Name              *string
	SystemPrompt      *string
	AvatarURL         *string
	VoiceID           *string
	TTSProvider       *string
	PersonalityTraits *[]string
}

// Store is the durable record consumed by the chat orchestrator and the
// HTTP layer. Implementations must be safe for concurrent use.
//
// Ordering invariant: RecentMessages returns at most limit messages, the
// most recent ones, in chronological order (oldest of the slice first);
// Messages returns the full history in chronological order.
type Store interface {
	// CreateSession creates a session with the given title and returns it.
	CreateSession(ctx context.Context, title string) (Session, error)

	// EnsureSession creates the session with the given id and title if it
	// does not exist yet. Existing sessions are left untouched.
	EnsureSession(ctx context.Context, id int64, title string) error

	// ListSessions returns all sessions, newest first, with message counts.
	ListSessions(ctx context.Context) ([]Session, error)

	// RenameSession updates a session's title.
	RenameSession(ctx context.Context, id int64, title string) error

	// DeleteSession removes a session and all its messages.
	DeleteSession(ctx context.Context, id int64) error

	// AppendMessage appends one message to a session and returns it.
	AppendMessage(ctx context.Context, sessionID int64, role, text string) (Message, error)

	// RecentMessages returns the limit most recent messages of a session in
	// chronological order. limit <= 0 returns an empty slice.
	RecentMessages(ctx context.Context, sessionID int64, limit int) ([]Message, error)

	// Messages returns a session's full history in chronological order.
	Messages(ctx context.Context, sessionID int64) ([]Message, error)

	// CreateCharacter inserts a character and returns it with its id set.
	CreateCharacter(ctx context.Context, c Character) (Character, error)

	// GetCharacter returns a character by id, or ErrCharacterNotFound.
	GetCharacter(ctx context.Context, id int64) (Character, error)

	// ListCharacters returns all characters ordered by id.
	ListCharacters(ctx context.Context) ([]Character, error)

	// UpdateCharacter applies a partial edit.
	UpdateCharacter(ctx context.Context, id int64, upd CharacterUpdate) error

	// DeleteCharacter removes a character. Callers are responsible for the
	// default-character guard.
	DeleteCharacter(ctx context.Context, id int64) error
}
