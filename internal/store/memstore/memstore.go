// Package memstore provides a thread-safe, in-memory implementation of
// [store.Store]. It backs tests and DB-less runs; state is lost on restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hkuriyama/hanako/internal/store"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ store.Store = (*MemStore)(nil)

// MemStore is an in-memory [store.Store]. Use [New] to obtain one with the
// default character seeded, matching what the postgres migration does.
type MemStore struct {
	mu         sync.RWMutex
	sessions   map[int64]store.Session
	messages   map[int64][]store.Message // keyed by session id, insertion order
	characters map[int64]store.Character

	nextSessionID   int64
	nextMessageID   int64
	nextCharacterID int64
}

// New returns an initialised MemStore with the default character present.
func New() *MemStore {
	s := &MemStore{
		sessions:        make(map[int64]store.Session),
		messages:        make(map[int64][]store.Message),
		characters:      make(map[int64]store.Character),
		nextSessionID:   1,
		nextMessageID:   1,
		nextCharacterID: 2, // id 1 is the seeded default
	}
	s.characters[store.DefaultCharacterID] = store.Character{
		ID:           store.DefaultCharacterID,
		Name:         "Hanako",
		SystemPrompt: "You are a friendly anime companion.",
	}
	return s
}

// CreateSession implements [store.Store.CreateSession].
func (s *MemStore) CreateSession(_ context.Context, title string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSessionID
	s.nextSessionID++
	sess := store.Session{ID: id, Title: title, CreatedAt: time.Now()}
	s.sessions[id] = sess
	return sess, nil
}

// EnsureSession implements [store.Store.EnsureSession].
func (s *MemStore) EnsureSession(_ context.Context, id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return nil
	}
	s.sessions[id] = store.Session{ID: id, Title: title, CreatedAt: time.Now()}
	if id >= s.nextSessionID {
		s.nextSessionID = id + 1
	}
	return nil
}

// ListSessions implements [store.Store.ListSessions].
func (s *MemStore) ListSessions(_ context.Context) ([]store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sess.MessageCount = len(s.messages[sess.ID])
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// RenameSession implements [store.Store.RenameSession].
func (s *MemStore) RenameSession(_ context.Context, id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrSessionNotFound
	}
	sess.Title = title
	s.sessions[id] = sess
	return nil
}

// DeleteSession implements [store.Store.DeleteSession]. Messages cascade.
func (s *MemStore) DeleteSession(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return store.ErrSessionNotFound
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

// AppendMessage implements [store.Store.AppendMessage].
func (s *MemStore) AppendMessage(_ context.Context, sessionID int64, role, text string) (store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return store.Message{}, store.ErrSessionNotFound
	}
	msg := store.Message{
		ID:        s.nextMessageID,
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.nextMessageID++
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return msg, nil
}

// RecentMessages implements [store.Store.RecentMessages].
func (s *MemStore) RecentMessages(_ context.Context, sessionID int64, limit int) ([]store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	if limit <= 0 || len(msgs) == 0 {
		return []store.Message{}, nil
	}
	if limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]store.Message, limit)
	copy(out, msgs[len(msgs)-limit:])
	return out, nil
}

// Messages implements [store.Store.Messages].
func (s *MemStore) Messages(_ context.Context, sessionID int64) ([]store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

// CreateCharacter implements [store.Store.CreateCharacter].
func (s *MemStore) CreateCharacter(_ context.Context, c store.Character) (store.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextCharacterID
	s.nextCharacterID++
	c.PersonalityTraits = append([]string(nil), c.PersonalityTraits...)
	s.characters[c.ID] = c
	return c, nil
}

// GetCharacter implements [store.Store.GetCharacter].
func (s *MemStore) GetCharacter(_ context.Context, id int64) (store.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.characters[id]
	if !ok {
		return store.Character{}, fmt.Errorf("%w: id %d", store.ErrCharacterNotFound, id)
	}
	return c, nil
}

// ListCharacters implements [store.Store.ListCharacters].
func (s *MemStore) ListCharacters(_ context.Context) ([]store.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Character, 0, len(s.characters))
	for _, c := range s.characters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateCharacter implements [store.Store.UpdateCharacter].
func (s *MemStore) UpdateCharacter(_ context.Context, id int64, upd store.CharacterUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.characters[id]
	if !ok {
		return fmt.Errorf("%w: id %d", store.ErrCharacterNotFound, id)
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.SystemPrompt != nil {
		c.SystemPrompt = *upd.SystemPrompt
	}
	if upd.AvatarURL != nil {
		c.AvatarURL = *upd.AvatarURL
	}
	if upd.VoiceID != nil {
		c.VoiceID = *upd.VoiceID
	}
	if upd.TTSProvider != nil {
		c.TTSProvider = *upd.TTSProvider
	}
	if upd.PersonalityTraits != nil {
		c.PersonalityTraits = append([]string(nil), *upd.PersonalityTraits...)
	}
	s.characters[id] = c
	return nil
}

// DeleteCharacter implements [store.Store.DeleteCharacter].
func (s *MemStore) DeleteCharacter(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.characters[id]; !ok {
		return fmt.Errorf("%w: id %d", store.ErrCharacterNotFound, id)
	}
	delete(s.characters, id)
	return nil
}
