package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"owner-revenue-scraper/models"
)

// SessionKey is the fixed key the authenticated browser state is stored under.
const SessionKey = "console-session"

// SessionStore loads and saves the browser session snapshot. It performs no
// expiry checks; a stale session is only noticed when the console redirects
// to its login surface.
type SessionStore struct {
	kv  KVStore
	key string
}

func NewSessionStore(kv KVStore) *SessionStore {
	return &SessionStore{kv: kv, key: SessionKey}
}

// Load returns the saved session, or (nil, nil) when none is stored.
func (s *SessionStore) Load(ctx context.Context) (*models.SessionState, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var state models.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &state, nil
}

func (s *SessionStore) Save(ctx context.Context, state *models.SessionState) error {
	if state == nil {
		return errors.New("session: save: nil state")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, raw); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Clear forgets the stored session so the next run logs in again.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}
