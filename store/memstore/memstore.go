// Package memstore is an in-process account.Store for tests, the load
// generator and single-binary demos. Records are copied on the way in and
// out, so callers never share memory with the store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nemoserver/authcore/account"
)

type Store struct {
	mu         sync.RWMutex
	byID       map[string]*account.Record
	byUsername map[string]string
}

var _ account.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		byID:       make(map[string]*account.Record),
		byUsername: make(map[string]string),
	}
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*account.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, account.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (*account.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[userID]
	if !ok {
		return nil, account.ErrNotFound
	}
	return rec.Clone(), nil
}

// SaveUser upserts by UserID. CreatedAt of an existing record is kept.
func (s *Store) SaveUser(_ context.Context, rec *account.Record) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("memstore: record without user id")
	}
	if !rec.Role.Valid() {
		return fmt.Errorf("memstore: %w: %d", account.ErrUnknownRole, uint8(rec.Role))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byUsername[rec.Username]; ok && owner != rec.UserID {
		return fmt.Errorf("%w: %s", account.ErrUsernameTaken, rec.Username)
	}

	stored := rec.Clone()
	if prev, ok := s.byID[rec.UserID]; ok {
		stored.CreatedAt = prev.CreatedAt
		if prev.Username != rec.Username {
			delete(s.byUsername, prev.Username)
		}
	}
	s.byID[rec.UserID] = stored
	s.byUsername[rec.Username] = rec.UserID
	return nil
}

// ListUsers returns summaries ordered by username.
func (s *Store) ListUsers(context.Context) ([]account.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]account.Summary, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Len reports the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
