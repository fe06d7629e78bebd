// Package memory provides an in-memory entry store for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

// ErrEntryNotFound is returned by Update and Delete for unknown IDs.
var ErrEntryNotFound = errors.New("entry not found")

// EntryStore keeps entries in insertion order. Unlike the SQL stores it does
// not enforce URL uniqueness on Insert; callers look up first.
type EntryStore struct {
	mu      sync.RWMutex
	idGen   leaderboard.IDGenerator
	order   []string
	entries map[string]leaderboard.Entry
}

// NewEntryStore constructs an EntryStore.
func NewEntryStore(idGen leaderboard.IDGenerator) *EntryStore {
	return &EntryStore{
		idGen:   idGen,
		entries: make(map[string]leaderboard.Entry),
	}
}

// FindByURL returns the first entry tracked under sourceURL.
func (s *EntryStore) FindByURL(_ context.Context, sourceURL string) (leaderboard.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if e := s.entries[id]; e.SourceURL == sourceURL {
			return e, true, nil
		}
	}
	return leaderboard.Entry{}, false, nil
}

// Insert stores a new entry with a generated ID.
func (s *EntryStore) Insert(_ context.Context, sourceURL string, fields leaderboard.Fields) (leaderboard.Entry, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("generate entry id: %w", err)
	}
	entry := leaderboard.Entry{ID: id, SourceURL: sourceURL}.Apply(fields)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; exists {
		return leaderboard.Entry{}, fmt.Errorf("entry id %s already exists", id)
	}
	s.entries[id] = entry
	s.order = append(s.order, id)
	return entry, nil
}

// Update overwrites the mutable fields of an entry.
func (s *EntryStore) Update(_ context.Context, id string, fields leaderboard.Fields) (leaderboard.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return leaderboard.Entry{}, ErrEntryNotFound
	}
	entry = entry.Apply(fields)
	s.entries[id] = entry
	return entry, nil
}

// Delete removes an entry by ID.
func (s *EntryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns a copy of every entry in insertion order.
func (s *EntryStore) List(_ context.Context) ([]leaderboard.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leaderboard.Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out, nil
}
