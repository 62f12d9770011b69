// Package session holds the single active batch of fetched emails, keyed by
// the small integer handles the operator uses in chat commands.
package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/halcyondesk/mailroom/pkg/graphmail"
)

// ErrNotFound means the handle does not exist in the current batch. Handles
// are only valid relative to the most recent fetch.
var ErrNotFound = errors.New("no email with that handle in the current batch")

// Entry is one email in the active batch together with the latest AI draft
// for it. Draft is empty until a suggestion has been requested. Generation
// identifies the batch the entry was read from; SetDraft refuses writes
// against any other generation.
type Entry struct {
	Handle     int
	Generation uint64
	Email      graphmail.Email
	Draft      string
}

// Store maps handles to entries. A fetch replaces the whole batch at once;
// readers see either the full old batch or the full new one, never a mix.
type Store struct {
	mu         sync.RWMutex
	generation uint64
	entries    map[int]Entry
}

func NewStore() *Store {
	return &Store{entries: map[int]Entry{}}
}

// Replace discards the prior batch and assigns dense handles 1..N in input
// order. Returns the batch size.
func (s *Store) Replace(emails []graphmail.Email) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	next := make(map[int]Entry, len(emails))
	for i, email := range emails {
		handle := i + 1
		next[handle] = Entry{Handle: handle, Generation: s.generation, Email: email}
	}
	s.entries = next

	return len(next)
}

func (s *Store) Get(handle int) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[handle]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// SetDraft records the latest AI draft for a handle. generation must match
// the batch the caller read the entry from: a draft produced against an
// email from a superseded batch must not attach to whatever email holds the
// same handle now.
func (s *Store) SetDraft(handle int, generation uint64, draft string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[handle]
	if !ok || entry.Generation != generation {
		return ErrNotFound
	}
	entry.Draft = draft
	s.entries[handle] = entry
	return nil
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Handles returns the current batch's handles in ascending order.
func (s *Store) Handles() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]int, 0, len(s.entries))
	for handle := range s.entries {
		handles = append(handles, handle)
	}
	sort.Ints(handles)
	return handles
}

// Snapshot returns the whole batch ordered by handle. Used by readers that
// must not interleave with a concurrent Replace.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Handle < entries[j].Handle })
	return entries
}
