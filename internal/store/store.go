package store

import "sync"

// Entry is one held conversion output.
type Entry struct {
	Name string
	Data []byte
}

// Store holds converted outputs for the current batch, keyed by output name.
// It is the only state that outlives a batch call: entries disappear either
// when downloaded once via TakeOne or when the next batch clears the store.
// Readers may run concurrently with each other; Clear and Put are exclusive
// with everything else.
type Store struct {
	mu    sync.RWMutex
	items map[string][]byte
	order []string
}

// New creates an empty Store.
func New() *Store {
	return &Store{items: make(map[string][]byte)}
}

// Put stores a payload under the given output name. A name already present is
// overwritten in place (last-write-wins), keeping its original position.
func (s *Store) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[name]; !ok {
		s.order = append(s.order, name)
	}
	s.items[name] = data
}

// TakeOne returns the payload stored under name and removes the entry, so a
// second call for the same name misses. The second return value reports
// whether the name was present.
func (s *Store) TakeOne(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.items[name]
	if !ok {
		return nil, false
	}
	delete(s.items, name)

	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return data, true
}

// Entries returns a snapshot of all held outputs in insertion order. The
// entries stay in the store, so building an archive from them is repeatable
// until the next batch clears everything.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		entries = append(entries, Entry{Name: name, Data: s.items[name]})
	}

	return entries
}

// Clear drops every entry. Called when a new batch starts, which makes all
// undownloaded outputs of the previous batch unretrievable.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string][]byte)
	s.order = nil
}

// Len reports the number of held entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}
