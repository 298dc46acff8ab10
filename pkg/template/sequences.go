package template

import "sync"

// SequenceStore holds named counters for {{sequence("name")}}.
// A fresh store is created for every module load, so counters restart
// whenever the module file is reloaded.
type SequenceStore struct {
	mu        sync.Mutex
	sequences map[string]int64
}

// NewSequenceStore creates an empty sequence store.
func NewSequenceStore() *SequenceStore {
	return &SequenceStore{sequences: make(map[string]int64)}
}

// Next returns the current value of a sequence and then increments it.
// A sequence seen for the first time starts at start.
func (s *SequenceStore) Next(name string, start int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.sequences[name]
	if !ok {
		val = start
	}
	s.sequences[name] = val + 1
	return val
}

// Reset forgets a sequence so it restarts from its start value.
func (s *SequenceStore) Reset(name string) {
	s.mu.Lock()
	delete(s.sequences, name)
	s.mu.Unlock()
}
