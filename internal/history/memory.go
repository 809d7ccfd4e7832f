package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the newest maxRecords analyses in process.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]Record
	order      []string // insertion order, oldest first
	feedback   map[string]Feedback
	maxRecords int
}

// NewMemoryStore creates a bounded store; maxRecords <= 0 means 10000.
func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords <= 0 {
		maxRecords = 10000
	}
	return &MemoryStore{
		records:    make(map[string]Record),
		feedback:   make(map[string]Feedback),
		maxRecords: maxRecords,
	}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	rec.Result = append([]byte(nil), rec.Result...)
	s.records[rec.ID] = rec
	for len(s.order) > s.maxRecords {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
		delete(s.feedback, oldest)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Result = append([]byte(nil), rec.Result...)
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	limit = clampLimit(limit)
	s.mu.RLock()
	out := make([]Record, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.records[s.order[i]])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveFeedback(_ context.Context, fb Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[fb.AnalysisID]; !ok {
		return ErrNotFound
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now().UTC()
	}
	s.feedback[fb.AnalysisID] = fb
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Total: len(s.records), ByLabel: map[string]int{}}
	for _, r := range s.records {
		st.ByLabel[r.FinalLabel]++
	}
	for _, fb := range s.feedback {
		st.Feedback++
		if fb.IsCorrect {
			st.Correct++
		} else {
			st.Incorrect++
		}
	}
	st.Accuracy = accuracy(st.Correct, st.Feedback)
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }
