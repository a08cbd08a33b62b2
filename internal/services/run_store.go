package services

import (
	"fmt"
	"sync"
	"time"

	"priceindex/internal/multilateral"
)

// IndexRun is one completed index computation
type IndexRun struct {
	ID string `json:"id"`
	// GroupID links the runs produced by one ComputeGrouped call
	GroupID     string                   `json:"group_id,omitempty"`
	GroupColumn string                   `json:"group_column,omitempty"`
	Group       string                   `json:"group,omitempty"`
	GroupSize   int                      `json:"group_size,omitempty"`
	Method      multilateral.Method      `json:"method"`
	Source      string                   `json:"source,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	DurationMS  int64                    `json:"duration_ms"`
	Table       *multilateral.IndexTable `json:"table,omitempty"`
}

// RunFilter selects runs in RunStore.List
type RunFilter struct {
	GroupID string
	Method  multilateral.Method
	// Limit caps the number of runs returned, 0 means no limit
	Limit int
}

// RunStore persists index runs
type RunStore interface {
	Save(run *IndexRun) error
	// SaveGroup stores the runs of one grouped computation, all or none
	SaveGroup(runs []*IndexRun) error
	Get(id string) (*IndexRun, error)
	// List returns matching runs, newest first
	List(filter RunFilter) ([]*IndexRun, error)
	Delete(id string) error
}

// MemoryRunStore is an in-memory RunStore that keeps at most capacity runs,
// evicting the oldest first. A grouped computation is evicted as a whole.
type MemoryRunStore struct {
	mu       sync.RWMutex
	runs     map[string]*IndexRun
	order    []string
	capacity int
}

// NewMemoryRunStore creates a store; capacity <= 0 means unbounded
func NewMemoryRunStore(capacity int) *MemoryRunStore {
	return &MemoryRunStore{
		runs:     make(map[string]*IndexRun),
		capacity: capacity,
	}
}

// Save stores a new run
func (s *MemoryRunStore) Save(run *IndexRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("%w: %s", ErrRunExists, run.ID)
	}

	s.insert(run)
	s.evict()
	return nil
}

// SaveGroup stores every run of a grouped computation or none of them
func (s *MemoryRunStore) SaveGroup(runs []*IndexRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && len(runs) > s.capacity {
		return fmt.Errorf("%w: %d groups, capacity %d", ErrGroupTooLarge, len(runs), s.capacity)
	}
	for _, run := range runs {
		if _, exists := s.runs[run.ID]; exists {
			return fmt.Errorf("%w: %s", ErrRunExists, run.ID)
		}
	}

	for _, run := range runs {
		s.insert(run)
	}
	s.evict()
	return nil
}

func (s *MemoryRunStore) insert(run *IndexRun) {
	runCopy := *run
	s.runs[run.ID] = &runCopy
	s.order = append(s.order, run.ID)
}

// evict drops the oldest entries until the store fits its capacity. When the
// oldest run belongs to a group, every run of that group goes with it.
func (s *MemoryRunStore) evict() {
	for s.capacity > 0 && len(s.order) > s.capacity {
		oldest := s.runs[s.order[0]]
		if oldest.GroupID == "" {
			delete(s.runs, oldest.ID)
			s.order = s.order[1:]
			continue
		}

		kept := s.order[:0]
		for _, id := range s.order {
			if s.runs[id].GroupID == oldest.GroupID {
				delete(s.runs, id)
				continue
			}
			kept = append(kept, id)
		}
		s.order = kept
	}
}

// Get retrieves a run by ID
func (s *MemoryRunStore) Get(id string) (*IndexRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	runCopy := *run
	return &runCopy, nil
}

// List returns runs matching the filter, newest first
func (s *MemoryRunStore) List(filter RunFilter) ([]*IndexRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*IndexRun
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]

		if filter.GroupID != "" && run.GroupID != filter.GroupID {
			continue
		}
		if filter.Method != "" && run.Method != filter.Method {
			continue
		}

		runCopy := *run
		result = append(result, &runCopy)

		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// Delete removes a run from the store
func (s *MemoryRunStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[id]; !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	delete(s.runs, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Capacity returns the maximum number of runs kept, 0 when unbounded
func (s *MemoryRunStore) Capacity() int {
	return s.capacity
}

// Len returns the number of stored runs
func (s *MemoryRunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
