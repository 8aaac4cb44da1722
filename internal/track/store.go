package track

import (
	"fmt"
	"sort"
	"sync"
)

// Store holds the current dataset of target reports. All reads observe a
// single consistent snapshot; Load and Clear stage the replacement dataset
// outside the lock and take exclusive access only for the slice swap.
type Store struct {
	mu      sync.RWMutex
	records []Record

	// Callback for dataset change notifications (load or clear).
	onDataChanged func(Metadata)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: []Record{}}
}

// OnDataChanged sets a callback invoked after every successful Load or Clear,
// with the metadata of the new dataset. Set it before serving traffic; the
// callback runs on the loading goroutine.
func (s *Store) OnDataChanged(fn func(Metadata)) {
	s.onDataChanged = fn
}

// Load validates the batch, sorts it by timestamp and atomically replaces the
// dataset. Any invalid record rejects the whole batch and leaves the previous
// dataset untouched. An empty batch is valid and yields an empty dataset.
// Returns the metadata summary of the new dataset.
func (s *Store) Load(raw []RawRecord) (Metadata, error) {
	staged := make([]Record, 0, len(raw))
	for i, rr := range raw {
		rec, err := rr.Validate()
		if err != nil {
			return Metadata{}, fmt.Errorf("record %d: %w", i, err)
		}
		staged = append(staged, rec)
	}
	return s.replace(staged), nil
}

// LoadRecords replaces the dataset with already-validated records.
func (s *Store) LoadRecords(records []Record) Metadata {
	staged := make([]Record, len(records))
	copy(staged, records)
	return s.replace(staged)
}

// Clear atomically replaces the dataset with an empty one.
func (s *Store) Clear() {
	s.replace([]Record{})
}

// replace sorts the staged dataset and swaps it in. Sorting is stable so
// reports with equal timestamps keep their input order.
func (s *Store) replace(staged []Record) Metadata {
	sort.SliceStable(staged, func(i, j int) bool {
		return staged[i].Timestamp.Before(staged[j].Timestamp)
	})
	meta := summarize(staged)

	s.mu.Lock()
	s.records = staged
	s.mu.Unlock()

	if s.onDataChanged != nil {
		s.onDataChanged(meta)
	}
	return meta
}

// GetAll returns every record in ascending timestamp order.
func (s *Store) GetAll() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Filter applies the criteria conjunctively and returns matching records in
// ascending timestamp order. A malformed time bound is a request error; an
// empty result is not.
func (s *Store) Filter(c Criteria) ([]Record, error) {
	m, err := c.compile()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	snapshot := s.records
	s.mu.RUnlock()

	out := make([]Record, 0, len(snapshot))
	for _, rec := range snapshot {
		if m.matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Metadata computes a summary of the current dataset.
func (s *Store) Metadata() Metadata {
	s.mu.RLock()
	snapshot := s.records
	s.mu.RUnlock()
	return summarize(snapshot)
}

// Size returns the current record count.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
