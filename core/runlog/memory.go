package runlog

import (
	"context"
	"sync"

	"github.com/kilianp07/offgrid-dt/core/model"
)

// MemoryStore keeps records in memory. Useful for short runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []model.StepRecord
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(_ context.Context, rec model.StepRecord) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]model.StepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []model.StepRecord
	for _, r := range m.records {
		if q.full(len(res)) {
			break
		}
		if q.match(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

// Records returns a copy of everything appended so far.
func (m *MemoryStore) Records() []model.StepRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.StepRecord(nil), m.records...)
}

func (m *MemoryStore) Location() string { return "memory" }

func (m *MemoryStore) Close() error { return nil }
