package database

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/denisAlshanov/mediagrab/internal/models"
)

// MemoryDB keeps history in process memory. Records are lost on restart.
type MemoryDB struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.Acquisition
	seq     map[uuid.UUID]int
	next    int
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		records: make(map[uuid.UUID]models.Acquisition),
		seq:     make(map[uuid.UUID]int),
	}
}

func (m *MemoryDB) SaveAcquisition(ctx context.Context, acq *models.Acquisition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seq[acq.ID]; !ok {
		m.seq[acq.ID] = m.next
		m.next++
	}
	m.records[acq.ID] = cloneAcquisition(*acq)
	return nil
}

func (m *MemoryDB) GetAcquisition(ctx context.Context, id uuid.UUID) (*models.Acquisition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	out := cloneAcquisition(record)
	return &out, nil
}

func (m *MemoryDB) ListAcquisitions(ctx context.Context, opts models.PaginationOptions) ([]models.Acquisition, int, error) {
	opts = opts.Normalize()

	m.mu.RLock()
	all := make([]models.Acquisition, 0, len(m.records))
	for _, record := range m.records {
		all = append(all, record)
	}
	seq := make(map[uuid.UUID]int, len(m.seq))
	for id, n := range m.seq {
		seq[id] = n
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return seq[all[i].ID] > seq[all[j].ID]
	})

	total := len(all)
	start := opts.Offset()
	if start >= total {
		return []models.Acquisition{}, total, nil
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	page := make([]models.Acquisition, 0, end-start)
	for _, record := range all[start:end] {
		page = append(page, cloneAcquisition(record))
	}
	return page, total, nil
}

func (m *MemoryDB) DeleteAcquisition(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	delete(m.seq, id)
	return nil
}

func (m *MemoryDB) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryDB) Close(ctx context.Context) error {
	return nil
}

func cloneAcquisition(a models.Acquisition) models.Acquisition {
	if a.Attempts != nil {
		a.Attempts = append(a.Attempts[:0:0], a.Attempts...)
	}
	return a
}
