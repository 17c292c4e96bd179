package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iterahealth/activation-engine/internal/domain/caremanager"
)

type CareManagerRepository struct {
	mu       sync.RWMutex
	managers map[uuid.UUID]*caremanager.CareManager
}

func NewCareManagerRepository() *CareManagerRepository {
	return &CareManagerRepository{managers: make(map[uuid.UUID]*caremanager.CareManager)}
}

// Seed loads the reference availability calendar. It replaces any existing
// entries and is intended for startup and tests.
func (r *CareManagerRepository) Seed(managers []*caremanager.CareManager) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.managers = make(map[uuid.UUID]*caremanager.CareManager, len(managers))
	for _, m := range managers {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		r.managers[m.ID] = cloneManager(m)
	}
}

func (r *CareManagerRepository) GetByID(_ context.Context, id uuid.UUID) (*caremanager.CareManager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.managers[id]
	if !ok {
		return nil, caremanager.ErrCareManagerNotFound
	}
	return cloneManager(m), nil
}

func (r *CareManagerRepository) GetByName(_ context.Context, name string) (*caremanager.CareManager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.managers {
		if m.Name == name {
			return cloneManager(m), nil
		}
	}
	return nil, caremanager.ErrCareManagerNotFound
}

func (r *CareManagerRepository) List(_ context.Context) ([]*caremanager.CareManager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*caremanager.CareManager, 0, len(r.managers))
	for _, m := range r.managers {
		out = append(out, cloneManager(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneManager(m *caremanager.CareManager) *caremanager.CareManager {
	c := *m
	c.Availability = append([]caremanager.AvailabilitySlot(nil), m.Availability...)
	return &c
}

// DefaultRoster is the reference care team with its weekly availability,
// used when no Postgres store is configured.
func DefaultRoster() []*caremanager.CareManager {
	weekdays := func(start, end string) []caremanager.AvailabilitySlot {
		var slots []caremanager.AvailabilitySlot
		for day := time.Monday; day <= time.Friday; day++ {
			slots = append(slots, caremanager.AvailabilitySlot{Weekday: day, Start: start, End: end})
		}
		return slots
	}

	return []*caremanager.CareManager{
		{Name: "Ana Smith", Availability: weekdays("09:00", "12:00")},
		{Name: "John Doe", Availability: weekdays("13:00", "17:00")},
		{Name: "Emily White", Availability: weekdays("09:00", "17:00")},
		{Name: "Michael Brown", Availability: []caremanager.AvailabilitySlot{
			{Weekday: time.Tuesday, Start: "10:00", End: "15:00"},
			{Weekday: time.Thursday, Start: "10:00", End: "15:00"},
		}},
	}
}
