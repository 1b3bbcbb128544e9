package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"census/internal/citizens/models"
)

// InMemory keeps imports in process memory. Citizens are deep-copied on the
// way in and out so callers never share state with the store.
type InMemory struct {
	mu      sync.RWMutex
	imports map[int64]map[int64]models.Citizen
}

func NewInMemory() *InMemory {
	return &InMemory{imports: make(map[int64]map[int64]models.Citizen)}
}

func (s *InMemory) ListImportIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.imports)), nil
}

func (s *InMemory) ImportExists(_ context.Context, importID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.imports[importID]
	return ok, nil
}

// CreateImport stores citizens under max(existing)+1.
func (s *InMemory) CreateImport(_ context.Context, citizens []models.Citizen) (int64, error) {
	if err := checkUnique(citizens); err != nil {
		return 0, fmt.Errorf("create import: %w", err)
	}

	byID := make(map[int64]models.Citizen, len(citizens))
	for _, c := range citizens {
		byID[c.ID] = c.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var next int64 = 1
	for id := range s.imports {
		if id >= next {
			next = id + 1
		}
	}
	s.imports[next] = byID
	return next, nil
}

func (s *InMemory) GetCitizen(_ context.Context, importID, citizenID int64) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.imports[importID][citizenID]
	if !ok {
		return nil, ErrNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (s *InMemory) ListCitizens(_ context.Context, importID int64) ([]models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID, ok := s.imports[importID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]models.Citizen, 0, len(byID))
	for _, c := range byID {
		out = append(out, c.Clone())
	}
	sortByID(out)
	return out, nil
}

func (s *InMemory) CitizenExists(_ context.Context, importID, citizenID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.imports[importID][citizenID]
	return ok, nil
}

// UpdateCitizen replaces an existing citizen. Membership is fixed, so an
// unknown citizen is ErrNotFound.
func (s *InMemory) UpdateCitizen(_ context.Context, importID int64, citizen models.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.imports[importID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := byID[citizen.ID]; !ok {
		return ErrNotFound
	}
	byID[citizen.ID] = citizen.Clone()
	return nil
}

func (s *InMemory) Ping(context.Context) error {
	return nil
}
