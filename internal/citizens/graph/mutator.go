// Package graph keeps the relative relation of an import symmetric when a
// single citizen's relatives change.
package graph

import (
	"context"
	"fmt"
	"slices"

	"census/internal/citizens/models"
)

// Store is the slice of the import store the mutator needs.
type Store interface {
	GetCitizen(ctx context.Context, importID, citizenID int64) (*models.Citizen, error)
	UpdateCitizen(ctx context.Context, importID int64, citizen models.Citizen) error
}

// Change summarises the edges an Apply touched.
type Change struct {
	Removed []int64
	Added   []int64
}

// Edges is the number of reciprocal records rewritten.
func (c Change) Edges() int {
	return len(c.Removed) + len(c.Added)
}

type Mutator struct {
	store Store
}

func NewMutator(store Store) *Mutator {
	return &Mutator{store: store}
}

// Apply writes subject and fixes up the reverse edges of every relative that
// was dropped or added relative to oldRelatives. Reciprocal records are
// written first; subject is written last.
//
// The caller guarantees that subject does not name itself and that every new
// relative exists in the import.
func (m *Mutator) Apply(ctx context.Context, importID int64, subject models.Citizen, oldRelatives []int64) (Change, error) {
	change := Change{
		Removed: Difference(oldRelatives, subject.Relatives),
		Added:   Difference(subject.Relatives, oldRelatives),
	}

	for _, id := range change.Removed {
		if err := m.rewrite(ctx, importID, id, func(c *models.Citizen) {
			c.Relatives = slices.DeleteFunc(c.Relatives, func(r int64) bool { return r == subject.ID })
		}); err != nil {
			return Change{}, err
		}
	}
	for _, id := range change.Added {
		if err := m.rewrite(ctx, importID, id, func(c *models.Citizen) {
			if !c.HasRelative(subject.ID) {
				c.Relatives = append(c.Relatives, subject.ID)
			}
		}); err != nil {
			return Change{}, err
		}
	}

	if err := m.store.UpdateCitizen(ctx, importID, subject); err != nil {
		return Change{}, fmt.Errorf("update citizen %d: %w", subject.ID, err)
	}
	return change, nil
}

func (m *Mutator) rewrite(ctx context.Context, importID, citizenID int64, edit func(*models.Citizen)) error {
	c, err := m.store.GetCitizen(ctx, importID, citizenID)
	if err != nil {
		return fmt.Errorf("load relative %d: %w", citizenID, err)
	}
	updated := c.Clone()
	edit(&updated)
	if err := m.store.UpdateCitizen(ctx, importID, updated); err != nil {
		return fmt.Errorf("update relative %d: %w", citizenID, err)
	}
	return nil
}

// Difference returns the distinct members of a that are not in b, in the
// order they first appear in a.
func Difference(a, b []int64) []int64 {
	exclude := make(map[int64]struct{}, len(b))
	for _, id := range b {
		exclude[id] = struct{}{}
	}
	var out []int64
	for _, id := range a {
		if _, ok := exclude[id]; ok {
			continue
		}
		exclude[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SameSet reports whether a and b hold the same ids, ignoring order and
// repetition.
func SameSet(a, b []int64) bool {
	return len(Difference(a, b)) == 0 && len(Difference(b, a)) == 0
}
