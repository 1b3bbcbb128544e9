// Package store holds the import store backends: in-memory, PostgreSQL and
// Redis. All of them return sentinel errors for missing imports or citizens.
package store

import (
	"cmp"
	"fmt"
	"slices"

	"census/internal/citizens/models"
	"census/pkg/platform/sentinel"
)

var (
	ErrNotFound    = sentinel.ErrNotFound
	ErrConflict    = sentinel.ErrConflict
	ErrUnavailable = sentinel.ErrUnavailable
)

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func sortByID(citizens []models.Citizen) {
	slices.SortFunc(citizens, func(a, b models.Citizen) int { return cmp.Compare(a.ID, b.ID) })
}

// checkUnique reports ErrConflict when a batch repeats a citizen id.
func checkUnique(citizens []models.Citizen) error {
	seen := make(map[int64]struct{}, len(citizens))
	for _, c := range citizens {
		if _, ok := seen[c.ID]; ok {
			return ErrConflict
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
