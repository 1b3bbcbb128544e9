package validation

import (
	"context"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"census/internal/citizens/models"
	dErrors "census/pkg/domain-errors"
)

// DefaultWorkers is the size of the validation pool when none is configured.
const DefaultWorkers = 5

// BatchValidator validates a whole import. Records are checked concurrently
// by a fixed-size pool; the relative degrees of the batch are then compared.
type BatchValidator struct {
	workers int
}

// NewBatchValidator returns a validator running at most workers records at a
// time. Non-positive values fall back to DefaultWorkers.
func NewBatchValidator(workers int) *BatchValidator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &BatchValidator{workers: workers}
}

// Workers reports the pool size.
func (v *BatchValidator) Workers() int {
	return v.workers
}

// Validate returns the normalised citizens in input order, or the first error
// found. Nothing is returned on failure.
//
// The acceptance rule is that, over the whole batch, the multiset of declared
// out-degrees equals the multiset of times each id is named as a relative.
// This is necessary for symmetry but not sufficient: a directed cycle
// A->B->C->A passes.
func (v *BatchValidator) Validate(ctx context.Context, records []Record, today models.Date) ([]models.Citizen, error) {
	if len(records) == 0 {
		return nil, dErrors.New(dErrors.CodeMalformed, "import has no citizens")
	}

	results := make([]*Result, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, rec := range records {
		// After the first failure no new work is scheduled; running workers finish.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := Validate(rec, ModeCreate, today)
			if err != nil {
				return fmt.Errorf("citizen at index %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "validation interrupted")
	}

	return merge(results)
}

func merge(results []*Result) ([]models.Citizen, error) {
	citizens := make([]models.Citizen, 0, len(results))
	ids := make(map[int64]struct{}, len(results))
	declared := make(map[int64]int)
	referenced := make(map[int64]int)

	for _, res := range results {
		id := res.Citizen.ID
		if _, dup := ids[id]; dup {
			return nil, dErrors.Newf(dErrors.CodeStructural, "citizen_id %d appears more than once", id)
		}
		ids[id] = struct{}{}
		citizens = append(citizens, res.Citizen)
		for k, n := range res.Declared {
			declared[k] += n
		}
		for k, n := range res.Referenced {
			referenced[k] += n
		}
	}

	for rel := range referenced {
		if _, ok := ids[rel]; !ok {
			return nil, dErrors.Newf(dErrors.CodeStructural, "relative %d is not part of the import", rel)
		}
	}
	if !maps.Equal(declared, referenced) {
		return nil, dErrors.New(dErrors.CodeStructural, "relatives are not symmetric")
	}
	return citizens, nil
}
