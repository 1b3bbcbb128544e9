package service

import (
	"context"
	"errors"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"census/internal/citizens/graph"
	"census/internal/citizens/models"
	"census/internal/citizens/store"
	"census/internal/citizens/validation"
	dErrors "census/pkg/domain-errors"
	"census/pkg/platform/audit"
)

// maxLockAttempts bounds how often a patch re-locks when the subject's
// relatives moved between the unlocked read and acquiring the locks.
const maxLockAttempts = 10

const (
	patchApplied  = "applied"
	patchRejected = "rejected"
	patchFailed   = "failed"
)

// PatchCitizen applies a partial update to one citizen. When the relatives
// change, the reciprocal records of every added or dropped relative are
// rewritten so the relation stays symmetric.
func (s *Service) PatchCitizen(ctx context.Context, importID, citizenID int64, rec validation.Record) (out *models.Citizen, err error) {
	ctx, span := s.startSpan(ctx, "citizens.PatchCitizen")
	span.SetAttributes(
		attribute.Int64("census.import_id", importID),
		attribute.Int64("census.citizen_id", citizenID),
	)
	defer func() {
		endSpan(span, err)
		switch {
		case err == nil:
		case dErrors.HasCode(err, dErrors.CodeInternal):
			s.metrics.RecordPatch(patchFailed, 0)
		default:
			s.metrics.RecordPatch(patchRejected, 0)
		}
	}()

	current, err := s.getCitizen(ctx, importID, citizenID)
	if err != nil {
		return nil, err
	}

	res, err := validation.Validate(rec, validation.ModePatch, s.today(ctx))
	if err != nil {
		return nil, err
	}
	patch := res.Patch
	if patch.Relatives != nil {
		relatives := dedupe(*patch.Relatives)
		patch.Relatives = &relatives
		if err := s.checkRelatives(ctx, importID, citizenID, relatives); err != nil {
			return nil, err
		}
	}

	var change graph.Change
	err = s.withLocks(ctx, importID, current, patch, func(ctx context.Context, locked models.Citizen) error {
		updated := patch.ApplyTo(locked)
		if patch.Relatives == nil || graph.SameSet(locked.Relatives, updated.Relatives) {
			return s.store.UpdateCitizen(ctx, importID, updated)
		}
		var err error
		change, err = s.mutator.Apply(ctx, importID, updated, locked.Relatives)
		return err
	})
	if err != nil {
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply patch")
	}

	out, err = s.getCitizen(ctx, importID, citizenID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPatch(patchApplied, change.Edges())
	s.emitAudit(ctx, audit.Event{
		Action:       audit.ActionCitizenPatched,
		ImportID:     importID,
		CitizenID:    &citizenID,
		EdgesChanged: change.Edges(),
	})
	return out, nil
}

func (s *Service) getCitizen(ctx context.Context, importID, citizenID int64) (*models.Citizen, error) {
	c, err := s.store.GetCitizen(ctx, importID, citizenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "citizen %d not found in import %d", citizenID, importID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load citizen")
	}
	return c, nil
}

// checkRelatives rejects self references and ids outside the import.
// Membership of an import is fixed, so this needs no lock.
func (s *Service) checkRelatives(ctx context.Context, importID, citizenID int64, relatives []int64) error {
	for _, id := range relatives {
		if id == citizenID {
			return dErrors.Newf(dErrors.CodeStructural, "citizen %d lists itself as a relative", citizenID)
		}
		ok, err := s.store.CitizenExists(ctx, importID, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check relative")
		}
		if !ok {
			return dErrors.Newf(dErrors.CodeStructural, "relative %d is not in import %d", id, importID)
		}
	}
	return nil
}

// withLocks holds the per-citizen locks of the subject and of every old and
// new relative while fn runs, then runs fn inside a transaction when the
// store supports one. fn receives the subject as read under the locks.
func (s *Service) withLocks(ctx context.Context, importID int64, seen *models.Citizen, patch models.CitizenPatch,
	fn func(ctx context.Context, locked models.Citizen) error,
) error {
	ids := lockSet(*seen, patch)
	for range maxLockAttempts {
		unlock := s.locker.Lock(importID, ids...)

		locked, err := s.getCitizen(ctx, importID, seen.ID)
		if err != nil {
			unlock()
			return err
		}
		if !covers(ids, locked.Relatives) {
			unlock()
			// The lock set only grows, so this converges within the size of the import.
			ids = append(ids, locked.Relatives...)
			continue
		}

		err = s.inTx(ctx, func(ctx context.Context) error {
			// Re-read inside the transaction so row locks are taken.
			current, err := s.store.GetCitizen(ctx, importID, seen.ID)
			if err != nil {
				return err
			}
			return fn(ctx, *current)
		})
		unlock()
		return err
	}
	return dErrors.Newf(dErrors.CodeInternal, "citizen %d kept changing while locking", seen.ID)
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := s.store.(Transactor); ok {
		return tx.RunInTx(ctx, fn)
	}
	return fn(ctx)
}

func lockSet(c models.Citizen, patch models.CitizenPatch) []int64 {
	ids := append([]int64{c.ID}, c.Relatives...)
	if patch.Relatives != nil {
		ids = append(ids, *patch.Relatives...)
	}
	return ids
}

func covers(locked, ids []int64) bool {
	for _, id := range ids {
		if !slices.Contains(locked, id) {
			return false
		}
	}
	return true
}

// dedupe keeps the first occurrence of every id.
func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
