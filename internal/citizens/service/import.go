package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"census/internal/citizens/validation"
	dErrors "census/pkg/domain-errors"
	"census/pkg/platform/audit"
)

// ImportCitizens validates the whole batch and stores it as a new import.
// Nothing is written unless every record passes.
func (s *Service) ImportCitizens(ctx context.Context, records []validation.Record) (id int64, err error) {
	ctx, span := s.startSpan(ctx, "citizens.ImportCitizens")
	span.SetAttributes(attribute.Int("census.citizens", len(records)))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	citizens, err := s.validator.Validate(ctx, records, s.today(ctx))
	s.metrics.ObserveValidation(time.Since(start))
	if err != nil {
		code := dErrors.CodeOf(err)
		s.metrics.RecordRejectedImport(string(code))
		s.logger.InfoContext(ctx, "import rejected", "code", code, "error", err)
		return 0, err
	}

	id, err = s.store.CreateImport(ctx, citizens)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store import")
	}
	span.SetAttributes(attribute.Int64("census.import_id", id))

	s.metrics.RecordImport(len(citizens))
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionImportCreated,
		ImportID: id,
		Citizens: len(citizens),
	})
	return id, nil
}
