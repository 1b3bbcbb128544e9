package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"census/internal/citizens/analytics"
	"census/internal/citizens/models"
	dErrors "census/pkg/domain-errors"
)

// ListCitizens returns every citizen of an import sorted by id.
func (s *Service) ListCitizens(ctx context.Context, importID int64) (citizens []models.Citizen, err error) {
	ctx, span := s.startSpan(ctx, "citizens.ListCitizens")
	span.SetAttributes(attribute.Int64("census.import_id", importID))
	defer func() { endSpan(span, err) }()

	return s.loadCitizens(ctx, importID)
}

// Birthdays returns the per-month present counts of an import.
func (s *Service) Birthdays(ctx context.Context, importID int64) (report models.Birthdays, err error) {
	ctx, span := s.startSpan(ctx, "citizens.Birthdays")
	span.SetAttributes(attribute.Int64("census.import_id", importID))
	defer func() { endSpan(span, err) }()

	citizens, err := s.loadCitizens(ctx, importID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	report = analytics.Birthdays(citizens)
	s.metrics.ObserveReport("birthdays", time.Since(start))
	return report, nil
}

// TownAgePercentiles returns age percentiles per town, with ages computed
// against the request date.
func (s *Service) TownAgePercentiles(ctx context.Context, importID int64) (stats []models.TownAgeStats, err error) {
	ctx, span := s.startSpan(ctx, "citizens.TownAgePercentiles")
	span.SetAttributes(attribute.Int64("census.import_id", importID))
	defer func() { endSpan(span, err) }()

	citizens, err := s.loadCitizens(ctx, importID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	stats, err = analytics.TownAgePercentiles(citizens, s.today(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute percentiles")
	}
	s.metrics.ObserveReport("percentile_age", time.Since(start))
	return stats, nil
}
