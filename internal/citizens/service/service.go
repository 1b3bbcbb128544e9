// Package service orchestrates citizen imports: batch validation and storage,
// patches that keep the relative relation symmetric, and the analytics
// reports.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"census/internal/citizens/graph"
	"census/internal/citizens/metrics"
	"census/internal/citizens/models"
	"census/internal/citizens/store"
	"census/internal/citizens/validation"
	dErrors "census/pkg/domain-errors"
	"census/pkg/platform/audit"
	"census/pkg/requestcontext"
)

const tracerName = "census/citizens"

// Store is the import store the service reads and writes through.
type Store interface {
	CreateImport(ctx context.Context, citizens []models.Citizen) (int64, error)
	GetCitizen(ctx context.Context, importID, citizenID int64) (*models.Citizen, error)
	ListCitizens(ctx context.Context, importID int64) ([]models.Citizen, error)
	CitizenExists(ctx context.Context, importID, citizenID int64) (bool, error)
	UpdateCitizen(ctx context.Context, importID int64, citizen models.Citizen) error
}

// Transactor is implemented by stores that can group the writes of a patch
// into one transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store     Store
	validator *validation.BatchValidator
	mutator   *graph.Mutator
	locker    *graph.Locker

	logger         *slog.Logger
	tracer         trace.Tracer
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	now            func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracerProvider replaces the global provider the service spans are
// started from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithClock sets the clock used when the request carries no start time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithValidationWorkers sets the size of the import validation pool.
func WithValidationWorkers(n int) Option {
	return func(s *Service) {
		s.validator = validation.NewBatchValidator(n)
	}
}

func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		validator: validation.NewBatchValidator(validation.DefaultWorkers),
		mutator:   graph.NewMutator(st),
		locker:    graph.NewLocker(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today is the UTC calendar date the request is evaluated against.
func (s *Service) today(ctx context.Context) models.Date {
	if requestcontext.HasTime(ctx) {
		return models.DateOf(requestcontext.Now(ctx))
	}
	return models.DateOf(s.now())
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	s.logger.InfoContext(ctx, string(event.Action),
		"import_id", event.ImportID,
		"request_id", event.RequestID,
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"import_id", event.ImportID,
			"error", err,
		)
	}
}

// loadCitizens maps a missing import to NotFound.
func (s *Service) loadCitizens(ctx context.Context, importID int64) ([]models.Citizen, error) {
	citizens, err := s.store.ListCitizens(ctx, importID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "import %d not found", importID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load citizens")
	}
	return citizens, nil
}
