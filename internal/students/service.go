// Package students looks up registered students for the registration form.
// Lookups never fail from the caller's point of view: record store errors are
// logged and degrade to an empty candidate list.
package students

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventreg/internal/platform/provider"
	"eventreg/internal/students/metrics"
	"eventreg/internal/students/models"
	"eventreg/pkg/platform/circuit"
	"eventreg/pkg/requestcontext"
)

// Directory is a student record store.
type Directory interface {
	Name() string
	Find(ctx context.Context, q models.Query) ([]models.Student, error)
}

// Service runs scoped lookups against a Directory.
type Service struct {
	directory Directory
	breaker   *circuit.Breaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

// New creates the lookup service.
func New(directory Directory, opts ...Option) (*Service, error) {
	if directory == nil {
		return nil, fmt.Errorf("student directory is required")
	}
	s := &Service{
		directory: directory,
		logger:    slog.Default(),
		breaker: circuit.New("student_directory",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(15*time.Second),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search returns at most ten students matching q, ordered by name. Queries
// shorter than two characters return nothing without calling the directory.
func (s *Service) Search(ctx context.Context, q models.Query) []models.Student {
	if !models.Searchable(q.NamePattern) {
		return []models.Student{}
	}
	if !s.breaker.Allow() {
		s.metrics.IncrementOutcome("short_circuit")
		return []models.Student{}
	}

	start := time.Now()
	students, err := s.directory.Find(ctx, q)
	s.metrics.ObserveLookupLatency(s.directory.Name(), time.Since(start))
	if err != nil {
		s.recordFailure(ctx, q, err)
		return []models.Student{}
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetCircuitOpen(false)
		s.logger.InfoContext(ctx, "student directory recovered",
			"request_id", requestcontext.RequestID(ctx),
			"directory", s.directory.Name(),
		)
	}
	if len(students) > models.DefaultLimit {
		students = students[:models.DefaultLimit]
	}
	if len(students) == 0 {
		s.metrics.IncrementOutcome("empty")
	} else {
		s.metrics.IncrementOutcome("ok")
	}
	s.metrics.ObserveCandidates(len(students))
	return students
}

func (s *Service) recordFailure(ctx context.Context, q models.Query, err error) {
	s.metrics.IncrementOutcome("degraded")
	if ctx.Err() == nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.metrics.SetCircuitOpen(true)
			s.logger.ErrorContext(ctx, "student directory circuit opened",
				"request_id", requestcontext.RequestID(ctx),
				"directory", s.directory.Name(),
			)
		}
	}
	s.logger.WarnContext(ctx, "student lookup failed",
		"request_id", requestcontext.RequestID(ctx),
		"directory", s.directory.Name(),
		"grade", q.Grade,
		"category", provider.CategoryOf(err),
		"error", err,
	)
}
