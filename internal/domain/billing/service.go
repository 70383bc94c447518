package billing

import (
	"context"
	"fmt"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/pkg/logger"
)

// Repository loads the billing projection. Queries are read-only and run
// without locks; a write committing mid-query may be missed.
type Repository interface {
	// ListFacts returns the facts for every pallet created up to the given
	// instant, joined with product pallet positions and shipment type.
	ListFacts(ctx context.Context, until time.Time) ([]PalletFact, error)
}

// Service computes billing metrics and statements over a date range.
type Service struct {
	repo Repository
}

// NewService creates a billing service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ComputeMetrics computes the five metrics for [from, to]. The range is
// day-granular: from is floored to midnight, to is ceilinged to end of day,
// both in UTC. A range ending before it starts is rejected.
func (s *Service) ComputeMetrics(ctx context.Context, from, to time.Time) (*Metrics, error) {
	from, to, err := normalizeRange(from, to)
	if err != nil {
		return nil, err
	}

	facts, err := s.repo.ListFacts(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("load billing facts: %w", err)
	}

	metrics := ComputeMetrics(facts, from, to)
	logger.Debug(ctx, "billing metrics computed",
		"from", from, "to", to, "pallets", len(facts))
	return &metrics, nil
}

// BuildStatement computes the metrics for [from, to] and prices them with
// the supplied tariffs.
func (s *Service) BuildStatement(ctx context.Context, from, to time.Time, tariffs Tariffs) (*Statement, error) {
	metrics, err := s.ComputeMetrics(ctx, from, to)
	if err != nil {
		return nil, err
	}

	statement := BuildStatement(*metrics, tariffs)
	return &statement, nil
}

func normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	if from.IsZero() || to.IsZero() {
		return time.Time{}, time.Time{}, apperror.NewValidation("billing range requires both from and to")
	}

	from = midnight(from)
	to = endOfDay(to)
	if from.After(to) {
		return time.Time{}, time.Time{}, apperror.NewValidation("billing range ends before it starts").
			WithDetail("from", from).
			WithDetail("to", to)
	}
	return from, to, nil
}
