package location

import (
	"context"
	"fmt"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx"
	"stevedore/internal/domain"
	"stevedore/pkg/logger"
)

// gridLimit caps one grid generation call.
const gridLimit = 10000

// Service provides business logic for the Location catalog.
type Service struct {
	*domain.CatalogService[*Location]
	repo      Repository
	gen       numerator.Generator
	txManager tx.Manager
}

// NewService creates a new Location service.
func NewService(repo Repository, gen numerator.Generator, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Location]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  gen,
		EntityName: "location",
		CodePrefix: "LOC",
	})

	return &Service{
		CatalogService: base,
		repo:           repo,
		gen:            gen,
		txManager:      txManager,
	}
}

// Resolve maps a coordinate tuple to its stable location, creating the
// location when it does not exist yet. The boolean reports creation.
func (s *Service) Resolve(ctx context.Context, warehouseID id.ID, kind Kind, rack string, level, position int32) (*Location, bool, error) {
	loc, err := s.repo.FindByCoordinates(ctx, warehouseID, kind, rack, level, position)
	if err == nil {
		return loc, false, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, false, err
	}

	candidate := NewLocation(warehouseID, kind, rack, level, position)
	if err := s.Create(ctx, candidate); err != nil {
		// A concurrent resolve may have won the insert race.
		if appErr, ok := apperror.AsAppError(err); ok &&
			(appErr.Code == apperror.CodeDuplicate || appErr.Code == apperror.CodeConflict) {
			if existing, lookupErr := s.repo.FindByCoordinates(ctx, warehouseID, kind, rack, level, position); lookupErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return candidate, true, nil
}

// GenerateGrid creates every missing location of a rack grid in one bulk
// insert: levels 1..levels and positions 1..positions for rack kind, a flat
// position run for aisles. Returns the newly created locations.
func (s *Service) GenerateGrid(ctx context.Context, warehouseID id.ID, kind Kind, rack string, levels, positions int32) ([]*Location, error) {
	if rack == "" {
		return nil, apperror.NewValidation("rack is required").WithDetail("field", "rack")
	}
	if kind == KindAisle {
		levels = 1
	}
	if levels < 1 || positions < 1 {
		return nil, apperror.NewValidation("levels and positions must be at least 1").
			WithDetail("levels", levels).
			WithDetail("positions", positions)
	}
	if int64(levels)*int64(positions) > gridLimit {
		return nil, apperror.NewValidation("grid too large").
			WithDetail("limit", gridLimit).
			WithDetail("requested", int64(levels)*int64(positions))
	}

	existing, err := s.repo.ListByWarehouse(ctx, warehouseID, domain.ListFilter{Limit: gridLimit})
	if err != nil {
		return nil, fmt.Errorf("list existing locations: %w", err)
	}
	taken := make(map[string]bool, len(existing.Items))
	for _, loc := range existing.Items {
		taken[coordKey(loc.Kind, loc.Rack, loc.Level, loc.Position)] = true
	}

	var created []*Location
	for level := int32(1); level <= levels; level++ {
		for position := int32(1); position <= positions; position++ {
			cellLevel := level
			if kind == KindAisle {
				cellLevel = 0
			}
			if taken[coordKey(kind, rack, cellLevel, position)] {
				continue
			}

			loc := NewLocation(warehouseID, kind, rack, cellLevel, position)
			code, err := s.gen.GetNextNumber(ctx, numerator.Config{
				Prefix:      "LOC",
				IncludeYear: false,
				PadWidth:    5,
				ResetPeriod: "never",
			}, &numerator.Options{Strategy: numerator.StrategyCached, RangeSize: 500}, time.Now().UTC())
			if err != nil {
				return nil, fmt.Errorf("assign location code: %w", err)
			}
			loc.Code = code

			if err := loc.Validate(ctx); err != nil {
				return nil, err
			}
			created = append(created, loc)
		}
	}

	if len(created) == 0 {
		return []*Location{}, nil
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.CreateBatch(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "location grid generated",
		"warehouse_id", warehouseID, "rack", rack, "created", len(created))
	return created, nil
}

func coordKey(kind Kind, rack string, level, position int32) string {
	return fmt.Sprintf("%s|%s|%d|%d", kind, rack, level, position)
}
