package pallet

import (
	"context"
	"fmt"
	"time"

	"stevedore/internal/core/apperror"
	appctx "stevedore/internal/core/context"
	"stevedore/internal/core/id"
	"stevedore/internal/core/tx"
	"stevedore/internal/domain"
	"stevedore/pkg/logger"
)

// LocationSource validates storage locations for put-away and moves.
type LocationSource interface {
	Exists(ctx context.Context, locationID id.ID) (bool, error)
}

// Service provides storage-side pallet operations: put-away, internal moves
// and write-off. Order-scoped operations (pick, load toggle) live with the
// shipping order service because they reserve outbound quantity.
type Service struct {
	repo      Repository
	events    EventStore
	locations LocationSource
	txManager tx.Manager
}

// NewService creates a pallet service.
func NewService(repo Repository, events EventStore, locations LocationSource, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		events:    events,
		locations: locations,
		txManager: txManager,
	}
}

// GetByID retrieves a pallet.
func (s *Service) GetByID(ctx context.Context, palletID id.ID) (*Pallet, error) {
	return s.repo.GetByID(ctx, palletID)
}

// GetByLabel retrieves a pallet by its label.
func (s *Service) GetByLabel(ctx context.Context, label string) (*Pallet, error) {
	return s.repo.GetByLabel(ctx, label)
}

// List retrieves pallets with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Pallet], error) {
	return s.repo.List(ctx, filter)
}

// ListEvents returns the pallet's audit trail, newest first.
func (s *Service) ListEvents(ctx context.Context, palletID id.ID, limit, offset int) ([]Event, error) {
	if _, err := s.repo.GetByID(ctx, palletID); err != nil {
		return nil, err
	}
	return s.events.ListByPallet(ctx, palletID, limit, offset)
}

// PutAway moves a received pallet into a storage location.
func (s *Service) PutAway(ctx context.Context, palletID, locationID id.ID) (*Pallet, error) {
	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkLocation(ctx, locationID); err != nil {
			return err
		}

		var err error
		p, err = s.repo.GetForUpdate(ctx, palletID)
		if err != nil {
			return err
		}

		occupants, err := s.repo.CountAtLocation(ctx, locationID)
		if err != nil {
			return fmt.Errorf("count location occupants: %w", err)
		}
		if occupants > 0 {
			logger.Warn(ctx, "location already occupied",
				"location_id", locationID, "pallets", occupants)
		}

		from := p.Status
		if err := p.PutAway(locationID, time.Now().UTC()); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		event := NewEvent(p, EventPutAway, &from, appctx.GetOperatorID(ctx)).
			WithDetail("location_id", locationID.String())
		return s.events.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet put away",
		"pallet_id", p.ID, "label", p.Label, "location_id", locationID)
	return p, nil
}

// Move relocates a stored pallet to another location.
func (s *Service) Move(ctx context.Context, palletID, locationID id.ID) (*Pallet, error) {
	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkLocation(ctx, locationID); err != nil {
			return err
		}

		var err error
		p, err = s.repo.GetForUpdate(ctx, palletID)
		if err != nil {
			return err
		}

		from := p.Status
		var fromLocation string
		if p.LocationID != nil {
			fromLocation = p.LocationID.String()
		}

		if err := p.MoveTo(locationID); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		event := NewEvent(p, EventMoved, &from, appctx.GetOperatorID(ctx)).
			WithDetail("to_location_id", locationID.String())
		if fromLocation != "" {
			event.WithDetail("from_location_id", fromLocation)
		}
		return s.events.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet moved",
		"pallet_id", p.ID, "label", p.Label, "location_id", locationID)
	return p, nil
}

// WriteOff removes a pallet from circulation with an audit reason.
// The pallet row survives for billing and audit history.
func (s *Service) WriteOff(ctx context.Context, palletID id.ID, reason string) (*Pallet, error) {
	if reason == "" {
		return nil, apperror.NewValidation("write-off reason is required").
			WithDetail("field", "reason")
	}

	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetForUpdate(ctx, palletID)
		if err != nil {
			return err
		}

		from := p.Status
		if err := p.MarkWrittenOff(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		event := NewEvent(p, EventWrittenOff, &from, appctx.GetOperatorID(ctx)).
			WithReason(reason)
		return s.events.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet written off",
		"pallet_id", p.ID, "label", p.Label, "reason", reason)
	return p, nil
}

func (s *Service) checkLocation(ctx context.Context, locationID id.ID) error {
	ok, err := s.locations.Exists(ctx, locationID)
	if err != nil {
		return fmt.Errorf("check location: %w", err)
	}
	if !ok {
		return apperror.NewNotFound("location", locationID.String())
	}
	return nil
}
