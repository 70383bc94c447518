package pallet

import (
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
)

// transitions is the lifecycle table. Creation enters at Received (normal
// receipt) or Staged (cross-dock); those entry points have no From edge.
var transitions = map[Status][]Status{
	StatusReceived: {StatusStored, StatusWriteOff},
	StatusStored:   {StatusStored, StatusStaged, StatusWriteOff},
	StatusStaged:   {StatusLoaded, StatusShipped, StatusWriteOff},
	StatusLoaded:   {StatusStaged, StatusShipped, StatusWriteOff},
	StatusShipped:  {},
	StatusWriteOff: {},
}

// CanTransition reports whether the lifecycle table allows from → to.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (p *Pallet) reject(to Status) error {
	return apperror.NewInvalidTransition(p.ID, string(p.Status), string(to))
}

// PutAway moves a freshly received pallet into a storage location.
// Received → Stored; sets the location and starts storage occupancy.
func (p *Pallet) PutAway(locationID id.ID, at time.Time) error {
	if p.Status != StatusReceived {
		return p.reject(StatusStored)
	}
	p.Status = StatusStored
	p.LocationID = &locationID
	p.ReceivedAt = &at
	return nil
}

// MoveTo relocates a stored pallet. Stored → Stored.
func (p *Pallet) MoveTo(locationID id.ID) error {
	if p.Status != StatusStored {
		return p.reject(StatusStored)
	}
	p.LocationID = &locationID
	return nil
}

// Pick commits a stored pallet to a shipping order.
// Stored → Staged; the storage location is released.
func (p *Pallet) Pick(shippingOrderID id.ID) error {
	if p.Status != StatusStored {
		return p.reject(StatusStaged)
	}
	p.Status = StatusStaged
	p.ShippingOrderID = &shippingOrderID
	p.LocationID = nil
	return nil
}

// ToggleLoadOn marks a staged pallet as loaded onto a vehicle.
// Staged → Loaded; container shipments record the manifest.
func (p *Pallet) ToggleLoadOn(manifestID *id.ID) error {
	if p.Status != StatusStaged {
		return p.reject(StatusLoaded)
	}
	p.Status = StatusLoaded
	p.ManifestID = manifestID
	return nil
}

// ToggleLoadOff reverses a load action. Loaded → Staged.
func (p *Pallet) ToggleLoadOff() error {
	if p.Status != StatusLoaded {
		return p.reject(StatusStaged)
	}
	p.Status = StatusStaged
	p.ManifestID = nil
	p.LocationID = nil
	return nil
}

// Ship finalizes the pallet. Staged, Loaded → Shipped.
func (p *Pallet) Ship(at time.Time) error {
	if p.Status != StatusStaged && p.Status != StatusLoaded {
		return p.reject(StatusShipped)
	}
	p.Status = StatusShipped
	p.ShippedAt = &at
	return nil
}

// MarkWrittenOff removes the pallet from circulation.
// Allowed from every state except Shipped. The only field change is the
// status itself; reason and actor are recorded on the audit event.
func (p *Pallet) MarkWrittenOff() error {
	if p.Status == StatusShipped || p.Status == StatusWriteOff {
		return p.reject(StatusWriteOff)
	}
	p.Status = StatusWriteOff
	return nil
}
