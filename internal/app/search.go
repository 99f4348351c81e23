package app

import (
	"context"
	"log/slog"

	"autoeden/pkg/domain"
	"autoeden/pkg/store"
)

// SearchIndex answers marketplace queries. The default implementation reads
// straight from the store; a dedicated search backend can be plugged in and
// wrapped with FallbackSearch so an outage degrades to database queries
// instead of errors. Index updates are driven off vehicle events and their
// failures are logged, never surfaced to the write path.
type SearchIndex interface {
	Search(ctx context.Context, filter store.VehicleFilter) ([]domain.Vehicle, int, error)
	IndexVehicle(ctx context.Context, vehicle domain.Vehicle) error
	RemoveVehicle(ctx context.Context, vehicleID string) error
}

// StoreSearch is the database-backed search path.
type StoreSearch struct {
	store store.Store
}

// NewStoreSearch builds a SearchIndex over the persistence layer.
func NewStoreSearch(s store.Store) *StoreSearch {
	return &StoreSearch{store: s}
}

// Search delegates to the store's filtered listing query.
func (s *StoreSearch) Search(ctx context.Context, filter store.VehicleFilter) ([]domain.Vehicle, int, error) {
	return s.store.ListVehicles(filter)
}

// IndexVehicle is a no-op; the store is already the source of truth.
func (s *StoreSearch) IndexVehicle(ctx context.Context, vehicle domain.Vehicle) error {
	return nil
}

// RemoveVehicle is a no-op; deletes go straight to the store.
func (s *StoreSearch) RemoveVehicle(ctx context.Context, vehicleID string) error {
	return nil
}

// FallbackSearch tries a primary index and falls back to a secondary when
// the primary fails. Results from the fallback are correct but may rank
// differently.
type FallbackSearch struct {
	primary  SearchIndex
	fallback SearchIndex
}

// NewFallbackSearch wraps primary with a fallback path.
func NewFallbackSearch(primary, fallback SearchIndex) *FallbackSearch {
	return &FallbackSearch{primary: primary, fallback: fallback}
}

// Search queries the primary index and degrades to the fallback on error.
func (s *FallbackSearch) Search(ctx context.Context, filter store.VehicleFilter) ([]domain.Vehicle, int, error) {
	vehicles, total, err := s.primary.Search(ctx, filter)
	if err == nil {
		return vehicles, total, nil
	}
	slog.Warn("primary search failed, using fallback", "error", err)
	return s.fallback.Search(ctx, filter)
}

// IndexVehicle updates both indexes; the primary error wins.
func (s *FallbackSearch) IndexVehicle(ctx context.Context, vehicle domain.Vehicle) error {
	if err := s.fallback.IndexVehicle(ctx, vehicle); err != nil {
		slog.Warn("fallback index update failed", "vehicle_id", vehicle.ID, "error", err)
	}
	return s.primary.IndexVehicle(ctx, vehicle)
}

// RemoveVehicle removes from both indexes; the primary error wins.
func (s *FallbackSearch) RemoveVehicle(ctx context.Context, vehicleID string) error {
	if err := s.fallback.RemoveVehicle(ctx, vehicleID); err != nil {
		slog.Warn("fallback index removal failed", "vehicle_id", vehicleID, "error", err)
	}
	return s.primary.RemoveVehicle(ctx, vehicleID)
}
