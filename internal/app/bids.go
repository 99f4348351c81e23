package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autoeden/internal/util"
	"autoeden/pkg/domain"
	"autoeden/pkg/store"
)

// PlaceBid records an offer on a publicly listed marketplace vehicle.
// Owners cannot bid on their own listings.
func (a *App) PlaceBid(ctx context.Context, bidder domain.User, vehicleID string, amount float64, message string) (domain.Bid, error) {
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return domain.Bid{}, ErrNotFound
	}
	if !vehicle.IsListedOnMarketplace() {
		return domain.Bid{}, ErrNotBiddable
	}
	if vehicle.OwnerID == bidder.ID {
		return domain.Bid{}, ErrForbidden
	}
	if amount <= 0 {
		return domain.Bid{}, domain.FieldErrors{"amount": "bid amount must be positive"}
	}

	now := a.now()
	bid := domain.Bid{
		ID:        util.NewID(),
		VehicleID: vehicleID,
		BidderID:  bidder.ID,
		Amount:    amount,
		Message:   strings.TrimSpace(message),
		Status:    domain.BidPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveBid(bid); err != nil {
		return domain.Bid{}, fmt.Errorf("save bid: %w", err)
	}
	a.bus.Publish(ctx, BidPlaced{Bid: bid, Vehicle: vehicle, Bidder: bidder})
	return bid, nil
}

// MyBids lists everything the user has bid on.
func (a *App) MyBids(ctx context.Context, bidderID string) ([]domain.Bid, error) {
	bids, err := a.store.ListBidsByBidder(bidderID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

// VehicleBids lists all bids on a vehicle, visible to the owner and admins.
func (a *App) VehicleBids(ctx context.Context, actor domain.User, vehicleID string) ([]domain.Bid, error) {
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return nil, fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	if vehicle.OwnerID != actor.ID && actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	bids, err := a.store.ListBidsByVehicle(vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

// DecideBid accepts or rejects a pending bid. Acceptance is first-wins:
// when two admins race, the second decision fails with ErrConflict.
func (a *App) DecideBid(ctx context.Context, admin domain.User, bidID string, accept bool) (domain.Bid, error) {
	decide := a.store.RejectBid
	if accept {
		decide = a.store.AcceptBid
	}
	bid, err := decide(bidID, a.now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Bid{}, ErrNotFound
		case errors.Is(err, store.ErrBidNotPending):
			return domain.Bid{}, ErrConflict
		}
		return domain.Bid{}, fmt.Errorf("decide bid: %w", err)
	}

	vehicle, _, err := a.store.GetVehicle(bid.VehicleID)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("load vehicle: %w", err)
	}
	a.bus.Publish(ctx, BidDecided{Bid: bid, Vehicle: vehicle})
	return bid, nil
}
