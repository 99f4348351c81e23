package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"autoeden/internal/util"
	"autoeden/pkg/domain"
	"autoeden/pkg/store"
)

// VehicleInput carries owner-editable listing fields.
type VehicleInput struct {
	Make          string             `json:"make"`
	Model         string             `json:"model"`
	Year          int                `json:"year"`
	VIN           string             `json:"vin"`
	Mileage       int                `json:"mileage"`
	FuelType      string             `json:"fuelType"`
	Transmission  string             `json:"transmission"`
	BodyType      string             `json:"bodyType"`
	Location      string             `json:"location"`
	Description   string             `json:"description"`
	ListingType   domain.ListingType `json:"listingType"`
	Price         *float64           `json:"price"`
	ProposedPrice *float64           `json:"proposedPrice"`
	IsVisible     *bool              `json:"isVisible"`
}

func (in VehicleInput) apply(v *domain.Vehicle) {
	v.Make = strings.TrimSpace(in.Make)
	v.Model = strings.TrimSpace(in.Model)
	v.Year = in.Year
	v.VIN = strings.ToUpper(strings.TrimSpace(in.VIN))
	v.Mileage = in.Mileage
	v.FuelType = strings.TrimSpace(in.FuelType)
	v.Transmission = strings.TrimSpace(in.Transmission)
	v.BodyType = strings.TrimSpace(in.BodyType)
	v.Location = strings.TrimSpace(in.Location)
	v.Description = strings.TrimSpace(in.Description)
	v.ListingType = in.ListingType
	v.Price = in.Price
	v.ProposedPrice = in.ProposedPrice
	if in.IsVisible != nil {
		v.IsVisible = *in.IsVisible
	}
	// pricing fields are exclusive per listing type
	switch v.ListingType {
	case domain.ListingMarketplace:
		v.ProposedPrice = nil
	case domain.ListingInstantSale:
		v.Price = nil
	}
}

// CreateVehicle stores a new listing in the pending verification state.
func (a *App) CreateVehicle(ctx context.Context, owner domain.User, input VehicleInput) (domain.Vehicle, error) {
	now := a.now()
	vehicle := domain.Vehicle{
		ID:                util.NewID(),
		OwnerID:           owner.ID,
		VerificationState: domain.VerificationPending,
		IsVisible:         true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	input.apply(&vehicle)
	if err := vehicle.Validate(); err != nil {
		return domain.Vehicle{}, err
	}
	if err := a.store.SaveVehicle(vehicle); err != nil {
		if errors.Is(err, store.ErrDuplicateVIN) {
			return domain.Vehicle{}, domain.FieldErrors{"vin": "a vehicle with this VIN is already registered"}
		}
		return domain.Vehicle{}, fmt.Errorf("save vehicle: %w", err)
	}
	a.bus.Publish(ctx, VehicleSubmitted{Vehicle: vehicle, Owner: owner})
	return vehicle, nil
}

// UpdateVehicle edits a listing. Owner edits reset the verification state
// to pending so the changes go back through review; admin edits do not.
func (a *App) UpdateVehicle(ctx context.Context, actor domain.User, id string, input VehicleInput) (domain.Vehicle, error) {
	vehicle, ok, err := a.store.GetVehicle(id)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return domain.Vehicle{}, ErrNotFound
	}
	if vehicle.OwnerID != actor.ID && actor.Role != domain.RoleAdmin {
		return domain.Vehicle{}, ErrForbidden
	}

	input.apply(&vehicle)
	if actor.Role != domain.RoleAdmin {
		vehicle.VerificationState = domain.VerificationPending
		vehicle.RejectionReason = ""
		vehicle.ReviewedBy = ""
		vehicle.ReviewedAt = nil
	}
	vehicle.UpdatedAt = a.now()

	if err := vehicle.Validate(); err != nil {
		return domain.Vehicle{}, err
	}
	if err := a.store.SaveVehicle(vehicle); err != nil {
		if errors.Is(err, store.ErrDuplicateVIN) {
			return domain.Vehicle{}, domain.FieldErrors{"vin": "a vehicle with this VIN is already registered"}
		}
		return domain.Vehicle{}, fmt.Errorf("save vehicle: %w", err)
	}
	a.bus.Publish(ctx, VehicleChanged{VehicleID: vehicle.ID})
	return vehicle, nil
}

// DeleteVehicle removes a listing with its stored images.
func (a *App) DeleteVehicle(ctx context.Context, actor domain.User, id string) error {
	vehicle, ok, err := a.store.GetVehicle(id)
	if err != nil {
		return fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if vehicle.OwnerID != actor.ID && actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}

	images, err := a.store.ListVehicleImages(id)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	if err := a.store.DeleteVehicle(id); err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if a.objects != nil {
		for _, img := range images {
			_ = a.objects.Delete(ctx, img.StorageKey)
		}
	}
	a.bus.Publish(ctx, VehicleChanged{VehicleID: id})
	return nil
}

// GetVehicleDetail loads a vehicle enforcing visibility: anyone can see a
// publicly listed vehicle, only the owner and admins can see the rest.
// viewer may be nil for anonymous requests.
func (a *App) GetVehicleDetail(ctx context.Context, viewer *domain.User, id string) (domain.Vehicle, error) {
	vehicle, ok, err := a.store.GetVehicle(id)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return domain.Vehicle{}, ErrNotFound
	}
	if !vehicle.IsListedOnMarketplace() {
		if viewer == nil {
			return domain.Vehicle{}, ErrNotFound
		}
		if vehicle.OwnerID != viewer.ID && viewer.Role != domain.RoleAdmin {
			return domain.Vehicle{}, ErrNotFound
		}
	}
	a.attachImageURLs(ctx, &vehicle)
	return vehicle, nil
}

// ListMyVehicles returns the owner's listings in every state.
func (a *App) ListMyVehicles(ctx context.Context, ownerID string, page, perPage int) ([]domain.Vehicle, int, error) {
	vehicles, total, err := a.store.ListVehicles(store.VehicleFilter{
		OwnerID: ownerID,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list vehicles: %w", err)
	}
	for i := range vehicles {
		a.attachImageURLs(ctx, &vehicles[i])
	}
	return vehicles, total, nil
}

// AdminListVehicles returns listings for the admin review queue.
func (a *App) AdminListVehicles(ctx context.Context, filter store.VehicleFilter) ([]domain.Vehicle, int, error) {
	vehicles, total, err := a.store.ListVehicles(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list vehicles: %w", err)
	}
	return vehicles, total, nil
}

// ReviewVehicle applies an admin verification decision.
func (a *App) ReviewVehicle(ctx context.Context, admin domain.User, id string, target domain.VerificationState, reason string) (domain.Vehicle, error) {
	vehicle, ok, err := a.store.GetVehicle(id)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return domain.Vehicle{}, ErrNotFound
	}
	previous := vehicle.VerificationState

	if err := domain.ReviewVehicle(ctx, &vehicle, target, reason, admin.ID, a.now()); err != nil {
		return domain.Vehicle{}, err
	}
	if err := a.store.SaveVehicle(vehicle); err != nil {
		return domain.Vehicle{}, fmt.Errorf("save vehicle: %w", err)
	}

	owner, _, err := a.store.GetUserByID(vehicle.OwnerID)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("load owner: %w", err)
	}
	a.bus.Publish(ctx, VehicleReviewed{Vehicle: vehicle, Previous: previous, Owner: owner})
	return vehicle, nil
}

// AddVehicleImage uploads image bytes and attaches them to the listing.
func (a *App) AddVehicleImage(ctx context.Context, actor domain.User, vehicleID, filename, contentType string, data []byte) (domain.VehicleImage, error) {
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return domain.VehicleImage{}, fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return domain.VehicleImage{}, ErrNotFound
	}
	if vehicle.OwnerID != actor.ID && actor.Role != domain.RoleAdmin {
		return domain.VehicleImage{}, ErrForbidden
	}
	if a.objects == nil {
		return domain.VehicleImage{}, ErrDisabled
	}

	img := domain.VehicleImage{
		ID:        util.NewID(),
		VehicleID: vehicleID,
		CreatedAt: a.now(),
	}
	img.StorageKey = fmt.Sprintf("vehicles/%s/%s%s", vehicleID, img.ID, path.Ext(filename))
	if err := a.objects.Put(ctx, img.StorageKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return domain.VehicleImage{}, fmt.Errorf("store image: %w", err)
	}
	if err := a.store.AddVehicleImage(img); err != nil {
		_ = a.objects.Delete(ctx, img.StorageKey)
		return domain.VehicleImage{}, fmt.Errorf("save image: %w", err)
	}
	if url, err := a.objects.PresignGet(ctx, img.StorageKey, time.Hour); err == nil {
		img.URL = url
	}
	a.bus.Publish(ctx, VehicleChanged{VehicleID: vehicleID})
	return img, nil
}

// DeleteVehicleImage detaches and removes an image.
func (a *App) DeleteVehicleImage(ctx context.Context, actor domain.User, vehicleID, imageID string) error {
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if vehicle.OwnerID != actor.ID && actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	img, ok, err := a.store.DeleteVehicleImage(imageID)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if !ok || img.VehicleID != vehicleID {
		return ErrNotFound
	}
	if a.objects != nil {
		_ = a.objects.Delete(ctx, img.StorageKey)
	}
	a.bus.Publish(ctx, VehicleChanged{VehicleID: vehicleID})
	return nil
}

func (a *App) attachImageURLs(ctx context.Context, vehicle *domain.Vehicle) {
	if a.objects == nil {
		return
	}
	for i := range vehicle.Images {
		if url, err := a.objects.PresignGet(ctx, vehicle.Images[i].StorageKey, time.Hour); err == nil {
			vehicle.Images[i].URL = url
		}
	}
}

// DashboardStats is the live admin dashboard payload.
type DashboardStats struct {
	VehiclesByState map[domain.VerificationState]int `json:"vehiclesByState"`
	TotalUsers      int                              `json:"totalUsers"`
	PendingQuotes   int                              `json:"pendingQuotes"`
}

// Stats aggregates counts for the admin dashboard.
func (a *App) Stats(ctx context.Context) (DashboardStats, error) {
	states, err := a.store.CountVehiclesByState()
	if err != nil {
		return DashboardStats{}, fmt.Errorf("count vehicles: %w", err)
	}
	users, err := a.store.UserCount()
	if err != nil {
		return DashboardStats{}, fmt.Errorf("count users: %w", err)
	}
	quotes, err := a.store.ListQuotes()
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list quotes: %w", err)
	}
	pending := 0
	for _, q := range quotes {
		if q.Status == domain.QuotePending {
			pending++
		}
	}
	return DashboardStats{
		VehiclesByState: states,
		TotalUsers:      users,
		PendingQuotes:   pending,
	}, nil
}
