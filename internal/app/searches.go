package app

import (
	"context"
	"fmt"
	"strings"

	"autoeden/internal/util"
	"autoeden/pkg/domain"
)

// SearchInput carries the criteria of a saved search.
type SearchInput struct {
	Make       string  `json:"make"`
	Model      string  `json:"model"`
	MinYear    int     `json:"minYear"`
	MaxYear    int     `json:"maxYear"`
	MaxPrice   float64 `json:"maxPrice"`
	MaxMileage int     `json:"maxMileage"`
}

func (in SearchInput) validate() error {
	fields := domain.FieldErrors{}
	if strings.TrimSpace(in.Make) == "" {
		fields["make"] = "make is required"
	}
	if strings.TrimSpace(in.Model) == "" {
		fields["model"] = "model is required"
	}
	if in.MinYear <= 0 || in.MaxYear <= 0 || in.MinYear > in.MaxYear {
		fields["minYear"] = "year range is required and minYear must not exceed maxYear"
	}
	if in.MaxPrice <= 0 {
		fields["maxPrice"] = "max price must be positive"
	}
	if in.MaxMileage <= 0 {
		fields["maxMileage"] = "max mileage must be positive"
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

// CreateSearch saves a search that is matched against future listings.
func (a *App) CreateSearch(ctx context.Context, userID string, input SearchInput) (domain.VehicleSearch, error) {
	if err := input.validate(); err != nil {
		return domain.VehicleSearch{}, err
	}
	search := domain.VehicleSearch{
		ID:         util.NewID(),
		UserID:     userID,
		Make:       strings.TrimSpace(input.Make),
		Model:      strings.TrimSpace(input.Model),
		MinYear:    input.MinYear,
		MaxYear:    input.MaxYear,
		MaxPrice:   input.MaxPrice,
		MaxMileage: input.MaxMileage,
		Status:     domain.SearchActive,
		CreatedAt:  a.now(),
	}
	if err := a.store.SaveSearch(search); err != nil {
		return domain.VehicleSearch{}, fmt.Errorf("save search: %w", err)
	}
	return search, nil
}

// MySearches lists the user's saved searches.
func (a *App) MySearches(ctx context.Context, userID string) ([]domain.VehicleSearch, error) {
	searches, err := a.store.ListSearchesByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	return searches, nil
}

// SetSearchStatus pauses or resumes a saved search.
func (a *App) SetSearchStatus(ctx context.Context, userID, id string, status domain.SearchStatus) (domain.VehicleSearch, error) {
	switch status {
	case domain.SearchActive, domain.SearchPaused:
	default:
		return domain.VehicleSearch{}, domain.FieldErrors{"status": "status must be active or paused"}
	}
	search, ok, err := a.store.GetSearch(id)
	if err != nil {
		return domain.VehicleSearch{}, fmt.Errorf("load search: %w", err)
	}
	if !ok {
		return domain.VehicleSearch{}, ErrNotFound
	}
	if search.UserID != userID {
		return domain.VehicleSearch{}, ErrForbidden
	}
	search.Status = status
	if err := a.store.SaveSearch(search); err != nil {
		return domain.VehicleSearch{}, fmt.Errorf("save search: %w", err)
	}
	return search, nil
}

// DeleteSearch removes a saved search owned by the user.
func (a *App) DeleteSearch(ctx context.Context, userID, id string) error {
	search, ok, err := a.store.GetSearch(id)
	if err != nil {
		return fmt.Errorf("load search: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if search.UserID != userID {
		return ErrForbidden
	}
	return a.store.DeleteSearch(id)
}
