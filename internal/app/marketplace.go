package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"autoeden/pkg/cache"
	"autoeden/pkg/domain"
	"autoeden/pkg/store"
)

// MarketplacePage is the serialized result of one marketplace query.
type MarketplacePage struct {
	Vehicles []domain.Vehicle `json:"vehicles"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PerPage  int              `json:"perPage"`
}

// ParseMarketplaceFilter builds a public marketplace filter from query
// parameters. Unknown parameters are ignored; malformed numeric values
// produce field errors instead of being dropped silently.
func ParseMarketplaceFilter(params url.Values) (store.VehicleFilter, error) {
	filter := store.VehicleFilter{
		MarketplaceOnly: true,
		Make:            strings.TrimSpace(params.Get("make")),
		Model:           strings.TrimSpace(params.Get("model")),
		FuelType:        strings.TrimSpace(params.Get("fuelType")),
		Transmission:    strings.TrimSpace(params.Get("transmission")),
		BodyType:        strings.TrimSpace(params.Get("bodyType")),
		Location:        strings.TrimSpace(params.Get("location")),
		Query:           strings.TrimSpace(params.Get("q")),
		SortBy:          strings.TrimSpace(params.Get("sort")),
	}

	fields := domain.FieldErrors{}
	parseInt := func(name string) int {
		raw := params.Get(name)
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields[name] = "must be a non-negative integer"
			return 0
		}
		return n
	}
	parseFloat := func(name string) *float64 {
		raw := params.Get(name)
		if raw == "" {
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 {
			fields[name] = "must be a non-negative number"
			return nil
		}
		return &f
	}

	filter.MinYear = parseInt("minYear")
	filter.MaxYear = parseInt("maxYear")
	filter.MinPrice = parseFloat("minPrice")
	filter.MaxPrice = parseFloat("maxPrice")
	if raw := params.Get("maxMileage"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields["maxMileage"] = "must be a non-negative integer"
		} else {
			filter.MaxMileage = &n
		}
	}
	filter.Page = parseInt("page")
	filter.PerPage = parseInt("perPage")

	switch filter.SortBy {
	case "", "newest", "price_asc", "price_desc", "year_desc":
	default:
		fields["sort"] = "must be one of newest, price_asc, price_desc, year_desc"
	}

	// sortBy carries the client-facing sort vocabulary and wins over sort.
	switch raw := strings.TrimSpace(params.Get("sortBy")); raw {
	case "":
	case "newest":
		filter.SortBy = "newest"
	case "priceLowHigh":
		filter.SortBy = "price_asc"
	case "priceHighLow":
		filter.SortBy = "price_desc"
	default:
		fields["sortBy"] = "must be one of newest, priceLowHigh, priceHighLow"
	}

	if len(fields) > 0 {
		return store.VehicleFilter{}, fields
	}
	return filter, nil
}

// Marketplace answers a public marketplace query. Results are cached per
// canonical parameter set; a cache miss or a cache outage falls through to
// the search path.
func (a *App) Marketplace(ctx context.Context, params url.Values) ([]byte, error) {
	filter, err := ParseMarketplaceFilter(params)
	if err != nil {
		return nil, err
	}

	key := cache.CanonicalKey(params)
	if a.cache != nil {
		if payload, hit, err := a.cache.Get(ctx, key); err != nil {
			slog.Warn("marketplace cache read failed", "error", err)
		} else if hit {
			return payload, nil
		}
	}

	vehicles, total, err := a.search.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search vehicles: %w", err)
	}
	for i := range vehicles {
		a.attachImageURLs(ctx, &vehicles[i])
	}
	page, perPage := filter.Pagination()
	payload, err := json.Marshal(MarketplacePage{
		Vehicles: vehicles,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal marketplace page: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, payload); err != nil {
			slog.Warn("marketplace cache write failed", "error", err)
		}
	}
	return payload, nil
}
