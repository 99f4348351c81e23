package store

import (
	"errors"
	"sort"
	"strings"
	"time"

	"autoeden/pkg/domain"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateVIN indicates another vehicle already uses the VIN.
	ErrDuplicateVIN = errors.New("vin already registered")
	// ErrBidNotPending indicates the bid was already accepted or rejected,
	// typically by a concurrent admin action.
	ErrBidNotPending = errors.New("bid is not pending")
)

// VehicleFilter narrows vehicle listings. Zero values mean "no constraint".
type VehicleFilter struct {
	Make              string
	Model             string
	MinYear           int
	MaxYear           int
	MinPrice          *float64
	MaxPrice          *float64
	MaxMileage        *int
	FuelType          string
	Transmission      string
	BodyType          string
	Location          string
	ListingType       domain.ListingType
	VerificationState domain.VerificationState
	OwnerID           string
	// MarketplaceOnly restricts to publicly listed vehicles:
	// marketplace listing type, physical verification, visible.
	MarketplaceOnly bool
	// Query is a free-text substring matched against make, model and
	// description, used by the search fallback path.
	Query string
	// SortBy is one of "", "price_asc", "price_desc", "year_desc", "newest".
	SortBy  string
	Page    int
	PerPage int
}

// Matches applies the filter to one vehicle. Shared by the in-memory store
// and the database-backed search fallback.
func (f VehicleFilter) Matches(v domain.Vehicle) bool {
	if f.MarketplaceOnly && !v.IsListedOnMarketplace() {
		return false
	}
	if f.Make != "" && !strings.EqualFold(f.Make, v.Make) {
		return false
	}
	if f.Model != "" && !strings.EqualFold(f.Model, v.Model) {
		return false
	}
	if f.MinYear > 0 && v.Year < f.MinYear {
		return false
	}
	if f.MaxYear > 0 && v.Year > f.MaxYear {
		return false
	}
	if f.MinPrice != nil && (v.Price == nil || *v.Price < *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && (v.Price == nil || *v.Price > *f.MaxPrice) {
		return false
	}
	if f.MaxMileage != nil && v.Mileage > *f.MaxMileage {
		return false
	}
	if f.FuelType != "" && !strings.EqualFold(f.FuelType, v.FuelType) {
		return false
	}
	if f.Transmission != "" && !strings.EqualFold(f.Transmission, v.Transmission) {
		return false
	}
	if f.BodyType != "" && !strings.EqualFold(f.BodyType, v.BodyType) {
		return false
	}
	if f.Location != "" && !strings.EqualFold(f.Location, v.Location) {
		return false
	}
	if f.ListingType != "" && v.ListingType != f.ListingType {
		return false
	}
	if f.VerificationState != "" && v.VerificationState != f.VerificationState {
		return false
	}
	if f.OwnerID != "" && v.OwnerID != f.OwnerID {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		haystack := strings.ToLower(v.Make + " " + v.Model + " " + v.Description)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// Sort orders vehicles in place according to SortBy, defaulting to newest
// first.
func (f VehicleFilter) Sort(vehicles []domain.Vehicle) {
	less := func(a, b domain.Vehicle) bool { return a.CreatedAt.After(b.CreatedAt) }
	switch f.SortBy {
	case "price_asc":
		less = func(a, b domain.Vehicle) bool { return priceOf(a) < priceOf(b) }
	case "price_desc":
		less = func(a, b domain.Vehicle) bool { return priceOf(a) > priceOf(b) }
	case "year_desc":
		less = func(a, b domain.Vehicle) bool { return a.Year > b.Year }
	}
	sort.SliceStable(vehicles, func(i, j int) bool { return less(vehicles[i], vehicles[j]) })
}

func priceOf(v domain.Vehicle) float64 {
	if v.Price != nil {
		return *v.Price
	}
	if v.ProposedPrice != nil {
		return *v.ProposedPrice
	}
	return 0
}

// Pagination returns the bounded page and page size.
func (f VehicleFilter) Pagination() (page, perPage int) {
	page = f.Page
	if page < 1 {
		page = 1
	}
	perPage = f.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// Store defines persistence for the marketplace.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	ListAdmins() ([]domain.User, error)
	UserCount() (int, error)

	// profiles and notification preferences
	SaveProfile(domain.Profile) error
	GetProfile(userID string) (domain.Profile, bool, error)
	SavePreference(domain.NotificationPreference) error
	GetPreference(userID string) (domain.NotificationPreference, bool, error)

	// vehicles
	SaveVehicle(domain.Vehicle) error
	GetVehicle(id string) (domain.Vehicle, bool, error)
	GetVehicleByVIN(vin string) (domain.Vehicle, bool, error)
	ListVehicles(filter VehicleFilter) ([]domain.Vehicle, int, error)
	DeleteVehicle(id string) error
	CountVehiclesByState() (map[domain.VerificationState]int, error)

	// vehicle images
	AddVehicleImage(domain.VehicleImage) error
	ListVehicleImages(vehicleID string) ([]domain.VehicleImage, error)
	DeleteVehicleImage(id string) (domain.VehicleImage, bool, error)

	// bids
	SaveBid(domain.Bid) error
	GetBid(id string) (domain.Bid, bool, error)
	ListBids() ([]domain.Bid, error)
	ListBidsByVehicle(vehicleID string) ([]domain.Bid, error)
	ListBidsByBidder(bidderID string) ([]domain.Bid, error)
	HighestBid(vehicleID string) (domain.Bid, bool, error)
	AcceptBid(id string, now time.Time) (domain.Bid, error)
	RejectBid(id string, now time.Time) (domain.Bid, error)

	// quote requests
	SaveQuote(domain.QuoteRequest) error
	GetQuote(id string) (domain.QuoteRequest, bool, error)
	ListQuotes() ([]domain.QuoteRequest, error)
	SetQuoteStatus(id string, status domain.QuoteStatus) error

	// saved searches
	SaveSearch(domain.VehicleSearch) error
	GetSearch(id string) (domain.VehicleSearch, bool, error)
	ListSearchesByUser(userID string) ([]domain.VehicleSearch, error)
	ListActiveSearches() ([]domain.VehicleSearch, error)
	DeleteSearch(id string) error

	// notifications
	SaveNotification(domain.Notification) error
	ListNotifications(userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkNotificationRead(id, userID string) error
	MarkAllNotificationsRead(userID string) error
	DeleteNotification(id, userID string) error
	UnreadNotificationCount(userID string) (int, error)

	// drafts
	SaveDraft(domain.VehicleDraft) error
	GetDraft(id string) (domain.VehicleDraft, bool, error)
	ListDraftsByOwner(ownerID string) ([]domain.VehicleDraft, error)
	DeleteDraft(id string) error
	DeleteExpiredDrafts(now time.Time) (int, error)

	// export audit
	SaveExportLog(domain.ExportLog) error
	ListExportLogs(limit int) ([]domain.ExportLog, error)
	SaveExportConfiguration(domain.ExportConfiguration) error
	ListExportConfigurations(userID string) ([]domain.ExportConfiguration, error)
}
