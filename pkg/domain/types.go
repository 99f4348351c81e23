package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ListingType distinguishes open-marketplace listings from instant-sale offers.
type ListingType string

const (
	ListingMarketplace ListingType = "marketplace"
	ListingInstantSale ListingType = "instant_sale"
)

// VerificationState is the admin review stage of a vehicle listing.
// It is the single source of truth; the boolean accessors are derived.
type VerificationState string

const (
	VerificationPending  VerificationState = "pending"
	VerificationDigital  VerificationState = "digital"
	VerificationPhysical VerificationState = "physical"
	VerificationRejected VerificationState = "rejected"
)

// UserRole defines access level.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// UserStatus defines account state.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// User is a registered account.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Profile extends a user with contact details.
type Profile struct {
	UserID     string    `json:"userId"`
	Phone      string    `json:"phone"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	PictureKey string    `json:"pictureKey,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NotificationPreference holds per-channel opt-ins for a user.
type NotificationPreference struct {
	UserID    string `json:"userId"`
	Email     bool   `json:"email"`
	WebSocket bool   `json:"websocket"`
	WhatsApp  bool   `json:"whatsapp"`
}

// DefaultNotificationPreference opts a new user into email and websocket.
func DefaultNotificationPreference(userID string) NotificationPreference {
	return NotificationPreference{UserID: userID, Email: true, WebSocket: true, WhatsApp: false}
}

// Vehicle is a listing submitted by an owner and reviewed by admins.
type Vehicle struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"ownerId"`
	Make              string            `json:"make"`
	Model             string            `json:"model"`
	Year              int               `json:"year"`
	VIN               string            `json:"vin"`
	Mileage           int               `json:"mileage"`
	FuelType          string            `json:"fuelType,omitempty"`
	Transmission      string            `json:"transmission,omitempty"`
	BodyType          string            `json:"bodyType,omitempty"`
	Location          string            `json:"location,omitempty"`
	Description       string            `json:"description,omitempty"`
	ListingType       ListingType       `json:"listingType"`
	Price             *float64          `json:"price,omitempty"`
	ProposedPrice     *float64          `json:"proposedPrice,omitempty"`
	IsVisible         bool              `json:"isVisible"`
	VerificationState VerificationState `json:"verificationState"`
	RejectionReason   string            `json:"rejectionReason,omitempty"`
	ReviewedBy        string            `json:"reviewedBy,omitempty"`
	ReviewedAt        *time.Time        `json:"reviewedAt,omitempty"`
	Images            []VehicleImage    `json:"images,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// IsDigitallyVerified reports the digital review stage. Derived, never stored.
func (v Vehicle) IsDigitallyVerified() bool { return v.VerificationState == VerificationDigital }

// IsPhysicallyVerified reports the physical review stage. Derived, never stored.
func (v Vehicle) IsPhysicallyVerified() bool { return v.VerificationState == VerificationPhysical }

// IsRejected reports the rejected review stage. Derived, never stored.
func (v Vehicle) IsRejected() bool { return v.VerificationState == VerificationRejected }

// IsListedOnMarketplace reports whether the vehicle appears in public
// marketplace queries.
func (v Vehicle) IsListedOnMarketplace() bool {
	return v.ListingType == ListingMarketplace &&
		v.VerificationState == VerificationPhysical &&
		v.IsVisible
}

// Validate enforces pricing-by-listing-type and required identity fields.
func (v Vehicle) Validate() error {
	fields := FieldErrors{}
	if strings.TrimSpace(v.Make) == "" {
		fields["make"] = "make is required"
	}
	if strings.TrimSpace(v.Model) == "" {
		fields["model"] = "model is required"
	}
	if v.Year <= 0 {
		fields["year"] = "year is required"
	}
	if strings.TrimSpace(v.VIN) == "" {
		fields["vin"] = "vin is required"
	} else if len(v.VIN) > 17 {
		fields["vin"] = "vin must be at most 17 characters"
	}
	if v.Mileage < 0 {
		fields["mileage"] = "mileage must not be negative"
	}
	switch v.ListingType {
	case ListingMarketplace:
		if v.Price == nil {
			fields["price"] = "price is required for marketplace listings"
		}
	case ListingInstantSale:
		if v.ProposedPrice == nil {
			fields["proposedPrice"] = "proposed price is required for instant sale"
		}
	default:
		fields["listingType"] = "listing type must be marketplace or instant_sale"
	}
	if v.VerificationState == VerificationRejected && strings.TrimSpace(v.RejectionReason) == "" {
		fields["rejectionReason"] = "rejection reason is required when rejected"
	}
	if v.VerificationState != VerificationRejected && strings.TrimSpace(v.RejectionReason) != "" {
		fields["rejectionReason"] = "rejection reason must be empty unless rejected"
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

// VehicleImage is an attachment owned by exactly one vehicle.
type VehicleImage struct {
	ID         string    `json:"id"`
	VehicleID  string    `json:"vehicleId"`
	StorageKey string    `json:"storageKey"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BidStatus tracks a bid through admin processing.
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
)

// Bid is an offer on a marketplace vehicle. Amount is immutable once placed.
type Bid struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicleId"`
	BidderID  string    `json:"bidderId"`
	Amount    float64   `json:"amount"`
	Message   string    `json:"message,omitempty"`
	Status    BidStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// QuoteStatus tracks a quote request through admin processing.
type QuoteStatus string

const (
	QuotePending   QuoteStatus = "pending"
	QuoteReviewed  QuoteStatus = "reviewed"
	QuoteQuoted    QuoteStatus = "quoted"
	QuoteConverted QuoteStatus = "converted"
	QuoteExpired   QuoteStatus = "expired"
)

// QuoteValidity is how long a generated quote remains valid.
const QuoteValidity = 24 * time.Hour

// QuoteRequest is a customer's request for a priced quote on a vehicle.
// Expiry is derived from CreatedAt, never stored.
type QuoteRequest struct {
	ID        string      `json:"id"`
	VehicleID string      `json:"vehicleId"`
	UserID    string      `json:"userId,omitempty"`
	FullName  string      `json:"fullName"`
	Email     string      `json:"email"`
	Country   string      `json:"country"`
	City      string      `json:"city"`
	Address   string      `json:"address"`
	Telephone string      `json:"telephone"`
	Note      string      `json:"note,omitempty"`
	Status    QuoteStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ExpiresAt returns the end of the quote validity window.
func (q QuoteRequest) ExpiresAt() time.Time { return q.CreatedAt.Add(QuoteValidity) }

// IsExpired reports whether the validity window has elapsed.
func (q QuoteRequest) IsExpired(now time.Time) bool { return now.After(q.ExpiresAt()) }

// TimeRemaining returns the remaining validity, floored at zero.
func (q QuoteRequest) TimeRemaining(now time.Time) time.Duration {
	remaining := q.ExpiresAt().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Validate checks required customer contact fields.
func (q QuoteRequest) Validate() error {
	fields := FieldErrors{}
	if strings.TrimSpace(q.FullName) == "" {
		fields["fullName"] = "full name is required"
	}
	if strings.TrimSpace(q.Email) == "" {
		fields["email"] = "email is required"
	}
	if strings.TrimSpace(q.Telephone) == "" {
		fields["telephone"] = "telephone is required"
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

// SearchStatus tracks a saved search.
type SearchStatus string

const (
	SearchActive  SearchStatus = "active"
	SearchPaused  SearchStatus = "paused"
	SearchMatched SearchStatus = "matched"
)

// VehicleSearch is a saved search that is matched against new listings.
type VehicleSearch struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Make        string       `json:"make"`
	Model       string       `json:"model"`
	MinYear     int          `json:"minYear"`
	MaxYear     int          `json:"maxYear"`
	MaxPrice    float64      `json:"maxPrice"`
	MaxMileage  int          `json:"maxMileage"`
	Status      SearchStatus `json:"status"`
	MatchCount  int          `json:"matchCount"`
	LastMatched *time.Time   `json:"lastMatched,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Matches reports whether a newly created vehicle satisfies this search.
// Only priced marketplace listings are eligible.
func (s VehicleSearch) Matches(v Vehicle) bool {
	if s.Status != SearchActive {
		return false
	}
	if v.ListingType != ListingMarketplace || v.Price == nil {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(s.Make), strings.TrimSpace(v.Make)) {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(s.Model), strings.TrimSpace(v.Model)) {
		return false
	}
	if v.Year < s.MinYear || v.Year > s.MaxYear {
		return false
	}
	if *v.Price > s.MaxPrice {
		return false
	}
	if v.Mileage > s.MaxMileage {
		return false
	}
	return true
}

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotifyApproval     NotificationType = "approval"
	NotifyRejection    NotificationType = "rejection"
	NotifyRegistration NotificationType = "registration"
	NotifyInstantSale  NotificationType = "instant_sale"
	NotifyBid          NotificationType = "bid"
	NotifyAdminAlert   NotificationType = "admin_alert"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Type            NotificationType `json:"type"`
	Message         string           `json:"message"`
	RelatedObjectID string           `json:"relatedObjectId,omitempty"`
	IsRead          bool             `json:"isRead"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// DraftExpiry is how long an unpublished draft is kept.
const DraftExpiry = 30 * 24 * time.Hour

// draftRequiredFields drive the completion percentage of a draft.
var draftRequiredFields = []string{
	"make", "model", "year", "vin", "mileage", "listingType", "price",
}

// VehicleDraft is an in-progress listing stored as free-form data.
type VehicleDraft struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"ownerId"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// CompletionPercent reports how many of the required listing fields the
// draft payload already fills in.
func (d VehicleDraft) CompletionPercent() int {
	if len(d.Payload) == 0 {
		return 0
	}
	filled := 0
	for _, field := range draftRequiredFields {
		value, ok := d.Payload[field]
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		filled++
	}
	return filled * 100 / len(draftRequiredFields)
}

// ExpiresAt returns when the draft is discarded.
func (d VehicleDraft) ExpiresAt() time.Time { return d.CreatedAt.Add(DraftExpiry) }

// IsExpired reports whether the draft retention window elapsed.
func (d VehicleDraft) IsExpired(now time.Time) bool { return now.After(d.ExpiresAt()) }

// ExportLog is the audit trail row for one admin export.
type ExportLog struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ExportType  string    `json:"exportType"`
	DataType    string    `json:"dataType"`
	RecordCount int       `json:"recordCount"`
	Filters     string    `json:"filters,omitempty"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ExportConfiguration is a saved column set for admin exports.
type ExportConfiguration struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	DataType  string    `json:"dataType"`
	Columns   []string  `json:"columns"`
	CreatedAt time.Time `json:"createdAt"`
}

// FieldErrors carries per-field validation messages and maps to HTTP 400.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return strings.Join(parts, "; ")
}
