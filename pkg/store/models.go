package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null;index"`
	Status       string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type ProfileModel struct {
	UserID     string `gorm:"primaryKey"`
	Phone      string
	FirstName  string
	LastName   string
	PictureKey string
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

type NotificationPreferenceModel struct {
	UserID    string `gorm:"primaryKey"`
	Email     bool   `gorm:"not null"`
	WebSocket bool   `gorm:"not null"`
	WhatsApp  bool   `gorm:"not null"`
}

type VehicleModel struct {
	ID                string `gorm:"primaryKey"`
	OwnerID           string `gorm:"not null;index"`
	Make              string `gorm:"not null;index"`
	Model             string `gorm:"not null;index"`
	Year              int    `gorm:"not null;index"`
	VIN               string `gorm:"uniqueIndex;not null"`
	Mileage           int    `gorm:"not null"`
	FuelType          string
	Transmission      string
	BodyType          string
	Location          string
	Description       string
	ListingType       string `gorm:"not null;index"`
	Price             *float64
	ProposedPrice     *float64
	IsVisible         bool   `gorm:"not null"`
	VerificationState string `gorm:"not null;index"`
	RejectionReason   string
	ReviewedBy        string
	ReviewedAt        *time.Time
	CreatedAt         time.Time `gorm:"not null;index"`
	UpdatedAt         time.Time `gorm:"not null"`
}

type VehicleImageModel struct {
	ID         string    `gorm:"primaryKey"`
	VehicleID  string    `gorm:"not null;index"`
	StorageKey string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type BidModel struct {
	ID        string  `gorm:"primaryKey"`
	VehicleID string  `gorm:"not null;index"`
	BidderID  string  `gorm:"not null;index"`
	Amount    float64 `gorm:"not null"`
	Message   string
	Status    string    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type QuoteRequestModel struct {
	ID        string `gorm:"primaryKey"`
	VehicleID string `gorm:"not null;index"`
	UserID    string `gorm:"index"`
	FullName  string `gorm:"not null"`
	Email     string `gorm:"not null"`
	Country   string
	City      string
	Address   string
	Telephone string `gorm:"not null"`
	Note      string
	Status    string    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

type VehicleSearchModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Make        string `gorm:"not null"`
	Model       string `gorm:"not null"`
	MinYear     int
	MaxYear     int
	MaxPrice    float64
	MaxMileage  int
	Status      string `gorm:"not null;index"`
	MatchCount  int
	LastMatched *time.Time
	CreatedAt   time.Time `gorm:"not null"`
}

type NotificationModel struct {
	ID              string `gorm:"primaryKey"`
	UserID          string `gorm:"not null;index"`
	Type            string `gorm:"not null"`
	Message         string `gorm:"not null"`
	RelatedObjectID string
	IsRead          bool      `gorm:"not null;index"`
	CreatedAt       time.Time `gorm:"not null;index"`
}

type VehicleDraftModel struct {
	ID        string         `gorm:"primaryKey"`
	OwnerID   string         `gorm:"not null;index"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type ExportLogModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	ExportType  string `gorm:"not null"`
	DataType    string `gorm:"not null"`
	RecordCount int    `gorm:"not null"`
	Filters     string
	IPAddress   string
	CreatedAt   time.Time `gorm:"not null;index"`
}

type ExportConfigurationModel struct {
	ID        string         `gorm:"primaryKey"`
	UserID    string         `gorm:"not null;index"`
	Name      string         `gorm:"not null"`
	DataType  string         `gorm:"not null"`
	Columns   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
