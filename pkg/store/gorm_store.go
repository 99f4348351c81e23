package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"autoeden/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{}, &ProfileModel{}, &NotificationPreferenceModel{},
		&VehicleModel{}, &VehicleImageModel{}, &BidModel{},
		&QuoteRequestModel{}, &VehicleSearchModel{}, &NotificationModel{},
		&VehicleDraftModel{}, &ExportLogModel{}, &ExportConfigurationModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "password_hash", "role", "status", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	return s.listUsers()
}

// ListAdmins returns users with the admin role.
func (s *GormStore) ListAdmins() ([]domain.User, error) {
	return s.listUsers("role = ?", string(domain.RoleAdmin))
}

func (s *GormStore) listUsers(conds ...any) ([]domain.User, error) {
	var models []UserModel
	tx := s.db.Order("created_at ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveProfile stores or updates a profile.
func (s *GormStore) SaveProfile(p domain.Profile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phone", "first_name", "last_name", "picture_key", "updated_at"}),
	}).Create(&model).Error
}

// GetProfile returns a profile by user ID.
func (s *GormStore) GetProfile(userID string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// SavePreference stores or updates channel opt-ins.
func (s *GormStore) SavePreference(p domain.NotificationPreference) error {
	model := NotificationPreferenceModel{
		UserID: p.UserID, Email: p.Email, WebSocket: p.WebSocket, WhatsApp: p.WhatsApp,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "web_socket", "whats_app"}),
	}).Create(&model).Error
}

// GetPreference returns channel opt-ins for a user.
func (s *GormStore) GetPreference(userID string) (domain.NotificationPreference, bool, error) {
	var model NotificationPreferenceModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.NotificationPreference{}, false, nil
		}
		return domain.NotificationPreference{}, false, err
	}
	return domain.NotificationPreference{
		UserID: model.UserID, Email: model.Email, WebSocket: model.WebSocket, WhatsApp: model.WhatsApp,
	}, true, nil
}

// SaveVehicle stores or updates a vehicle, enforcing VIN uniqueness.
func (s *GormStore) SaveVehicle(v domain.Vehicle) error {
	model := vehicleToModel(v)
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&VehicleModel{}).
			Where("vin = ? AND id <> ?", v.VIN, v.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateVIN
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"make", "model", "year", "vin", "mileage", "fuel_type",
				"transmission", "body_type", "location", "description",
				"listing_type", "price", "proposed_price", "is_visible",
				"verification_state", "rejection_reason", "reviewed_by",
				"reviewed_at", "updated_at",
			}),
		}).Create(&model).Error
	})
}

// GetVehicle retrieves a vehicle with its images.
func (s *GormStore) GetVehicle(id string) (domain.Vehicle, bool, error) {
	var model VehicleModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Vehicle{}, false, nil
		}
		return domain.Vehicle{}, false, err
	}
	vehicle := vehicleFromModel(model)
	images, err := s.ListVehicleImages(id)
	if err != nil {
		return domain.Vehicle{}, false, err
	}
	vehicle.Images = images
	return vehicle, true, nil
}

// GetVehicleByVIN retrieves a vehicle by VIN.
func (s *GormStore) GetVehicleByVIN(vin string) (domain.Vehicle, bool, error) {
	var model VehicleModel
	if err := s.db.First(&model, "vin = ?", vin).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Vehicle{}, false, nil
		}
		return domain.Vehicle{}, false, err
	}
	return vehicleFromModel(model), true, nil
}

// ListVehicles returns a filtered, sorted page plus the total match count.
func (s *GormStore) ListVehicles(filter VehicleFilter) ([]domain.Vehicle, int, error) {
	tx := s.db.Model(&VehicleModel{})
	tx = applyVehicleFilter(tx, filter)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, perPage := filter.Pagination()
	tx = tx.Order(vehicleOrderClause(filter.SortBy)).
		Offset((page - 1) * perPage).
		Limit(perPage)

	var models []VehicleModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, 0, err
	}
	vehicles := make([]domain.Vehicle, 0, len(models))
	for _, m := range models {
		vehicles = append(vehicles, vehicleFromModel(m))
	}
	if err := s.attachImages(vehicles); err != nil {
		return nil, 0, err
	}
	return vehicles, int(total), nil
}

func applyVehicleFilter(tx *gorm.DB, f VehicleFilter) *gorm.DB {
	if f.MarketplaceOnly {
		tx = tx.Where("listing_type = ? AND verification_state = ? AND is_visible",
			string(domain.ListingMarketplace), string(domain.VerificationPhysical))
	}
	if f.Make != "" {
		tx = tx.Where("LOWER(make) = LOWER(?)", f.Make)
	}
	if f.Model != "" {
		tx = tx.Where("LOWER(model) = LOWER(?)", f.Model)
	}
	if f.MinYear > 0 {
		tx = tx.Where("year >= ?", f.MinYear)
	}
	if f.MaxYear > 0 {
		tx = tx.Where("year <= ?", f.MaxYear)
	}
	if f.MinPrice != nil {
		tx = tx.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		tx = tx.Where("price <= ?", *f.MaxPrice)
	}
	if f.MaxMileage != nil {
		tx = tx.Where("mileage <= ?", *f.MaxMileage)
	}
	if f.FuelType != "" {
		tx = tx.Where("LOWER(fuel_type) = LOWER(?)", f.FuelType)
	}
	if f.Transmission != "" {
		tx = tx.Where("LOWER(transmission) = LOWER(?)", f.Transmission)
	}
	if f.BodyType != "" {
		tx = tx.Where("LOWER(body_type) = LOWER(?)", f.BodyType)
	}
	if f.Location != "" {
		tx = tx.Where("LOWER(location) = LOWER(?)", f.Location)
	}
	if f.ListingType != "" {
		tx = tx.Where("listing_type = ?", string(f.ListingType))
	}
	if f.VerificationState != "" {
		tx = tx.Where("verification_state = ?", string(f.VerificationState))
	}
	if f.OwnerID != "" {
		tx = tx.Where("owner_id = ?", f.OwnerID)
	}
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		tx = tx.Where("make ILIKE ? OR model ILIKE ? OR description ILIKE ?", pattern, pattern, pattern)
	}
	return tx
}

func vehicleOrderClause(sortBy string) string {
	switch sortBy {
	case "price_asc":
		return "price ASC NULLS LAST"
	case "price_desc":
		return "price DESC NULLS LAST"
	case "year_desc":
		return "year DESC"
	default:
		return "created_at DESC"
	}
}

func (s *GormStore) attachImages(vehicles []domain.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}
	ids := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		ids = append(ids, v.ID)
	}
	var models []VehicleImageModel
	if err := s.db.Where("vehicle_id IN ?", ids).Order("created_at ASC").Find(&models).Error; err != nil {
		return err
	}
	byVehicle := make(map[string][]domain.VehicleImage, len(vehicles))
	for _, m := range models {
		byVehicle[m.VehicleID] = append(byVehicle[m.VehicleID], imageFromModel(m))
	}
	for i := range vehicles {
		vehicles[i].Images = byVehicle[vehicles[i].ID]
	}
	return nil
}

// DeleteVehicle removes a vehicle with its images, bids and quotes.
func (s *GormStore) DeleteVehicle(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&VehicleImageModel{}, "vehicle_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&BidModel{}, "vehicle_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&QuoteRequestModel{}, "vehicle_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&VehicleModel{}, "id = ?", id).Error
	})
}

// CountVehiclesByState returns dashboard counts per verification state.
func (s *GormStore) CountVehiclesByState() (map[domain.VerificationState]int, error) {
	type row struct {
		VerificationState string
		Count             int
	}
	var rows []row
	if err := s.db.Model(&VehicleModel{}).
		Select("verification_state, COUNT(*) AS count").
		Group("verification_state").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.VerificationState]int, len(rows))
	for _, r := range rows {
		counts[domain.VerificationState(r.VerificationState)] = r.Count
	}
	return counts, nil
}

// AddVehicleImage records an uploaded image.
func (s *GormStore) AddVehicleImage(img domain.VehicleImage) error {
	model := VehicleImageModel{
		ID: img.ID, VehicleID: img.VehicleID, StorageKey: img.StorageKey, CreatedAt: img.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// ListVehicleImages returns a vehicle's images in upload order.
func (s *GormStore) ListVehicleImages(vehicleID string) ([]domain.VehicleImage, error) {
	var models []VehicleImageModel
	if err := s.db.Where("vehicle_id = ?", vehicleID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.VehicleImage, 0, len(models))
	for _, m := range models {
		res = append(res, imageFromModel(m))
	}
	return res, nil
}

// DeleteVehicleImage removes an image row and returns it for object cleanup.
func (s *GormStore) DeleteVehicleImage(id string) (domain.VehicleImage, bool, error) {
	var model VehicleImageModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.VehicleImage{}, false, nil
		}
		return domain.VehicleImage{}, false, err
	}
	if err := s.db.Delete(&VehicleImageModel{}, "id = ?", id).Error; err != nil {
		return domain.VehicleImage{}, false, err
	}
	return imageFromModel(model), true, nil
}

// SaveBid stores or updates a bid.
func (s *GormStore) SaveBid(b domain.Bid) error {
	model := bidToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&model).Error
}

// GetBid retrieves a bid.
func (s *GormStore) GetBid(id string) (domain.Bid, bool, error) {
	var model BidModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Bid{}, false, nil
		}
		return domain.Bid{}, false, err
	}
	return bidFromModel(model), true, nil
}

// ListBids returns every bid, newest first. Used by admin exports.
func (s *GormStore) ListBids() ([]domain.Bid, error) {
	return s.listBids("created_at DESC")
}

// ListBidsByVehicle returns bids on a vehicle, highest first.
func (s *GormStore) ListBidsByVehicle(vehicleID string) ([]domain.Bid, error) {
	return s.listBids("amount DESC", "vehicle_id = ?", vehicleID)
}

// ListBidsByBidder returns a user's bids, newest first.
func (s *GormStore) ListBidsByBidder(bidderID string) ([]domain.Bid, error) {
	return s.listBids("created_at DESC", "bidder_id = ?", bidderID)
}

func (s *GormStore) listBids(order string, conds ...any) ([]domain.Bid, error) {
	var models []BidModel
	tx := s.db.Order(order)
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Bid, 0, len(models))
	for _, m := range models {
		res = append(res, bidFromModel(m))
	}
	return res, nil
}

// HighestBid returns the top bid on a vehicle.
func (s *GormStore) HighestBid(vehicleID string) (domain.Bid, bool, error) {
	var model BidModel
	if err := s.db.Where("vehicle_id = ?", vehicleID).Order("amount DESC").First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Bid{}, false, nil
		}
		return domain.Bid{}, false, err
	}
	return bidFromModel(model), true, nil
}

// AcceptBid accepts a pending bid and rejects its pending siblings.
// The conditional update serializes concurrent accepts: only the first one
// flips the row, the rest observe ErrBidNotPending.
func (s *GormStore) AcceptBid(id string, now time.Time) (domain.Bid, error) {
	return s.decideBid(id, domain.BidAccepted, now)
}

// RejectBid rejects a pending bid.
func (s *GormStore) RejectBid(id string, now time.Time) (domain.Bid, error) {
	return s.decideBid(id, domain.BidRejected, now)
}

func (s *GormStore) decideBid(id string, status domain.BidStatus, now time.Time) (domain.Bid, error) {
	var decided BidModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BidModel{}).
			Where("id = ? AND status = ?", id, string(domain.BidPending)).
			Updates(map[string]any{"status": string(status), "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&BidModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrBidNotPending
		}
		if err := tx.First(&decided, "id = ?", id).Error; err != nil {
			return err
		}
		if status == domain.BidAccepted {
			return tx.Model(&BidModel{}).
				Where("vehicle_id = ? AND status = ? AND id <> ?", decided.VehicleID, string(domain.BidPending), id).
				Updates(map[string]any{"status": string(domain.BidRejected), "updated_at": now}).Error
		}
		return nil
	})
	if err != nil {
		return domain.Bid{}, err
	}
	return bidFromModel(decided), nil
}

// SaveQuote stores a quote request.
func (s *GormStore) SaveQuote(q domain.QuoteRequest) error {
	model := quoteToModel(q)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(&model).Error
}

// GetQuote retrieves a quote request.
func (s *GormStore) GetQuote(id string) (domain.QuoteRequest, bool, error) {
	var model QuoteRequestModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.QuoteRequest{}, false, nil
		}
		return domain.QuoteRequest{}, false, err
	}
	return quoteFromModel(model), true, nil
}

// ListQuotes returns all quote requests, newest first.
func (s *GormStore) ListQuotes() ([]domain.QuoteRequest, error) {
	var models []QuoteRequestModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.QuoteRequest, 0, len(models))
	for _, m := range models {
		res = append(res, quoteFromModel(m))
	}
	return res, nil
}

// SetQuoteStatus updates a quote request's processing status.
func (s *GormStore) SetQuoteStatus(id string, status domain.QuoteStatus) error {
	return s.db.Model(&QuoteRequestModel{}).Where("id = ?", id).
		Update("status", string(status)).Error
}

// SaveSearch stores or updates a saved search.
func (s *GormStore) SaveSearch(search domain.VehicleSearch) error {
	model := searchToModel(search)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"make", "model", "min_year", "max_year", "max_price", "max_mileage",
			"status", "match_count", "last_matched",
		}),
	}).Create(&model).Error
}

// GetSearch retrieves a saved search.
func (s *GormStore) GetSearch(id string) (domain.VehicleSearch, bool, error) {
	var model VehicleSearchModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.VehicleSearch{}, false, nil
		}
		return domain.VehicleSearch{}, false, err
	}
	return searchFromModel(model), true, nil
}

// ListSearchesByUser returns a user's saved searches.
func (s *GormStore) ListSearchesByUser(userID string) ([]domain.VehicleSearch, error) {
	return s.listSearches("user_id = ?", userID)
}

// ListActiveSearches returns all active searches across users.
func (s *GormStore) ListActiveSearches() ([]domain.VehicleSearch, error) {
	return s.listSearches("status = ?", string(domain.SearchActive))
}

func (s *GormStore) listSearches(conds ...any) ([]domain.VehicleSearch, error) {
	var models []VehicleSearchModel
	tx := s.db.Order("created_at DESC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.VehicleSearch, 0, len(models))
	for _, m := range models {
		res = append(res, searchFromModel(m))
	}
	return res, nil
}

// DeleteSearch removes a saved search.
func (s *GormStore) DeleteSearch(id string) error {
	return s.db.Delete(&VehicleSearchModel{}, "id = ?", id).Error
}

// SaveNotification records an in-app notification.
func (s *GormStore) SaveNotification(n domain.Notification) error {
	model := notificationToModel(n)
	return s.db.Create(&model).Error
}

// ListNotifications returns a user's notifications, newest first.
func (s *GormStore) ListNotifications(userID string, unreadOnly bool) ([]domain.Notification, error) {
	tx := s.db.Where("user_id = ?", userID).Order("created_at DESC")
	if unreadOnly {
		tx = tx.Where("is_read = ?", false)
	}
	var models []NotificationModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Notification, 0, len(models))
	for _, m := range models {
		res = append(res, notificationFromModel(m))
	}
	return res, nil
}

// MarkNotificationRead marks one of the user's notifications as read.
func (s *GormStore) MarkNotificationRead(id, userID string) error {
	res := s.db.Model(&NotificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every notification for the user as read.
func (s *GormStore) MarkAllNotificationsRead(userID string) error {
	return s.db.Model(&NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

// DeleteNotification removes one of the user's notifications.
func (s *GormStore) DeleteNotification(id, userID string) error {
	res := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&NotificationModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadNotificationCount counts unread notifications for a user.
func (s *GormStore) UnreadNotificationCount(userID string) (int, error) {
	var count int64
	if err := s.db.Model(&NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveDraft stores or updates a draft.
func (s *GormStore) SaveDraft(d domain.VehicleDraft) error {
	model, err := draftToModel(d)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&model).Error
}

// GetDraft retrieves a draft.
func (s *GormStore) GetDraft(id string) (domain.VehicleDraft, bool, error) {
	var model VehicleDraftModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.VehicleDraft{}, false, nil
		}
		return domain.VehicleDraft{}, false, err
	}
	draft, err := draftFromModel(model)
	if err != nil {
		return domain.VehicleDraft{}, false, err
	}
	return draft, true, nil
}

// ListDraftsByOwner returns a user's drafts, most recently edited first.
func (s *GormStore) ListDraftsByOwner(ownerID string) ([]domain.VehicleDraft, error) {
	var models []VehicleDraftModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.VehicleDraft, 0, len(models))
	for _, m := range models {
		draft, err := draftFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, draft)
	}
	return res, nil
}

// DeleteDraft removes a draft.
func (s *GormStore) DeleteDraft(id string) error {
	return s.db.Delete(&VehicleDraftModel{}, "id = ?", id).Error
}

// DeleteExpiredDrafts removes drafts past the retention window.
func (s *GormStore) DeleteExpiredDrafts(now time.Time) (int, error) {
	res := s.db.Delete(&VehicleDraftModel{}, "created_at < ?", now.Add(-domain.DraftExpiry))
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// SaveExportLog records an export audit row.
func (s *GormStore) SaveExportLog(l domain.ExportLog) error {
	model := ExportLogModel{
		ID: l.ID, UserID: l.UserID, ExportType: l.ExportType, DataType: l.DataType,
		RecordCount: l.RecordCount, Filters: l.Filters, IPAddress: l.IPAddress,
		CreatedAt: l.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// ListExportLogs returns the most recent export audit rows.
func (s *GormStore) ListExportLogs(limit int) ([]domain.ExportLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []ExportLogModel
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ExportLog, 0, len(models))
	for _, m := range models {
		res = append(res, domain.ExportLog{
			ID: m.ID, UserID: m.UserID, ExportType: m.ExportType, DataType: m.DataType,
			RecordCount: m.RecordCount, Filters: m.Filters, IPAddress: m.IPAddress,
			CreatedAt: m.CreatedAt,
		})
	}
	return res, nil
}

// SaveExportConfiguration stores a saved column set.
func (s *GormStore) SaveExportConfiguration(c domain.ExportConfiguration) error {
	columns, err := json.Marshal(c.Columns)
	if err != nil {
		return err
	}
	model := ExportConfigurationModel{
		ID: c.ID, UserID: c.UserID, Name: c.Name, DataType: c.DataType,
		Columns: datatypes.JSON(columns), CreatedAt: c.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// ListExportConfigurations returns a user's saved column sets.
func (s *GormStore) ListExportConfigurations(userID string) ([]domain.ExportConfiguration, error) {
	var models []ExportConfigurationModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ExportConfiguration, 0, len(models))
	for _, m := range models {
		var columns []string
		if err := json.Unmarshal(m.Columns, &columns); err != nil {
			return nil, err
		}
		res = append(res, domain.ExportConfiguration{
			ID: m.ID, UserID: m.UserID, Name: m.Name, DataType: m.DataType,
			Columns: columns, CreatedAt: m.CreatedAt,
		})
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       domain.UserStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func profileToModel(p domain.Profile) ProfileModel {
	return ProfileModel{
		UserID:     p.UserID,
		Phone:      p.Phone,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		PictureKey: p.PictureKey,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	return domain.Profile{
		UserID:     m.UserID,
		Phone:      m.Phone,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		PictureKey: m.PictureKey,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func vehicleToModel(v domain.Vehicle) VehicleModel {
	return VehicleModel{
		ID:                v.ID,
		OwnerID:           v.OwnerID,
		Make:              v.Make,
		Model:             v.Model,
		Year:              v.Year,
		VIN:               v.VIN,
		Mileage:           v.Mileage,
		FuelType:          v.FuelType,
		Transmission:      v.Transmission,
		BodyType:          v.BodyType,
		Location:          v.Location,
		Description:       v.Description,
		ListingType:       string(v.ListingType),
		Price:             v.Price,
		ProposedPrice:     v.ProposedPrice,
		IsVisible:         v.IsVisible,
		VerificationState: string(v.VerificationState),
		RejectionReason:   v.RejectionReason,
		ReviewedBy:        v.ReviewedBy,
		ReviewedAt:        v.ReviewedAt,
		CreatedAt:         v.CreatedAt,
		UpdatedAt:         v.UpdatedAt,
	}
}

func vehicleFromModel(m VehicleModel) domain.Vehicle {
	return domain.Vehicle{
		ID:                m.ID,
		OwnerID:           m.OwnerID,
		Make:              m.Make,
		Model:             m.Model,
		Year:              m.Year,
		VIN:               m.VIN,
		Mileage:           m.Mileage,
		FuelType:          m.FuelType,
		Transmission:      m.Transmission,
		BodyType:          m.BodyType,
		Location:          m.Location,
		Description:       m.Description,
		ListingType:       domain.ListingType(m.ListingType),
		Price:             m.Price,
		ProposedPrice:     m.ProposedPrice,
		IsVisible:         m.IsVisible,
		VerificationState: domain.VerificationState(m.VerificationState),
		RejectionReason:   m.RejectionReason,
		ReviewedBy:        m.ReviewedBy,
		ReviewedAt:        m.ReviewedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func imageFromModel(m VehicleImageModel) domain.VehicleImage {
	return domain.VehicleImage{
		ID:         m.ID,
		VehicleID:  m.VehicleID,
		StorageKey: m.StorageKey,
		CreatedAt:  m.CreatedAt,
	}
}

func bidToModel(b domain.Bid) BidModel {
	return BidModel{
		ID:        b.ID,
		VehicleID: b.VehicleID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		Message:   b.Message,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func bidFromModel(m BidModel) domain.Bid {
	return domain.Bid{
		ID:        m.ID,
		VehicleID: m.VehicleID,
		BidderID:  m.BidderID,
		Amount:    m.Amount,
		Message:   m.Message,
		Status:    domain.BidStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func quoteToModel(q domain.QuoteRequest) QuoteRequestModel {
	return QuoteRequestModel{
		ID:        q.ID,
		VehicleID: q.VehicleID,
		UserID:    q.UserID,
		FullName:  q.FullName,
		Email:     q.Email,
		Country:   q.Country,
		City:      q.City,
		Address:   q.Address,
		Telephone: q.Telephone,
		Note:      q.Note,
		Status:    string(q.Status),
		CreatedAt: q.CreatedAt,
	}
}

func quoteFromModel(m QuoteRequestModel) domain.QuoteRequest {
	return domain.QuoteRequest{
		ID:        m.ID,
		VehicleID: m.VehicleID,
		UserID:    m.UserID,
		FullName:  m.FullName,
		Email:     m.Email,
		Country:   m.Country,
		City:      m.City,
		Address:   m.Address,
		Telephone: m.Telephone,
		Note:      m.Note,
		Status:    domain.QuoteStatus(m.Status),
		CreatedAt: m.CreatedAt,
	}
}

func searchToModel(s domain.VehicleSearch) VehicleSearchModel {
	return VehicleSearchModel{
		ID:          s.ID,
		UserID:      s.UserID,
		Make:        s.Make,
		Model:       s.Model,
		MinYear:     s.MinYear,
		MaxYear:     s.MaxYear,
		MaxPrice:    s.MaxPrice,
		MaxMileage:  s.MaxMileage,
		Status:      string(s.Status),
		MatchCount:  s.MatchCount,
		LastMatched: s.LastMatched,
		CreatedAt:   s.CreatedAt,
	}
}

func searchFromModel(m VehicleSearchModel) domain.VehicleSearch {
	return domain.VehicleSearch{
		ID:          m.ID,
		UserID:      m.UserID,
		Make:        m.Make,
		Model:       m.Model,
		MinYear:     m.MinYear,
		MaxYear:     m.MaxYear,
		MaxPrice:    m.MaxPrice,
		MaxMileage:  m.MaxMileage,
		Status:      domain.SearchStatus(m.Status),
		MatchCount:  m.MatchCount,
		LastMatched: m.LastMatched,
		CreatedAt:   m.CreatedAt,
	}
}

func notificationToModel(n domain.Notification) NotificationModel {
	return NotificationModel{
		ID:              n.ID,
		UserID:          n.UserID,
		Type:            string(n.Type),
		Message:         n.Message,
		RelatedObjectID: n.RelatedObjectID,
		IsRead:          n.IsRead,
		CreatedAt:       n.CreatedAt,
	}
}

func notificationFromModel(m NotificationModel) domain.Notification {
	return domain.Notification{
		ID:              m.ID,
		UserID:          m.UserID,
		Type:            domain.NotificationType(m.Type),
		Message:         m.Message,
		RelatedObjectID: m.RelatedObjectID,
		IsRead:          m.IsRead,
		CreatedAt:       m.CreatedAt,
	}
}

func draftToModel(d domain.VehicleDraft) (VehicleDraftModel, error) {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return VehicleDraftModel{}, err
	}
	return VehicleDraftModel{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Payload:   datatypes.JSON(payload),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func draftFromModel(m VehicleDraftModel) (domain.VehicleDraft, error) {
	var payload map[string]any
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return domain.VehicleDraft{}, err
		}
	}
	return domain.VehicleDraft{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Payload:   payload,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
