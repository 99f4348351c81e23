package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"autoeden/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development without Postgres.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	emails        map[string]string // email -> user ID
	profiles      map[string]domain.Profile
	preferences   map[string]domain.NotificationPreference
	vehicles      map[string]domain.Vehicle
	vins          map[string]string // vin -> vehicle ID
	images        map[string]domain.VehicleImage
	bids          map[string]domain.Bid
	quotes        map[string]domain.QuoteRequest
	searches      map[string]domain.VehicleSearch
	notifications map[string]domain.Notification
	drafts        map[string]domain.VehicleDraft
	exportLogs    []domain.ExportLog
	exportConfigs map[string]domain.ExportConfiguration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		emails:        make(map[string]string),
		profiles:      make(map[string]domain.Profile),
		preferences:   make(map[string]domain.NotificationPreference),
		vehicles:      make(map[string]domain.Vehicle),
		vins:          make(map[string]string),
		images:        make(map[string]domain.VehicleImage),
		bids:          make(map[string]domain.Bid),
		quotes:        make(map[string]domain.QuoteRequest),
		searches:      make(map[string]domain.VehicleSearch),
		notifications: make(map[string]domain.Notification),
		drafts:        make(map[string]domain.VehicleDraft),
		exportConfigs: make(map[string]domain.ExportConfiguration),
	}
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.users[u.ID]; ok && old.Email != u.Email {
		delete(m.emails, old.Email)
	}
	m.users[u.ID] = u
	m.emails[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.emails[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.emails[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns all users ordered by creation time.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listUsersLocked(func(domain.User) bool { return true }), nil
}

// ListAdmins returns users with the admin role.
func (m *MemoryStore) ListAdmins() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listUsersLocked(func(u domain.User) bool { return u.Role == domain.RoleAdmin }), nil
}

func (m *MemoryStore) listUsersLocked(keep func(domain.User) bool) []domain.User {
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if keep(u) {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// SaveProfile stores or updates a profile.
func (m *MemoryStore) SaveProfile(p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

// GetProfile returns a profile by user ID.
func (m *MemoryStore) GetProfile(userID string) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

// SavePreference stores or updates channel opt-ins.
func (m *MemoryStore) SavePreference(p domain.NotificationPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferences[p.UserID] = p
	return nil
}

// GetPreference returns channel opt-ins for a user.
func (m *MemoryStore) GetPreference(userID string) (domain.NotificationPreference, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.preferences[userID]
	return p, ok, nil
}

// SaveVehicle stores or updates a vehicle, enforcing VIN uniqueness.
func (m *MemoryStore) SaveVehicle(v domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ownerID, ok := m.vins[v.VIN]; ok && ownerID != v.ID {
		return ErrDuplicateVIN
	}
	if old, ok := m.vehicles[v.ID]; ok && old.VIN != v.VIN {
		delete(m.vins, old.VIN)
	}
	v.Images = nil // images live in their own table
	m.vehicles[v.ID] = v
	m.vins[v.VIN] = v.ID
	return nil
}

// GetVehicle retrieves a vehicle with its images.
func (m *MemoryStore) GetVehicle(id string) (domain.Vehicle, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	if !ok {
		return domain.Vehicle{}, false, nil
	}
	v.Images = m.imagesLocked(id)
	return v, true, nil
}

// GetVehicleByVIN retrieves a vehicle by VIN.
func (m *MemoryStore) GetVehicleByVIN(vin string) (domain.Vehicle, bool, error) {
	m.mu.RLock()
	id, ok := m.vins[vin]
	m.mu.RUnlock()
	if !ok {
		return domain.Vehicle{}, false, nil
	}
	return m.GetVehicle(id)
}

// ListVehicles returns a filtered, sorted page plus the total match count.
func (m *MemoryStore) ListVehicles(filter VehicleFilter) ([]domain.Vehicle, int, error) {
	m.mu.RLock()
	matched := make([]domain.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		if filter.Matches(v) {
			v.Images = m.imagesLocked(v.ID)
			matched = append(matched, v)
		}
	}
	m.mu.RUnlock()

	filter.Sort(matched)
	total := len(matched)
	page, perPage := filter.Pagination()
	start := (page - 1) * perPage
	if start >= total {
		return []domain.Vehicle{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// DeleteVehicle removes a vehicle with its images, bids and quotes.
func (m *MemoryStore) DeleteVehicle(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.vehicles[id]; ok {
		delete(m.vins, v.VIN)
	}
	delete(m.vehicles, id)
	for imgID, img := range m.images {
		if img.VehicleID == id {
			delete(m.images, imgID)
		}
	}
	for bidID, b := range m.bids {
		if b.VehicleID == id {
			delete(m.bids, bidID)
		}
	}
	for quoteID, q := range m.quotes {
		if q.VehicleID == id {
			delete(m.quotes, quoteID)
		}
	}
	return nil
}

// CountVehiclesByState returns dashboard counts per verification state.
func (m *MemoryStore) CountVehiclesByState() (map[domain.VerificationState]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.VerificationState]int)
	for _, v := range m.vehicles {
		counts[v.VerificationState]++
	}
	return counts, nil
}

// AddVehicleImage records an uploaded image.
func (m *MemoryStore) AddVehicleImage(img domain.VehicleImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[img.ID] = img
	return nil
}

// ListVehicleImages returns a vehicle's images in upload order.
func (m *MemoryStore) ListVehicleImages(vehicleID string) ([]domain.VehicleImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.imagesLocked(vehicleID), nil
}

func (m *MemoryStore) imagesLocked(vehicleID string) []domain.VehicleImage {
	var res []domain.VehicleImage
	for _, img := range m.images {
		if img.VehicleID == vehicleID {
			res = append(res, img)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res
}

// DeleteVehicleImage removes an image row and returns it for object cleanup.
func (m *MemoryStore) DeleteVehicleImage(id string) (domain.VehicleImage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return domain.VehicleImage{}, false, nil
	}
	delete(m.images, id)
	return img, true, nil
}

// SaveBid stores or updates a bid.
func (m *MemoryStore) SaveBid(b domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bids[b.ID] = b
	return nil
}

// GetBid retrieves a bid.
func (m *MemoryStore) GetBid(id string) (domain.Bid, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bids[id]
	return b, ok, nil
}

// ListBids returns every bid, newest first. Used by admin exports.
func (m *MemoryStore) ListBids() ([]domain.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := m.listBidsLocked(func(domain.Bid) bool { return true })
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// ListBidsByVehicle returns bids on a vehicle, highest first.
func (m *MemoryStore) ListBidsByVehicle(vehicleID string) ([]domain.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := m.listBidsLocked(func(b domain.Bid) bool { return b.VehicleID == vehicleID })
	sort.Slice(res, func(i, j int) bool { return res[i].Amount > res[j].Amount })
	return res, nil
}

// ListBidsByBidder returns a user's bids, newest first.
func (m *MemoryStore) ListBidsByBidder(bidderID string) ([]domain.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := m.listBidsLocked(func(b domain.Bid) bool { return b.BidderID == bidderID })
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) listBidsLocked(keep func(domain.Bid) bool) []domain.Bid {
	res := make([]domain.Bid, 0)
	for _, b := range m.bids {
		if keep(b) {
			res = append(res, b)
		}
	}
	return res
}

// HighestBid returns the top bid on a vehicle.
func (m *MemoryStore) HighestBid(vehicleID string) (domain.Bid, bool, error) {
	bids, err := m.ListBidsByVehicle(vehicleID)
	if err != nil || len(bids) == 0 {
		return domain.Bid{}, false, err
	}
	return bids[0], true, nil
}

// AcceptBid accepts a pending bid and rejects its pending siblings.
// The status check under the write lock serializes concurrent accepts.
func (m *MemoryStore) AcceptBid(id string, now time.Time) (domain.Bid, error) {
	return m.decideBid(id, domain.BidAccepted, now)
}

// RejectBid rejects a pending bid.
func (m *MemoryStore) RejectBid(id string, now time.Time) (domain.Bid, error) {
	return m.decideBid(id, domain.BidRejected, now)
}

func (m *MemoryStore) decideBid(id string, status domain.BidStatus, now time.Time) (domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return domain.Bid{}, ErrNotFound
	}
	if b.Status != domain.BidPending {
		return domain.Bid{}, ErrBidNotPending
	}
	b.Status = status
	b.UpdatedAt = now
	m.bids[id] = b
	if status == domain.BidAccepted {
		for siblingID, sibling := range m.bids {
			if siblingID != id && sibling.VehicleID == b.VehicleID && sibling.Status == domain.BidPending {
				sibling.Status = domain.BidRejected
				sibling.UpdatedAt = now
				m.bids[siblingID] = sibling
			}
		}
	}
	return b, nil
}

// SaveQuote stores a quote request.
func (m *MemoryStore) SaveQuote(q domain.QuoteRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.ID] = q
	return nil
}

// GetQuote retrieves a quote request.
func (m *MemoryStore) GetQuote(id string) (domain.QuoteRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[id]
	return q, ok, nil
}

// ListQuotes returns all quote requests, newest first.
func (m *MemoryStore) ListQuotes() ([]domain.QuoteRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.QuoteRequest, 0, len(m.quotes))
	for _, q := range m.quotes {
		res = append(res, q)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// SetQuoteStatus updates a quote request's processing status.
func (m *MemoryStore) SetQuoteStatus(id string, status domain.QuoteStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	m.quotes[id] = q
	return nil
}

// SaveSearch stores or updates a saved search.
func (m *MemoryStore) SaveSearch(s domain.VehicleSearch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[s.ID] = s
	return nil
}

// GetSearch retrieves a saved search.
func (m *MemoryStore) GetSearch(id string) (domain.VehicleSearch, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.searches[id]
	return s, ok, nil
}

// ListSearchesByUser returns a user's saved searches, newest first.
func (m *MemoryStore) ListSearchesByUser(userID string) ([]domain.VehicleSearch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSearchesLocked(func(s domain.VehicleSearch) bool { return s.UserID == userID }), nil
}

// ListActiveSearches returns all active searches across users.
func (m *MemoryStore) ListActiveSearches() ([]domain.VehicleSearch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSearchesLocked(func(s domain.VehicleSearch) bool { return s.Status == domain.SearchActive }), nil
}

func (m *MemoryStore) listSearchesLocked(keep func(domain.VehicleSearch) bool) []domain.VehicleSearch {
	res := make([]domain.VehicleSearch, 0)
	for _, s := range m.searches {
		if keep(s) {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

// DeleteSearch removes a saved search.
func (m *MemoryStore) DeleteSearch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.searches, id)
	return nil
}

// SaveNotification records an in-app notification.
func (m *MemoryStore) SaveNotification(n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[n.ID] = n
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (m *MemoryStore) ListNotifications(userID string, unreadOnly bool) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Notification, 0)
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		res = append(res, n)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// MarkNotificationRead marks one of the user's notifications as read.
func (m *MemoryStore) MarkNotificationRead(id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.IsRead = true
	m.notifications[id] = n
	return nil
}

// MarkAllNotificationsRead marks every notification for the user as read.
func (m *MemoryStore) MarkAllNotificationsRead(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			m.notifications[id] = n
		}
	}
	return nil
}

// DeleteNotification removes one of the user's notifications.
func (m *MemoryStore) DeleteNotification(id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(m.notifications, id)
	return nil
}

// UnreadNotificationCount counts unread notifications for a user.
func (m *MemoryStore) UnreadNotificationCount(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// SaveDraft stores or updates a draft.
func (m *MemoryStore) SaveDraft(d domain.VehicleDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[d.ID] = d
	return nil
}

// GetDraft retrieves a draft.
func (m *MemoryStore) GetDraft(id string) (domain.VehicleDraft, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[id]
	return d, ok, nil
}

// ListDraftsByOwner returns a user's drafts, most recently edited first.
func (m *MemoryStore) ListDraftsByOwner(ownerID string) ([]domain.VehicleDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.VehicleDraft, 0)
	for _, d := range m.drafts {
		if d.OwnerID == ownerID {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

// DeleteDraft removes a draft.
func (m *MemoryStore) DeleteDraft(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, id)
	return nil
}

// DeleteExpiredDrafts removes drafts past the retention window.
func (m *MemoryStore) DeleteExpiredDrafts(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, d := range m.drafts {
		if d.IsExpired(now) {
			delete(m.drafts, id)
			removed++
		}
	}
	return removed, nil
}

// SaveExportLog records an export audit row.
func (m *MemoryStore) SaveExportLog(l domain.ExportLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportLogs = append(m.exportLogs, l)
	return nil
}

// ListExportLogs returns the most recent export audit rows.
func (m *MemoryStore) ListExportLogs(limit int) ([]domain.ExportLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	res := make([]domain.ExportLog, len(m.exportLogs))
	copy(res, m.exportLogs)
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// SaveExportConfiguration stores a saved column set.
func (m *MemoryStore) SaveExportConfiguration(c domain.ExportConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportConfigs[c.ID] = c
	return nil
}

// ListExportConfigurations returns a user's saved column sets.
func (m *MemoryStore) ListExportConfigurations(userID string) ([]domain.ExportConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ExportConfiguration, 0)
	for _, c := range m.exportConfigs {
		if c.UserID == userID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return strings.Compare(res[i].Name, res[j].Name) < 0
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}
