package store

import (
	"errors"
	"testing"
	"time"

	"autoeden/pkg/domain"
)

func seedVehicle(t *testing.T, s Store, id, vin string, price float64, created time.Time) domain.Vehicle {
	t.Helper()
	v := domain.Vehicle{
		ID:                id,
		OwnerID:           "owner-1",
		Make:              "Toyota",
		Model:             "Hilux",
		Year:              2020,
		VIN:               vin,
		Mileage:           30000,
		ListingType:       domain.ListingMarketplace,
		Price:             &price,
		IsVisible:         true,
		VerificationState: domain.VerificationPhysical,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	if err := s.SaveVehicle(v); err != nil {
		t.Fatalf("SaveVehicle(%s): %v", id, err)
	}
	return v
}

func TestMemoryStoreVINUnique(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	seedVehicle(t, s, "veh-1", "VIN00000000000001", 10000, now)

	dup := seedVehicle(t, s, "veh-1", "VIN00000000000001", 11000, now) // same ID, update ok
	_ = dup

	price := 9000.0
	other := domain.Vehicle{
		ID: "veh-2", OwnerID: "owner-2", Make: "Mazda", Model: "BT-50", Year: 2019,
		VIN: "VIN00000000000001", Mileage: 10, ListingType: domain.ListingMarketplace,
		Price: &price, VerificationState: domain.VerificationPending,
	}
	if err := s.SaveVehicle(other); !errors.Is(err, ErrDuplicateVIN) {
		t.Fatalf("expected ErrDuplicateVIN, got %v", err)
	}
}

func TestMemoryStoreListVehiclesFilterAndPaging(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		v := seedVehicle(t, s, "veh-"+string(rune('a'+i)), "VIN0000000000000"+string(rune('0'+i)), float64(10000+i*1000), base.Add(time.Duration(i)*time.Hour))
		_ = v
	}
	// one hidden vehicle that must never show up in marketplace queries
	hidden := seedVehicle(t, s, "veh-hidden", "VINHIDDEN00000001", 5000, base)
	hidden.IsVisible = false
	if err := s.SaveVehicle(hidden); err != nil {
		t.Fatalf("SaveVehicle hidden: %v", err)
	}

	vehicles, total, err := s.ListVehicles(VehicleFilter{MarketplaceOnly: true, Page: 1, PerPage: 3})
	if err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(vehicles) != 3 {
		t.Fatalf("page size = %d, want 3", len(vehicles))
	}
	// newest first by default
	if !vehicles[0].CreatedAt.After(vehicles[1].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}

	maxPrice := 11000.0
	vehicles, total, err = s.ListVehicles(VehicleFilter{MarketplaceOnly: true, MaxPrice: &maxPrice})
	if err != nil {
		t.Fatalf("ListVehicles with max price: %v", err)
	}
	if total != 2 {
		t.Fatalf("priced total = %d, want 2", total)
	}
	for _, v := range vehicles {
		if *v.Price > maxPrice {
			t.Fatalf("vehicle %s exceeds max price", v.ID)
		}
	}
}

func TestMemoryStoreAcceptBidFirstWins(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	seedVehicle(t, s, "veh-1", "VIN00000000000001", 10000, now)

	for _, id := range []string{"bid-1", "bid-2", "bid-3"} {
		if err := s.SaveBid(domain.Bid{
			ID: id, VehicleID: "veh-1", BidderID: "bidder-" + id,
			Amount: 9000, Status: domain.BidPending, CreatedAt: now,
		}); err != nil {
			t.Fatalf("SaveBid: %v", err)
		}
	}

	accepted, err := s.AcceptBid("bid-1", now)
	if err != nil {
		t.Fatalf("AcceptBid: %v", err)
	}
	if accepted.Status != domain.BidAccepted {
		t.Fatalf("accepted status = %s", accepted.Status)
	}

	// a concurrent accept of a sibling observes it already rejected
	if _, err := s.AcceptBid("bid-2", now); !errors.Is(err, ErrBidNotPending) {
		t.Fatalf("expected ErrBidNotPending for sibling, got %v", err)
	}
	// re-accepting the winner also fails
	if _, err := s.AcceptBid("bid-1", now); !errors.Is(err, ErrBidNotPending) {
		t.Fatalf("expected ErrBidNotPending for repeat accept, got %v", err)
	}

	bids, err := s.ListBidsByVehicle("veh-1")
	if err != nil {
		t.Fatalf("ListBidsByVehicle: %v", err)
	}
	for _, b := range bids {
		if b.ID != "bid-1" && b.Status != domain.BidRejected {
			t.Fatalf("sibling %s not rejected: %s", b.ID, b.Status)
		}
	}
}

func TestMemoryStoreAcceptMissingBid(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.AcceptBid("nope", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreNotifications(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	for i, id := range []string{"n-1", "n-2", "n-3"} {
		if err := s.SaveNotification(domain.Notification{
			ID: id, UserID: "user-1", Type: domain.NotifyBid,
			Message: "new bid", CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("SaveNotification: %v", err)
		}
	}

	if err := s.MarkNotificationRead("n-1", "user-1"); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if err := s.MarkNotificationRead("n-2", "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong user, got %v", err)
	}

	count, err := s.UnreadNotificationCount("user-1")
	if err != nil {
		t.Fatalf("UnreadNotificationCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("unread = %d, want 2", count)
	}

	unread, err := s.ListNotifications("user-1", true)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("unread list = %d, want 2", len(unread))
	}

	if err := s.MarkAllNotificationsRead("user-1"); err != nil {
		t.Fatalf("MarkAllNotificationsRead: %v", err)
	}
	count, _ = s.UnreadNotificationCount("user-1")
	if count != 0 {
		t.Fatalf("unread after mark all = %d, want 0", count)
	}
}

func TestMemoryStoreDraftExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	old := domain.VehicleDraft{ID: "d-old", OwnerID: "user-1", CreatedAt: now.Add(-40 * 24 * time.Hour), UpdatedAt: now}
	fresh := domain.VehicleDraft{ID: "d-new", OwnerID: "user-1", CreatedAt: now, UpdatedAt: now}
	if err := s.SaveDraft(old); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if err := s.SaveDraft(fresh); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	removed, err := s.DeleteExpiredDrafts(now)
	if err != nil {
		t.Fatalf("DeleteExpiredDrafts: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := s.GetDraft("d-new"); !ok {
		t.Fatal("fresh draft should survive")
	}
}
