package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newPendingVehicle() *Vehicle {
	price := 15000.0
	return &Vehicle{
		ID:                "veh-1",
		OwnerID:           "user-1",
		Make:              "Toyota",
		Model:             "Hilux",
		Year:              2020,
		VIN:               "JT123456789012345",
		Mileage:           42000,
		ListingType:       ListingMarketplace,
		Price:             &price,
		IsVisible:         true,
		VerificationState: VerificationPending,
	}
}

func TestReviewVehicleHappyPath(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	v := newPendingVehicle()
	if err := ReviewVehicle(ctx, v, VerificationDigital, "", "admin-1", now); err != nil {
		t.Fatalf("pending -> digital: %v", err)
	}
	if !v.IsDigitallyVerified() {
		t.Fatalf("expected digital state, got %s", v.VerificationState)
	}
	if v.ReviewedBy != "admin-1" || v.ReviewedAt == nil || !v.ReviewedAt.Equal(now) {
		t.Fatalf("reviewer not stamped: by=%q at=%v", v.ReviewedBy, v.ReviewedAt)
	}

	later := now.Add(time.Hour)
	if err := ReviewVehicle(ctx, v, VerificationPhysical, "", "admin-2", later); err != nil {
		t.Fatalf("digital -> physical: %v", err)
	}
	if !v.IsPhysicallyVerified() {
		t.Fatalf("expected physical state, got %s", v.VerificationState)
	}
	if v.ReviewedBy != "admin-2" {
		t.Fatalf("reviewer not updated: %q", v.ReviewedBy)
	}
}

func TestReviewVehicleRejectionRequiresReason(t *testing.T) {
	v := newPendingVehicle()
	err := ReviewVehicle(context.Background(), v, VerificationRejected, "  ", "admin-1", time.Now())
	var fields FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if _, ok := fields["rejectionReason"]; !ok {
		t.Fatalf("expected rejectionReason field error, got %v", fields)
	}
	if v.VerificationState != VerificationPending {
		t.Fatalf("state must not change on validation failure, got %s", v.VerificationState)
	}
}

func TestReviewVehicleClearsStaleRejectionReason(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	v := newPendingVehicle()
	if err := ReviewVehicle(ctx, v, VerificationRejected, "blurry VIN photo", "admin-1", now); err != nil {
		t.Fatalf("pending -> rejected: %v", err)
	}
	if v.RejectionReason != "blurry VIN photo" {
		t.Fatalf("reason not stored: %q", v.RejectionReason)
	}

	if err := ReviewVehicle(ctx, v, VerificationPhysical, "", "admin-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("rejected -> physical: %v", err)
	}
	if v.RejectionReason != "" {
		t.Fatalf("stale rejection reason not cleared: %q", v.RejectionReason)
	}
}

func TestReviewVehicleInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		from   VerificationState
		target VerificationState
	}{
		{"physical cannot regress to digital", VerificationPhysical, VerificationDigital},
		{"digital cannot repeat digital", VerificationDigital, VerificationDigital},
		{"rejected cannot reject again", VerificationRejected, VerificationRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newPendingVehicle()
			v.VerificationState = tc.from
			err := ReviewVehicle(ctx, v, tc.target, "some reason", "admin-1", time.Now())
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if v.VerificationState != tc.from {
				t.Fatalf("state changed on failed transition: %s", v.VerificationState)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(VerificationPending, VerificationPhysical) {
		t.Fatal("pending -> physical should be allowed")
	}
	if !CanTransition(VerificationRejected, VerificationDigital) {
		t.Fatal("rejected -> digital re-review should be allowed")
	}
	if CanTransition(VerificationPhysical, VerificationDigital) {
		t.Fatal("physical -> digital should be blocked")
	}
	if CanTransition(VerificationPending, VerificationPending) {
		t.Fatal("pending -> pending should be blocked")
	}
}
