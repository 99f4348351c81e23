package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/looplab/fsm"
)

// ErrInvalidTransition is returned when a review request names a state the
// vehicle cannot move to from its current state.
var ErrInvalidTransition = errors.New("invalid verification transition")

const (
	eventVerifyDigital  = "verify_digital"
	eventVerifyPhysical = "verify_physical"
	eventReject         = "reject"
)

// newVerificationFSM builds the review state machine seeded at the given state.
//
// Transitions:
//
//	pending  -> digital, physical, rejected
//	digital  -> physical, rejected
//	physical -> rejected
//	rejected -> digital, physical   (re-review after a fix)
func newVerificationFSM(current VerificationState) *fsm.FSM {
	return fsm.NewFSM(
		string(current),
		fsm.Events{
			{
				Name: eventVerifyDigital,
				Src:  []string{string(VerificationPending), string(VerificationRejected)},
				Dst:  string(VerificationDigital),
			},
			{
				Name: eventVerifyPhysical,
				Src:  []string{string(VerificationPending), string(VerificationDigital), string(VerificationRejected)},
				Dst:  string(VerificationPhysical),
			},
			{
				Name: eventReject,
				Src:  []string{string(VerificationPending), string(VerificationDigital), string(VerificationPhysical)},
				Dst:  string(VerificationRejected),
			},
		},
		fsm.Callbacks{},
	)
}

func verificationEvent(target VerificationState) (string, bool) {
	switch target {
	case VerificationDigital:
		return eventVerifyDigital, true
	case VerificationPhysical:
		return eventVerifyPhysical, true
	case VerificationRejected:
		return eventReject, true
	default:
		return "", false
	}
}

// CanTransition reports whether a vehicle in from can move to target.
func CanTransition(from, target VerificationState) bool {
	event, ok := verificationEvent(target)
	if !ok {
		return false
	}
	return newVerificationFSM(from).Can(event)
}

// ReviewVehicle applies an admin review decision to the vehicle in place.
//
// Rejection requires a non-empty reason; any other target clears a stale one.
// The reviewer and review time are stamped on every successful transition.
func ReviewVehicle(ctx context.Context, v *Vehicle, target VerificationState, reason, reviewerID string, now time.Time) error {
	event, ok := verificationEvent(target)
	if !ok {
		return FieldErrors{"verificationState": fmt.Sprintf("unknown verification state %q", target)}
	}
	reason = strings.TrimSpace(reason)
	if target == VerificationRejected && reason == "" {
		return FieldErrors{"rejectionReason": "rejection reason is required when rejecting"}
	}

	machine := newVerificationFSM(v.VerificationState)
	if err := machine.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.VerificationState, target)
	}

	v.VerificationState = target
	if target == VerificationRejected {
		v.RejectionReason = reason
	} else {
		v.RejectionReason = ""
	}
	v.ReviewedBy = reviewerID
	reviewedAt := now
	v.ReviewedAt = &reviewedAt
	v.UpdatedAt = now
	return nil
}
