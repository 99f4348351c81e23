package app

import (
	"context"
	"encoding/json"
	"fmt"

	"autoeden/internal/util"
	"autoeden/pkg/domain"
)

// DraftView is a draft plus its derived completion and expiry data.
type DraftView struct {
	domain.VehicleDraft
	CompletionPercent int    `json:"completionPercent"`
	ExpiresAt         string `json:"expiresAt"`
}

func (a *App) draftView(d domain.VehicleDraft) DraftView {
	return DraftView{
		VehicleDraft:      d,
		CompletionPercent: d.CompletionPercent(),
		ExpiresAt:         d.ExpiresAt().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// SaveDraft creates or updates an in-progress listing. Drafts accept any
// payload shape; validation happens at publish time.
func (a *App) SaveDraft(ctx context.Context, ownerID, id string, payload map[string]any) (DraftView, error) {
	now := a.now()
	draft := domain.VehicleDraft{
		ID:        id,
		OwnerID:   ownerID,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if id == "" {
		draft.ID = util.NewID()
	} else {
		existing, ok, err := a.store.GetDraft(id)
		if err != nil {
			return DraftView{}, fmt.Errorf("load draft: %w", err)
		}
		if !ok {
			return DraftView{}, ErrNotFound
		}
		if existing.OwnerID != ownerID {
			return DraftView{}, ErrForbidden
		}
		draft.CreatedAt = existing.CreatedAt
	}
	if err := a.store.SaveDraft(draft); err != nil {
		return DraftView{}, fmt.Errorf("save draft: %w", err)
	}
	return a.draftView(draft), nil
}

// MyDrafts lists the owner's unexpired drafts.
func (a *App) MyDrafts(ctx context.Context, ownerID string) ([]DraftView, error) {
	drafts, err := a.store.ListDraftsByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	now := a.now()
	views := make([]DraftView, 0, len(drafts))
	for _, d := range drafts {
		if d.IsExpired(now) {
			continue
		}
		views = append(views, a.draftView(d))
	}
	return views, nil
}

// DeleteDraft removes a draft owned by the user.
func (a *App) DeleteDraft(ctx context.Context, ownerID, id string) error {
	draft, ok, err := a.store.GetDraft(id)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if draft.OwnerID != ownerID {
		return ErrForbidden
	}
	return a.store.DeleteDraft(id)
}

// PublishDraft converts a draft into a real listing. The draft payload is
// decoded into the listing input and goes through full validation; the
// draft is removed only when the listing is created.
func (a *App) PublishDraft(ctx context.Context, owner domain.User, id string) (domain.Vehicle, error) {
	draft, ok, err := a.store.GetDraft(id)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("load draft: %w", err)
	}
	if !ok {
		return domain.Vehicle{}, ErrNotFound
	}
	if draft.OwnerID != owner.ID {
		return domain.Vehicle{}, ErrForbidden
	}

	raw, err := json.Marshal(draft.Payload)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("encode draft payload: %w", err)
	}
	var input VehicleInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return domain.Vehicle{}, domain.FieldErrors{"payload": "draft payload does not decode into a listing"}
	}

	vehicle, err := a.CreateVehicle(ctx, owner, input)
	if err != nil {
		return domain.Vehicle{}, err
	}
	if err := a.store.DeleteDraft(id); err != nil {
		return domain.Vehicle{}, fmt.Errorf("delete draft: %w", err)
	}
	return vehicle, nil
}
