package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"autoeden/pkg/domain"
	"autoeden/pkg/mail"
	"autoeden/pkg/queue"
)

// HandleTask is the background worker entry point passed to the task
// queue. Payload conventions: email kinds carry the record ID, WhatsApp
// alerts carry a JSON {phone, body} document, cleanup kinds carry nothing.
func (a *App) HandleTask(ctx context.Context, task queue.Task) error {
	switch task.Kind {
	case queue.KindApprovalEmail:
		return a.sendReviewEmail(ctx, task.Payload, true)
	case queue.KindRejectionEmail:
		return a.sendReviewEmail(ctx, task.Payload, false)
	case queue.KindWhatsAppAlert:
		return a.sendWhatsAppAlert(ctx, task.Payload)
	case queue.KindDraftCleanup:
		removed, err := a.store.DeleteExpiredDrafts(a.now())
		if err != nil {
			return fmt.Errorf("delete expired drafts: %w", err)
		}
		if removed > 0 {
			slog.Info("expired drafts removed", "count", removed)
		}
		return nil
	default:
		slog.Warn("unknown task kind", "kind", task.Kind)
		return nil
	}
}

func (a *App) sendReviewEmail(ctx context.Context, vehicleID string, approved bool) error {
	if a.mailer == nil {
		return nil
	}
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		// the vehicle was deleted before the worker ran, nothing to send
		return nil
	}
	owner, ok, err := a.store.GetUserByID(vehicle.OwnerID)
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}
	if !ok {
		return nil
	}
	pref, err := a.GetPreferences(ctx, owner.ID)
	if err == nil && !pref.Email {
		return nil
	}

	label := fmt.Sprintf("%d %s %s", vehicle.Year, vehicle.Make, vehicle.Model)
	msg := mail.Message{To: owner.Email}
	if approved {
		msg.Subject = "Your vehicle is live on Auto Eden"
		msg.Body = fmt.Sprintf("Hi %s,\n\nYour %s passed physical verification and is now visible on the marketplace.\n\nAuto Eden",
			owner.Username, label)
	} else {
		msg.Subject = "Your Auto Eden listing was rejected"
		msg.Body = fmt.Sprintf("Hi %s,\n\nYour %s was rejected during review.\n\nReason: %s\n\nYou can update the listing and resubmit.\n\nAuto Eden",
			owner.Username, label, vehicle.RejectionReason)
	}
	return a.mailer.Send(ctx, msg)
}

func (a *App) sendWhatsAppAlert(ctx context.Context, payload string) error {
	if a.whatsapp == nil || !a.whatsapp.Enabled() {
		return nil
	}
	var alert whatsAppAlertPayload
	if err := json.Unmarshal([]byte(payload), &alert); err != nil {
		slog.Warn("malformed whatsapp alert payload", "error", err)
		return nil
	}
	if alert.Phone == "" || alert.Body == "" {
		return nil
	}
	deliveryID, err := a.whatsapp.SendText(ctx, alert.Phone, alert.Body)
	if err != nil {
		return err
	}
	slog.Debug("whatsapp alert delivered", "delivery_id", deliveryID)
	return nil
}

// EnqueueDraftCleanup schedules one expired-draft sweep.
func (a *App) EnqueueDraftCleanup(ctx context.Context) {
	a.enqueue(ctx, queue.KindDraftCleanup, "")
}

// basePriceFor picks the price the quote is built on.
func basePriceFor(vehicle domain.Vehicle) float64 {
	if vehicle.Price != nil {
		return *vehicle.Price
	}
	if vehicle.ProposedPrice != nil {
		return *vehicle.ProposedPrice
	}
	return 0
}
