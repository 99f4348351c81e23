package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"autoeden/internal/util"
	"autoeden/pkg/domain"
	"autoeden/pkg/mail"
	"autoeden/pkg/queue"
	"autoeden/pkg/ws"
)

// handleEvent is the built-in subscriber wired by New. It turns domain
// events into notification rows, websocket pushes, queued emails, search
// index updates and cache invalidation.
func (a *App) handleEvent(ctx context.Context, event any) {
	switch e := event.(type) {
	case VehicleSubmitted:
		a.invalidateCache(ctx)
		a.updateSearchIndex(ctx, e.Vehicle.ID)
		label := fmt.Sprintf("%d %s %s", e.Vehicle.Year, e.Vehicle.Make, e.Vehicle.Model)
		if e.Vehicle.ListingType == domain.ListingInstantSale {
			a.notifyAdmins(ctx, domain.NotifyInstantSale,
				fmt.Sprintf("New instant sale submission: %s by %s", label, e.Owner.Username),
				e.Vehicle.ID)
		} else {
			a.notifyAdmins(ctx, domain.NotifyAdminAlert,
				fmt.Sprintf("New listing pending review: %s", label),
				e.Vehicle.ID)
		}
		a.matchSearches(ctx, e.Vehicle)

	case VehicleReviewed:
		a.invalidateCache(ctx)
		a.updateSearchIndex(ctx, e.Vehicle.ID)
		a.notifyReviewOutcome(ctx, e)

	case VehicleChanged:
		a.invalidateCache(ctx)
		a.updateSearchIndex(ctx, e.VehicleID)

	case BidPlaced:
		label := fmt.Sprintf("%d %s %s", e.Vehicle.Year, e.Vehicle.Make, e.Vehicle.Model)
		a.notify(ctx, e.Vehicle.OwnerID, domain.NotifyBid,
			fmt.Sprintf("New bid of $%.2f on your %s", e.Bid.Amount, label),
			e.Bid.ID)
		a.notifyAdmins(ctx, domain.NotifyBid,
			fmt.Sprintf("Bid of $%.2f placed on %s by %s", e.Bid.Amount, label, e.Bidder.Username),
			e.Bid.ID)

	case BidDecided:
		label := fmt.Sprintf("%d %s %s", e.Vehicle.Year, e.Vehicle.Make, e.Vehicle.Model)
		message := fmt.Sprintf("Your bid of $%.2f on %s was rejected", e.Bid.Amount, label)
		if e.Bid.Status == domain.BidAccepted {
			message = fmt.Sprintf("Your bid of $%.2f on %s was accepted", e.Bid.Amount, label)
		}
		a.notify(ctx, e.Bid.BidderID, domain.NotifyBid, message, e.Bid.ID)

	case UserRegistered:
		a.notify(ctx, e.User.ID, domain.NotifyRegistration,
			"Welcome to Auto Eden. Your account is ready.", e.User.ID)
		a.notifyAdmins(ctx, domain.NotifyAdminAlert,
			fmt.Sprintf("New user registered: %s", e.User.Username), e.User.ID)

	case QuoteCreated:
		a.sendQuoteEmail(ctx, e.Quote, e.Vehicle, e.PDF)
		label := fmt.Sprintf("%d %s %s", e.Vehicle.Year, e.Vehicle.Make, e.Vehicle.Model)
		a.notifyAdmins(ctx, domain.NotifyAdminAlert,
			fmt.Sprintf("New quote request for %s from %s", label, e.Quote.FullName),
			e.Quote.ID)

	case SearchMatched:
		a.notify(ctx, e.Search.UserID, domain.NotifyAdminAlert,
			fmt.Sprintf("A new %d %s %s matches your saved search", e.Vehicle.Year, e.Vehicle.Make, e.Vehicle.Model),
			e.Vehicle.ID)
		a.sendSearchMatchEmail(ctx, e)
	}
}

func (a *App) notifyReviewOutcome(ctx context.Context, e VehicleReviewed) {
	label := fmt.Sprintf("%d %s %s", e.Vehicle.Year, e.Vehicle.Make, e.Vehicle.Model)
	switch e.Vehicle.VerificationState {
	case domain.VerificationDigital:
		a.notify(ctx, e.Vehicle.OwnerID, domain.NotifyApproval,
			fmt.Sprintf("Your %s passed digital verification", label),
			e.Vehicle.ID)
	case domain.VerificationPhysical:
		a.notify(ctx, e.Vehicle.OwnerID, domain.NotifyApproval,
			fmt.Sprintf("Your %s is verified and live on the marketplace", label),
			e.Vehicle.ID)
		a.enqueue(ctx, queue.KindApprovalEmail, e.Vehicle.ID)
	case domain.VerificationRejected:
		a.notify(ctx, e.Vehicle.OwnerID, domain.NotifyRejection,
			fmt.Sprintf("Your %s was rejected: %s", label, e.Vehicle.RejectionReason),
			e.Vehicle.ID)
		a.enqueue(ctx, queue.KindRejectionEmail, e.Vehicle.ID)
	}
}

// notify stores a notification row and pushes it to the user's websocket
// group, honoring per-channel preferences. Delivery failures are logged,
// never returned; the triggering write already succeeded.
func (a *App) notify(ctx context.Context, userID string, ntype domain.NotificationType, message, relatedID string) {
	n := domain.Notification{
		ID:              util.NewID(),
		UserID:          userID,
		Type:            ntype,
		Message:         message,
		RelatedObjectID: relatedID,
		CreatedAt:       a.now(),
	}
	if err := a.store.SaveNotification(n); err != nil {
		slog.Error("save notification", "user_id", userID, "error", err)
		return
	}

	pref, err := a.GetPreferences(ctx, userID)
	if err != nil {
		slog.Error("load notification preferences", "user_id", userID, "error", err)
		pref = domain.DefaultNotificationPreference(userID)
	}

	if pref.WebSocket && a.hub != nil {
		a.hub.Publish(ws.NotificationGroup(userID), ws.MsgTypeNotification, n)
		if count, err := a.store.UnreadNotificationCount(userID); err == nil {
			a.hub.Publish(ws.NotificationGroup(userID), ws.MsgTypeUnreadCount, map[string]int{"count": count})
		}
	}

	if pref.WhatsApp && a.whatsapp != nil && a.whatsapp.Enabled() {
		if profile, ok, err := a.store.GetProfile(userID); err == nil && ok && profile.Phone != "" {
			payload, _ := json.Marshal(whatsAppAlertPayload{Phone: profile.Phone, Body: message})
			a.enqueue(ctx, queue.KindWhatsAppAlert, string(payload))
		}
	}
}

// notifyAdmins fans out to every admin account, concurrently but bounded,
// and mirrors the alert onto the admin dashboard group.
func (a *App) notifyAdmins(ctx context.Context, ntype domain.NotificationType, message, relatedID string) {
	admins, err := a.store.ListAdmins()
	if err != nil {
		slog.Error("list admins", "error", err)
		return
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, admin := range admins {
		group.Go(func() error {
			a.notify(groupCtx, admin.ID, ntype, message, relatedID)
			return nil
		})
	}
	_ = group.Wait()
	if a.hub != nil {
		a.hub.Publish(ws.AdminDashboardGroup, ws.MsgTypeNotification, map[string]string{
			"type":            string(ntype),
			"message":         message,
			"relatedObjectId": relatedID,
		})
	}
}

// matchSearches checks a new listing against all active saved searches.
// A matching search flips to matched so the owner is not alerted again for
// every later listing; resuming it is one PATCH away.
func (a *App) matchSearches(ctx context.Context, vehicle domain.Vehicle) {
	searches, err := a.store.ListActiveSearches()
	if err != nil {
		slog.Error("list active searches", "error", err)
		return
	}
	now := a.now()
	for _, search := range searches {
		if !search.Matches(vehicle) {
			continue
		}
		search.Status = domain.SearchMatched
		search.MatchCount++
		search.LastMatched = &now
		if err := a.store.SaveSearch(search); err != nil {
			slog.Error("save matched search", "search_id", search.ID, "error", err)
			continue
		}
		a.bus.Publish(ctx, SearchMatched{Search: search, Vehicle: vehicle})
	}
}

// sendQuoteEmail mails the requester their quote, synchronously and
// best-effort; the quote row already exists and the caller got its 201.
// A nil pdfBytes means rendering failed earlier, so the email goes out
// without the attachment.
func (a *App) sendQuoteEmail(ctx context.Context, quote domain.QuoteRequest, vehicle domain.Vehicle, pdfBytes []byte) {
	if a.mailer == nil {
		return
	}
	msg := mail.Message{
		To:      quote.Email,
		Subject: fmt.Sprintf("Your Auto Eden quote for the %d %s %s", vehicle.Year, vehicle.Make, vehicle.Model),
		Body: fmt.Sprintf("Hi %s,\n\nYour quote is attached. It is valid until %s.\n\nAuto Eden",
			quote.FullName, quote.ExpiresAt().Format("2 Jan 2006 15:04 MST")),
	}
	if len(pdfBytes) > 0 {
		msg.Attachments = append(msg.Attachments, mail.Attachment{
			Filename:    fmt.Sprintf("autoeden-quote-%s.pdf", quote.ID),
			ContentType: "application/pdf",
			Data:        pdfBytes,
		})
	}
	if err := a.mailer.Send(ctx, msg); err != nil {
		slog.Error("send quote email", "quote_id", quote.ID, "error", err)
	}
	a.mailQuoteToStaff(ctx, quote, vehicle)
}

// mailQuoteToStaff copies every admin on a new quote request, best-effort.
func (a *App) mailQuoteToStaff(ctx context.Context, quote domain.QuoteRequest, vehicle domain.Vehicle) {
	admins, err := a.store.ListAdmins()
	if err != nil {
		slog.Error("list admins for quote email", "quote_id", quote.ID, "error", err)
		return
	}
	label := fmt.Sprintf("%d %s %s", vehicle.Year, vehicle.Make, vehicle.Model)
	body := fmt.Sprintf(
		"<h2>New quote request</h2>"+
			"<p><strong>%s</strong> requested a quote for the <strong>%s</strong>.</p>"+
			"<ul><li>Email: %s</li><li>Phone: %s</li><li>Location: %s, %s</li></ul>"+
			"<p>Review it in the admin dashboard.</p>",
		quote.FullName, label, quote.Email, quote.Telephone, quote.City, quote.Country)
	for _, admin := range admins {
		msg := mail.Message{
			To:      admin.Email,
			Subject: fmt.Sprintf("Quote request: %s (%s)", label, quote.FullName),
			Body:    body,
			HTML:    true,
		}
		if err := a.mailer.Send(ctx, msg); err != nil {
			slog.Error("send staff quote email", "quote_id", quote.ID, "to", admin.Email, "error", err)
		}
	}
}

// sendSearchMatchEmail mails the search owner about the matching listing,
// synchronously and best-effort.
func (a *App) sendSearchMatchEmail(ctx context.Context, e SearchMatched) {
	if a.mailer == nil {
		return
	}
	owner, ok, err := a.store.GetUserByID(e.Search.UserID)
	if err != nil || !ok {
		return
	}
	if pref, err := a.GetPreferences(ctx, owner.ID); err == nil && !pref.Email {
		return
	}
	label := fmt.Sprintf("%d %s %s", e.Vehicle.Year, e.Vehicle.Make, e.Vehicle.Model)
	msg := mail.Message{
		To:      owner.Email,
		Subject: "A vehicle matching your saved search is live",
		Body: fmt.Sprintf("Hi %s,\n\nA %s just went live on Auto Eden and matches your saved search for %s %s.\n\n%s/vehicles/%s\n\nAuto Eden",
			owner.Username, label, e.Search.Make, e.Search.Model, a.publicBaseURL, e.Vehicle.ID),
	}
	if err := a.mailer.Send(ctx, msg); err != nil {
		slog.Error("send search match email", "search_id", e.Search.ID, "error", err)
	}
}

// updateSearchIndex re-indexes one vehicle after a write, removing it when
// the row no longer exists. Index failures never surface to callers.
func (a *App) updateSearchIndex(ctx context.Context, vehicleID string) {
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		slog.Error("load vehicle for index update", "vehicle_id", vehicleID, "error", err)
		return
	}
	if !ok {
		if err := a.search.RemoveVehicle(ctx, vehicleID); err != nil {
			slog.Error("remove vehicle from search index", "vehicle_id", vehicleID, "error", err)
		}
		return
	}
	if err := a.search.IndexVehicle(ctx, vehicle); err != nil {
		slog.Error("index vehicle", "vehicle_id", vehicleID, "error", err)
	}
}

func (a *App) invalidateCache(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx); err != nil {
		slog.Error("invalidate marketplace cache", "error", err)
	}
}

func (a *App) enqueue(ctx context.Context, kind, payload string) {
	if a.queue == nil {
		return
	}
	if _, err := a.queue.Enqueue(ctx, kind, payload); err != nil {
		slog.Error("enqueue task", "kind", kind, "error", err)
	}
}

type whatsAppAlertPayload struct {
	Phone string `json:"phone"`
	Body  string `json:"body"`
}
