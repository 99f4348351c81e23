package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"autoeden/internal/util"
	"autoeden/pkg/domain"
	"autoeden/pkg/pdf"
)

// QuoteInput carries the customer details on a quote request.
type QuoteInput struct {
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Country   string `json:"country"`
	City      string `json:"city"`
	Address   string `json:"address"`
	Telephone string `json:"telephone"`
	Note      string `json:"note"`
}

// CreateQuote stores a quote request and kicks off PDF generation and the
// email send. The quote is created even when rendering or delivery fails;
// those are retried or recovered out of band.
func (a *App) CreateQuote(ctx context.Context, requester *domain.User, vehicleID string, input QuoteInput) (domain.QuoteRequest, error) {
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("load vehicle: %w", err)
	}
	if !ok || !vehicle.IsListedOnMarketplace() {
		return domain.QuoteRequest{}, ErrNotFound
	}

	quote := domain.QuoteRequest{
		ID:        util.NewID(),
		VehicleID: vehicleID,
		FullName:  strings.TrimSpace(input.FullName),
		Email:     strings.TrimSpace(strings.ToLower(input.Email)),
		Country:   strings.TrimSpace(input.Country),
		City:      strings.TrimSpace(input.City),
		Address:   strings.TrimSpace(input.Address),
		Telephone: strings.TrimSpace(input.Telephone),
		Note:      strings.TrimSpace(input.Note),
		Status:    domain.QuotePending,
		CreatedAt: a.now(),
	}
	if requester != nil {
		quote.UserID = requester.ID
	}
	if err := quote.Validate(); err != nil {
		return domain.QuoteRequest{}, err
	}
	if err := a.store.SaveQuote(quote); err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("save quote: %w", err)
	}

	var pdfBytes []byte
	if rendered, err := a.renderQuotePDF(quote, vehicle); err != nil {
		slog.Error("render quote pdf", "quote_id", quote.ID, "error", err)
	} else {
		pdfBytes = rendered
		if a.objects != nil {
			key := quotePDFKey(quote.ID)
			if err := a.objects.Put(ctx, key, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
				slog.Error("store quote pdf", "quote_id", quote.ID, "error", err)
			}
		}
	}

	a.bus.Publish(ctx, QuoteCreated{Quote: quote, Vehicle: vehicle, PDF: pdfBytes})
	return quote, nil
}

// GetQuote returns a quote visible to its requester and admins.
func (a *App) GetQuote(ctx context.Context, actor domain.User, id string) (domain.QuoteRequest, error) {
	quote, ok, err := a.store.GetQuote(id)
	if err != nil {
		return domain.QuoteRequest{}, fmt.Errorf("load quote: %w", err)
	}
	if !ok {
		return domain.QuoteRequest{}, ErrNotFound
	}
	if actor.Role != domain.RoleAdmin && quote.UserID != actor.ID {
		return domain.QuoteRequest{}, ErrForbidden
	}
	return quote, nil
}

// ListQuotes returns every quote for the admin queue. Quotes whose validity
// window elapsed while still pending are reported as expired.
func (a *App) ListQuotes(ctx context.Context) ([]domain.QuoteRequest, error) {
	quotes, err := a.store.ListQuotes()
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	now := a.now()
	for i := range quotes {
		if quotes[i].Status == domain.QuotePending && quotes[i].IsExpired(now) {
			quotes[i].Status = domain.QuoteExpired
		}
	}
	return quotes, nil
}

// SetQuoteStatus moves a quote through the admin pipeline.
func (a *App) SetQuoteStatus(ctx context.Context, id string, status domain.QuoteStatus) error {
	switch status {
	case domain.QuotePending, domain.QuoteReviewed, domain.QuoteQuoted, domain.QuoteConverted, domain.QuoteExpired:
	default:
		return domain.FieldErrors{"status": fmt.Sprintf("unknown quote status %q", status)}
	}
	if err := a.store.SetQuoteStatus(id, status); err != nil {
		return ErrNotFound
	}
	return nil
}

// QuotePDF regenerates the quote document for download.
func (a *App) QuotePDF(ctx context.Context, actor domain.User, id string) ([]byte, error) {
	quote, err := a.GetQuote(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	vehicle, ok, err := a.store.GetVehicle(quote.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("load vehicle: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return a.renderQuotePDF(quote, vehicle)
}

func (a *App) renderQuotePDF(quote domain.QuoteRequest, vehicle domain.Vehicle) ([]byte, error) {
	data := pdf.QuoteData{
		QuoteID:       quote.ID,
		CustomerName:  quote.FullName,
		CustomerEmail: quote.Email,
		Telephone:     quote.Telephone,
		Country:       quote.Country,
		City:          quote.City,
		Address:       quote.Address,
		VehicleMake:   vehicle.Make,
		VehicleModel:  vehicle.Model,
		VehicleYear:   vehicle.Year,
		VIN:           vehicle.VIN,
		Mileage:       vehicle.Mileage,
		BasePrice:     basePriceFor(vehicle),
		IssuedAt:      quote.CreatedAt,
	}
	if a.publicBaseURL != "" {
		data.VerifyURL = fmt.Sprintf("%s/quotes/%s/verify", strings.TrimRight(a.publicBaseURL, "/"), quote.ID)
	}
	return pdf.RenderQuote(data)
}

func quotePDFKey(quoteID string) string {
	return "quotes/" + quoteID + ".pdf"
}
