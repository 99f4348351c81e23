package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"autoeden/pkg/domain"
)

// ServiceFee is the flat handling fee added to every quote.
const ServiceFee = 150.0

// QuoteData carries everything the quote document shows.
type QuoteData struct {
	QuoteID       string
	CustomerName  string
	CustomerEmail string
	Telephone     string
	Country       string
	City          string
	Address       string

	VehicleMake  string
	VehicleModel string
	VehicleYear  int
	VIN          string
	Mileage      int

	BasePrice float64
	IssuedAt  time.Time
	// VerifyURL is encoded into the QR code so the quote can be checked
	// against the live record.
	VerifyURL string
}

// Subtotal is the base price plus the flat service fee.
func (d QuoteData) Subtotal() float64 { return d.BasePrice + ServiceFee }

// ValidUntil is when the quoted price stops being honored.
func (d QuoteData) ValidUntil() time.Time { return d.IssuedAt.Add(domain.QuoteValidity) }

// RenderQuote produces the quote document as a landscape letter PDF.
func RenderQuote(d QuoteData) ([]byte, error) {
	doc := fpdf.New("L", "mm", "Letter", "")
	doc.SetTitle("Auto Eden Quote "+d.QuoteID, false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 22)
	doc.Cell(0, 12, "Auto Eden Vehicle Quote")
	doc.Ln(14)

	doc.SetFont("Helvetica", "", 10)
	doc.Cell(0, 6, fmt.Sprintf("Quote %s, issued %s", d.QuoteID, d.IssuedAt.Format("2 Jan 2006 15:04 MST")))
	doc.Ln(10)

	doc.SetFont("Helvetica", "B", 12)
	doc.Cell(0, 8, "Customer")
	doc.Ln(8)
	doc.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		d.CustomerName,
		d.CustomerEmail,
		d.Telephone,
		joinNonEmpty(d.Address, d.City, d.Country),
	} {
		if line == "" {
			continue
		}
		doc.Cell(0, 6, line)
		doc.Ln(6)
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 12)
	doc.Cell(0, 8, "Vehicle")
	doc.Ln(8)
	doc.SetFont("Helvetica", "", 11)
	doc.Cell(0, 6, fmt.Sprintf("%d %s %s", d.VehicleYear, d.VehicleMake, d.VehicleModel))
	doc.Ln(6)
	doc.Cell(0, 6, fmt.Sprintf("VIN %s, %d km", d.VIN, d.Mileage))
	doc.Ln(10)

	doc.SetFont("Helvetica", "B", 12)
	doc.Cell(0, 8, "Pricing")
	doc.Ln(8)
	doc.SetFont("Helvetica", "", 11)
	doc.Cell(60, 6, "Vehicle price")
	doc.Cell(0, 6, fmt.Sprintf("USD %.2f", d.BasePrice))
	doc.Ln(6)
	doc.Cell(60, 6, "Service fee")
	doc.Cell(0, 6, fmt.Sprintf("USD %.2f", ServiceFee))
	doc.Ln(6)
	doc.SetFont("Helvetica", "B", 11)
	doc.Cell(60, 6, "Subtotal")
	doc.Cell(0, 6, fmt.Sprintf("USD %.2f", d.Subtotal()))
	doc.Ln(10)

	doc.SetFont("Helvetica", "I", 10)
	doc.Cell(0, 6, fmt.Sprintf("Valid until %s.", d.ValidUntil().Format("2 Jan 2006 15:04 MST")))
	doc.Ln(6)

	if d.VerifyURL != "" {
		png, err := qrcode.Encode(d.VerifyURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode qr: %w", err)
		}
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		doc.RegisterImageOptionsReader("verify-qr", opts, bytes.NewReader(png))
		pageW, _ := doc.GetPageSize()
		doc.ImageOptions("verify-qr", pageW-50, 12, 35, 35, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quote pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}
