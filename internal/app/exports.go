package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"autoeden/internal/util"
	"autoeden/pkg/domain"
	"autoeden/pkg/store"
)

// Export formats.
const (
	ExportCSV   = "csv"
	ExportExcel = "excel"
	ExportPDF   = "pdf"
)

// ExportRequest describes one admin export.
type ExportRequest struct {
	DataType string   `json:"dataType"`
	Format   string   `json:"format"`
	// Columns selects and orders output columns; empty means all.
	Columns []string `json:"columns"`
	// Filters narrows vehicle exports; ignored for other data types.
	Filters store.VehicleFilter `json:"-"`
}

// ExportResult is a rendered export document.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	RecordCount int
}

type exportColumn struct {
	name  string
	value func(row any) string
}

func fmtPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func fmtTime(t interface{ Format(string) string }) string {
	return t.Format("2006-01-02 15:04")
}

var vehicleColumns = []exportColumn{
	{"id", func(r any) string { return r.(domain.Vehicle).ID }},
	{"make", func(r any) string { return r.(domain.Vehicle).Make }},
	{"model", func(r any) string { return r.(domain.Vehicle).Model }},
	{"year", func(r any) string { return strconv.Itoa(r.(domain.Vehicle).Year) }},
	{"vin", func(r any) string { return r.(domain.Vehicle).VIN }},
	{"mileage", func(r any) string { return strconv.Itoa(r.(domain.Vehicle).Mileage) }},
	{"listingType", func(r any) string { return string(r.(domain.Vehicle).ListingType) }},
	{"price", func(r any) string { return fmtPrice(r.(domain.Vehicle).Price) }},
	{"proposedPrice", func(r any) string { return fmtPrice(r.(domain.Vehicle).ProposedPrice) }},
	{"verificationState", func(r any) string { return string(r.(domain.Vehicle).VerificationState) }},
	{"location", func(r any) string { return r.(domain.Vehicle).Location }},
	{"createdAt", func(r any) string { return fmtTime(r.(domain.Vehicle).CreatedAt) }},
}

var userColumns = []exportColumn{
	{"id", func(r any) string { return r.(domain.User).ID }},
	{"username", func(r any) string { return r.(domain.User).Username }},
	{"email", func(r any) string { return r.(domain.User).Email }},
	{"role", func(r any) string { return string(r.(domain.User).Role) }},
	{"status", func(r any) string { return string(r.(domain.User).Status) }},
	{"createdAt", func(r any) string { return fmtTime(r.(domain.User).CreatedAt) }},
}

var bidColumns = []exportColumn{
	{"id", func(r any) string { return r.(domain.Bid).ID }},
	{"vehicleId", func(r any) string { return r.(domain.Bid).VehicleID }},
	{"bidderId", func(r any) string { return r.(domain.Bid).BidderID }},
	{"amount", func(r any) string { return strconv.FormatFloat(r.(domain.Bid).Amount, 'f', 2, 64) }},
	{"status", func(r any) string { return string(r.(domain.Bid).Status) }},
	{"createdAt", func(r any) string { return fmtTime(r.(domain.Bid).CreatedAt) }},
}

var quoteColumns = []exportColumn{
	{"id", func(r any) string { return r.(domain.QuoteRequest).ID }},
	{"vehicleId", func(r any) string { return r.(domain.QuoteRequest).VehicleID }},
	{"fullName", func(r any) string { return r.(domain.QuoteRequest).FullName }},
	{"email", func(r any) string { return r.(domain.QuoteRequest).Email }},
	{"telephone", func(r any) string { return r.(domain.QuoteRequest).Telephone }},
	{"country", func(r any) string { return r.(domain.QuoteRequest).Country }},
	{"status", func(r any) string { return string(r.(domain.QuoteRequest).Status) }},
	{"createdAt", func(r any) string { return fmtTime(r.(domain.QuoteRequest).CreatedAt) }},
}

func exportColumnsFor(dataType string) ([]exportColumn, bool) {
	switch dataType {
	case "vehicles":
		return vehicleColumns, true
	case "users":
		return userColumns, true
	case "bids":
		return bidColumns, true
	case "quotes":
		return quoteColumns, true
	default:
		return nil, false
	}
}

// ExportColumnNames lists the available columns for a data type so admin
// clients can build column pickers.
func ExportColumnNames(dataType string) ([]string, bool) {
	cols, ok := exportColumnsFor(dataType)
	if !ok {
		return nil, false
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names, true
}

// Export renders a dataset in the requested format and writes an audit row.
func (a *App) Export(ctx context.Context, admin domain.User, req ExportRequest, clientIP string) (ExportResult, error) {
	allCols, ok := exportColumnsFor(req.DataType)
	if !ok {
		return ExportResult{}, domain.FieldErrors{"dataType": "data type must be one of vehicles, users, bids, quotes"}
	}
	cols, err := selectColumns(allCols, req.Columns)
	if err != nil {
		return ExportResult{}, err
	}

	rows, err := a.exportRows(ctx, req)
	if err != nil {
		return ExportResult{}, err
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.name
	}
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := make([]string, len(cols))
		for i, c := range cols {
			record[i] = c.value(row)
		}
		records = append(records, record)
	}

	var result ExportResult
	switch req.Format {
	case ExportCSV:
		result, err = renderCSV(header, records)
	case ExportExcel:
		result, err = renderExcel(req.DataType, header, records)
	case ExportPDF:
		result, err = renderTablePDF(req.DataType, header, records)
	default:
		return ExportResult{}, domain.FieldErrors{"format": "format must be one of csv, excel, pdf"}
	}
	if err != nil {
		return ExportResult{}, err
	}
	result.Filename = fmt.Sprintf("autoeden-%s.%s", req.DataType, fileExt(req.Format))
	result.RecordCount = len(records)

	log := domain.ExportLog{
		ID:          util.NewID(),
		UserID:      admin.ID,
		ExportType:  req.Format,
		DataType:    req.DataType,
		RecordCount: len(records),
		IPAddress:   clientIP,
		CreatedAt:   a.now(),
	}
	if req.DataType == "vehicles" {
		log.Filters = describeVehicleFilter(req.Filters)
	}
	if err := a.store.SaveExportLog(log); err != nil {
		return ExportResult{}, fmt.Errorf("save export log: %w", err)
	}
	return result, nil
}

func (a *App) exportRows(ctx context.Context, req ExportRequest) ([]any, error) {
	switch req.DataType {
	case "vehicles":
		filter := req.Filters
		filter.Page = 1
		filter.PerPage = 100
		var rows []any
		for {
			vehicles, total, err := a.store.ListVehicles(filter)
			if err != nil {
				return nil, fmt.Errorf("list vehicles: %w", err)
			}
			for _, v := range vehicles {
				rows = append(rows, v)
			}
			if len(rows) >= total || len(vehicles) == 0 {
				return rows, nil
			}
			filter.Page++
		}
	case "users":
		users, err := a.store.ListUsers()
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		rows := make([]any, len(users))
		for i, u := range users {
			rows[i] = u
		}
		return rows, nil
	case "bids":
		bids, err := a.store.ListBids()
		if err != nil {
			return nil, fmt.Errorf("list bids: %w", err)
		}
		rows := make([]any, len(bids))
		for i, b := range bids {
			rows[i] = b
		}
		return rows, nil
	case "quotes":
		quotes, err := a.store.ListQuotes()
		if err != nil {
			return nil, fmt.Errorf("list quotes: %w", err)
		}
		rows := make([]any, len(quotes))
		for i, q := range quotes {
			rows[i] = q
		}
		return rows, nil
	}
	return nil, domain.FieldErrors{"dataType": "unknown data type"}
}

func selectColumns(all []exportColumn, names []string) ([]exportColumn, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]exportColumn, len(all))
	for _, c := range all {
		byName[c.name] = c
	}
	cols := make([]exportColumn, 0, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, domain.FieldErrors{"columns": fmt.Sprintf("unknown column %q", name)}
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func renderCSV(header []string, records [][]string) (ExportResult, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return ExportResult{}, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return ExportResult{}, fmt.Errorf("write csv rows: %w", err)
	}
	return ExportResult{ContentType: "text/csv", Data: buf.Bytes()}, nil
}

func renderExcel(sheet string, header []string, records [][]string) (ExportResult, error) {
	f := excelize.NewFile()
	defer f.Close()
	const defaultSheet = "Sheet1"
	f.SetSheetName(defaultSheet, sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E12D39"}},
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("excel header style: %w", err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return ExportResult{}, fmt.Errorf("write excel header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return ExportResult{}, fmt.Errorf("style excel header: %w", err)
	}

	for i, record := range records {
		row := make([]any, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return ExportResult{}, fmt.Errorf("write excel row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return ExportResult{}, fmt.Errorf("render excel: %w", err)
	}
	return ExportResult{
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

func renderTablePDF(title string, header []string, records [][]string) (ExportResult, error) {
	doc := fpdf.New("L", "mm", "Letter", "")
	doc.SetTitle("Auto Eden "+title+" export", false)
	doc.AddPage()

	pageW, _ := doc.GetPageSize()
	left, _, right, _ := doc.GetMargins()
	colW := (pageW - left - right) / float64(len(header))

	doc.SetFont("Helvetica", "B", 14)
	doc.Cell(0, 10, "Auto Eden "+title+" export")
	doc.Ln(12)

	doc.SetFont("Helvetica", "B", 8)
	doc.SetFillColor(225, 45, 57)
	doc.SetTextColor(255, 255, 255)
	for _, h := range header {
		doc.CellFormat(colW, 7, h, "1", 0, "L", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 8)
	doc.SetTextColor(0, 0, 0)
	for _, record := range records {
		for _, cell := range record {
			doc.CellFormat(colW, 6, cell, "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return ExportResult{}, fmt.Errorf("render export pdf: %w", err)
	}
	return ExportResult{ContentType: "application/pdf", Data: buf.Bytes()}, nil
}

func fileExt(format string) string {
	if format == ExportExcel {
		return "xlsx"
	}
	return format
}

func describeVehicleFilter(f store.VehicleFilter) string {
	parts := []string{}
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	add("make", f.Make)
	add("model", f.Model)
	if f.MinYear > 0 {
		add("minYear", strconv.Itoa(f.MinYear))
	}
	if f.MaxYear > 0 {
		add("maxYear", strconv.Itoa(f.MaxYear))
	}
	add("listingType", string(f.ListingType))
	add("verificationState", string(f.VerificationState))
	return strings.Join(parts, "&")
}

// SaveExportConfiguration stores a reusable column selection.
func (a *App) SaveExportConfiguration(ctx context.Context, userID, name, dataType string, columns []string) (domain.ExportConfiguration, error) {
	allCols, ok := exportColumnsFor(dataType)
	if !ok {
		return domain.ExportConfiguration{}, domain.FieldErrors{"dataType": "data type must be one of vehicles, users, bids, quotes"}
	}
	if strings.TrimSpace(name) == "" {
		return domain.ExportConfiguration{}, domain.FieldErrors{"name": "name is required"}
	}
	if _, err := selectColumns(allCols, columns); err != nil {
		return domain.ExportConfiguration{}, err
	}
	cfg := domain.ExportConfiguration{
		ID:        util.NewID(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		DataType:  dataType,
		Columns:   columns,
		CreatedAt: a.now(),
	}
	if err := a.store.SaveExportConfiguration(cfg); err != nil {
		return domain.ExportConfiguration{}, fmt.Errorf("save export configuration: %w", err)
	}
	return cfg, nil
}

// ListExportConfigurations returns the admin's saved column sets.
func (a *App) ListExportConfigurations(ctx context.Context, userID string) ([]domain.ExportConfiguration, error) {
	cfgs, err := a.store.ListExportConfigurations(userID)
	if err != nil {
		return nil, fmt.Errorf("list export configurations: %w", err)
	}
	return cfgs, nil
}

// ListExportLogs returns the most recent export audit rows.
func (a *App) ListExportLogs(ctx context.Context, limit int) ([]domain.ExportLog, error) {
	logs, err := a.store.ListExportLogs(limit)
	if err != nil {
		return nil, fmt.Errorf("list export logs: %w", err)
	}
	return logs, nil
}
