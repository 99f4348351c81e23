package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"autoeden/internal/app"
	"autoeden/internal/util"
	"autoeden/pkg/domain"
	"autoeden/pkg/store"
)

func (s *Server) handleAdminVehicles(w http.ResponseWriter, r *http.Request, _ domain.User) {
	q := r.URL.Query()
	filter := store.VehicleFilter{
		Make:              strings.TrimSpace(q.Get("make")),
		Model:             strings.TrimSpace(q.Get("model")),
		OwnerID:           strings.TrimSpace(q.Get("ownerId")),
		ListingType:       domain.ListingType(q.Get("listingType")),
		VerificationState: domain.VerificationState(q.Get("verificationState")),
		SortBy:            strings.TrimSpace(q.Get("sort")),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))

	vehicles, total, err := s.app.AdminListVehicles(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vehicles": vehicles,
		"total":    total,
	})
}

type reviewRequest struct {
	VerificationState domain.VerificationState `json:"verificationState"`
	RejectionReason   string                   `json:"rejectionReason"`
}

func (s *Server) handleReviewVehicle(w http.ResponseWriter, r *http.Request, admin domain.User) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vehicle, err := s.app.ReviewVehicle(r.Context(), admin, r.PathValue("id"), req.VerificationState, req.RejectionReason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleAdminQuotes(w http.ResponseWriter, r *http.Request, _ domain.User) {
	quotes, err := s.app.ListQuotes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (s *Server) handleSetQuoteStatus(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req struct {
		Status domain.QuoteStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.SetQuoteStatus(r.Context(), r.PathValue("id"), req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	stats, err := s.app.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	users, err := s.app.AdminListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleSetUserStatus(w http.ResponseWriter, r *http.Request, admin domain.User) {
	var req struct {
		Status domain.UserStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.app.SetUserStatus(r.Context(), admin, r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, admin domain.User) {
	var req app.ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.app.Export(r.Context(), admin, req, util.ClientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("X-Record-Count", strconv.Itoa(result.RecordCount))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request, _ domain.User) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	logs, err := s.app.ListExportLogs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleExportColumns(w http.ResponseWriter, r *http.Request, _ domain.User) {
	dataType := r.URL.Query().Get("dataType")
	columns, ok := app.ExportColumnNames(dataType)
	if !ok {
		writeError(w, r, domain.FieldErrors{"dataType": "data type must be one of vehicles, users, bids, quotes"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": columns})
}

func (s *Server) handleExportConfigurations(w http.ResponseWriter, r *http.Request, admin domain.User) {
	cfgs, err := s.app.ListExportConfigurations(r.Context(), admin.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configurations": cfgs})
}

func (s *Server) handleSaveExportConfiguration(w http.ResponseWriter, r *http.Request, admin domain.User) {
	var req struct {
		Name     string   `json:"name"`
		DataType string   `json:"dataType"`
		Columns  []string `json:"columns"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.app.SaveExportConfiguration(r.Context(), admin.ID, req.Name, req.DataType, req.Columns)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}
