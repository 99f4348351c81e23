package server

import (
	"fmt"
	"net/http"

	"autoeden/internal/app"
	"autoeden/pkg/domain"
)

type placeBidRequest struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req placeBidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bid, err := s.app.PlaceBid(r.Context(), user, r.PathValue("id"), req.Amount, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Server) handleVehicleBids(w http.ResponseWriter, r *http.Request, user domain.User) {
	bids, err := s.app.VehicleBids(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (s *Server) handleMyBids(w http.ResponseWriter, r *http.Request, user domain.User) {
	bids, err := s.app.MyBids(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (s *Server) handleAcceptBid(w http.ResponseWriter, r *http.Request, user domain.User) {
	bid, err := s.app.DecideBid(r.Context(), user, r.PathValue("id"), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func (s *Server) handleRejectBid(w http.ResponseWriter, r *http.Request, user domain.User) {
	bid, err := s.app.DecideBid(r.Context(), user, r.PathValue("id"), false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var input app.QuoteInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	quote, err := s.app.CreateQuote(r.Context(), s.optionalUser(r), r.PathValue("id"), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quote)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request, user domain.User) {
	quote, err := s.app.GetQuote(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleQuotePDF(w http.ResponseWriter, r *http.Request, user domain.User) {
	pdfBytes, err := s.app.QuotePDF(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "autoeden-quote-"+r.PathValue("id")+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdfBytes)
}
