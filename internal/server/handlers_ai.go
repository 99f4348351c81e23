package server

import (
	"net/http"

	"autoeden/pkg/domain"
)

// Assistant endpoints degrade gracefully: when no text generator is
// configured they answer 200 with enabled=false so clients can hide the
// feature instead of surfacing an error.

type aiVehicleRequest struct {
	VehicleID string `json:"vehicleId"`
}

type aiChatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAIDescribe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !s.app.AssistantEnabled() {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	var req aiVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.app.DescribeVehicle(r.Context(), user, req.VehicleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "description": text})
}

func (s *Server) handleAIPrice(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !s.app.AssistantEnabled() {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	var req aiVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.app.SuggestPrice(r.Context(), user, req.VehicleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "suggestion": text})
}

func (s *Server) handleAIChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !s.app.AssistantEnabled() {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	var req aiChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.app.Chat(r.Context(), req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "reply": text})
}
