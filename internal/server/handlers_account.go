package server

import (
	"net/http"

	"autoeden/internal/app"
	"autoeden/pkg/domain"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	profile, err := s.app.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	var update app.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := s.app.UpdateProfile(r.Context(), user.ID, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request, user domain.User) {
	pref, err := s.app.GetPreferences(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request, user domain.User) {
	var pref domain.NotificationPreference
	if err := decodeJSON(r, &pref); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.app.UpdatePreferences(r.Context(), user.ID, pref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, user domain.User) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := s.app.MyNotifications(r.Context(), user.ID, unreadOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request, user domain.User) {
	count, err := s.app.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.MarkNotificationRead(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.MarkAllNotificationsRead(r.Context(), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteNotification(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMySearches(w http.ResponseWriter, r *http.Request, user domain.User) {
	searches, err := s.app.MySearches(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": searches})
}

func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.SearchInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	search, err := s.app.CreateSearch(r.Context(), user.ID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, search)
}

func (s *Server) handleUpdateSearch(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req struct {
		Status domain.SearchStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	search, err := s.app.SetSearchStatus(r.Context(), user.ID, r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, search)
}

func (s *Server) handleDeleteSearch(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteSearch(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type draftRequest struct {
	Payload map[string]any `json:"payload"`
}

func (s *Server) handleMyDrafts(w http.ResponseWriter, r *http.Request, user domain.User) {
	drafts, err := s.app.MyDrafts(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req draftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := s.app.SaveDraft(r.Context(), user.ID, "", req.Payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req draftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := s.app.SaveDraft(r.Context(), user.ID, r.PathValue("id"), req.Payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteDraft(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePublishDraft(w http.ResponseWriter, r *http.Request, user domain.User) {
	vehicle, err := s.app.PublishDraft(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vehicle)
}
