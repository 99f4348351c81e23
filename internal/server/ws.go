package server

import (
	"context"
	"encoding/json"
	"net/http"

	"autoeden/internal/app"
	"autoeden/pkg/domain"
	"autoeden/pkg/ws"
)

type wsInbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// handleWebSocket upgrades the connection and subscribes the user to their
// notification group, plus the dashboard group for admins. Browsers cannot
// set headers on websocket requests, so the token also rides in the query.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, r, app.ErrDisabled)
		return
	}
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeError(w, r, app.ErrInvalidCredentials)
		return
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		writeError(w, r, app.ErrInvalidCredentials)
		return
	}
	user, err := s.app.GetUser(r.Context(), claims.UserID)
	if err != nil || user.Status != domain.StatusActive {
		writeError(w, r, app.ErrInvalidCredentials)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	groups := []string{ws.NotificationGroup(user.ID)}
	if user.Role == domain.RoleAdmin {
		groups = append(groups, ws.AdminDashboardGroup)
	}

	var client *ws.Client
	client = ws.NewClient(s.hub, conn, groups, func(payload []byte) {
		s.handleWSMessage(client, user, payload)
	})
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) handleWSMessage(client *ws.Client, user domain.User, payload []byte) {
	var msg wsInbound
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	ctx := context.Background()
	switch msg.Type {
	case "ping":
		client.Reply(ws.MsgTypePong, nil)
	case "mark_read":
		if msg.ID == "" {
			return
		}
		if err := s.app.MarkNotificationRead(ctx, user.ID, msg.ID); err != nil {
			s.logger.Warn("ws mark_read failed", "user_id", user.ID, "error", err)
		}
	case "mark_all_read":
		if err := s.app.MarkAllNotificationsRead(ctx, user.ID); err != nil {
			s.logger.Warn("ws mark_all_read failed", "user_id", user.ID, "error", err)
		}
	}
}
