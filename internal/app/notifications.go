package app

import (
	"context"
	"errors"
	"fmt"

	"autoeden/pkg/domain"
	"autoeden/pkg/store"
	"autoeden/pkg/ws"
)

// MyNotifications lists the user's notifications, optionally unread only.
func (a *App) MyNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	notifications, err := a.store.ListNotifications(userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the user's unread notification count.
func (a *App) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := a.store.UnreadNotificationCount(userID)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead marks one notification read and pushes the updated
// unread count to the user's websocket group.
func (a *App) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if err := a.store.MarkNotificationRead(id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	a.pushUnreadCount(userID)
	return nil
}

// MarkAllNotificationsRead marks everything read for the user.
func (a *App) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if err := a.store.MarkAllNotificationsRead(userID); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	a.pushUnreadCount(userID)
	return nil
}

// DeleteNotification removes one of the user's notifications.
func (a *App) DeleteNotification(ctx context.Context, userID, id string) error {
	if err := a.store.DeleteNotification(id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete notification: %w", err)
	}
	a.pushUnreadCount(userID)
	return nil
}

func (a *App) pushUnreadCount(userID string) {
	if a.hub == nil {
		return
	}
	if count, err := a.store.UnreadNotificationCount(userID); err == nil {
		a.hub.Publish(ws.NotificationGroup(userID), ws.MsgTypeUnreadCount, map[string]int{"count": count})
	}
}
