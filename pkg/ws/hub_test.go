package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func registerTestClient(t *testing.T, hub *Hub, groups ...string) *Client {
	t.Helper()
	client := NewClient(hub, nil, groups, nil)
	client.Register()
	waitFor(t, func() bool { return hub.ClientCount() > 0 })
	return client
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPublishReachesGroupMembersOnly(t *testing.T) {
	hub := startHub(t)
	alice := registerTestClient(t, hub, NotificationGroup("alice"))
	bob := registerTestClient(t, hub, NotificationGroup("bob"))

	hub.Publish(NotificationGroup("alice"), MsgTypeNotification, map[string]string{"message": "new bid"})

	select {
	case payload := <-alice.send:
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != MsgTypeNotification {
			t.Fatalf("type = %q", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alice did not receive the message")
	}

	select {
	case payload := <-bob.send:
		t.Fatalf("bob received unexpected message %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAdminDashboardGroup(t *testing.T) {
	hub := startHub(t)
	admin := registerTestClient(t, hub, AdminDashboardGroup)

	hub.Publish(AdminDashboardGroup, MsgTypeDashboard, map[string]int{"pending": 3})

	select {
	case payload := <-admin.send:
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != MsgTypeDashboard {
			t.Fatalf("type = %q", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("admin did not receive dashboard stats")
	}
}

func TestUnregisterLeavesGroups(t *testing.T) {
	hub := startHub(t)
	client := registerTestClient(t, hub, NotificationGroup("carol"), AdminDashboardGroup)

	if hub.GroupSize(AdminDashboardGroup) != 1 {
		t.Fatal("client not in admin group")
	}
	client.Unregister()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
	if hub.GroupSize(AdminDashboardGroup) != 0 || hub.GroupSize(NotificationGroup("carol")) != 0 {
		t.Fatal("groups not cleaned up")
	}
}

func TestSlowConsumerIsDropped(t *testing.T) {
	hub := startHub(t)
	client := registerTestClient(t, hub, NotificationGroup("dave"))

	// fill the client's buffer without draining it
	for i := 0; i < cap(client.send)+5; i++ {
		hub.Publish(NotificationGroup("dave"), MsgTypeNotification, i)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}
