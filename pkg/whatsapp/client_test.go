package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0771234567", "263771234567"},
		{"+263 77 123 4567", "263771234567"},
		{"263771234567", "263771234567"},
		{"771234567", "263771234567"},
		{"(077) 123-4567", "263771234567"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"messages":[{"id":"wamid.abc123"}]}`)
	}))
	defer srv.Close()

	c := NewClient("token-123", "phone-456")
	c.baseURL = srv.URL

	id, err := c.SendText(context.Background(), "0771234567", "Your vehicle was approved")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != "wamid.abc123" {
		t.Fatalf("delivery id = %q", id)
	}
	if gotPath != "/phone-456/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["messaging_product"] != "whatsapp" || gotBody["to"] != "263771234567" {
		t.Fatalf("unexpected payload: %v", gotBody)
	}
}

func TestSendTemplate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"messages":[{"id":"wamid.tpl1"}]}`)
	}))
	defer srv.Close()

	c := NewClient("token-123", "phone-456")
	c.baseURL = srv.URL

	id, err := c.SendTemplate(context.Background(), "0771234567", "listing_approved", "en", "2019 Toyota Hilux")
	if err != nil {
		t.Fatalf("SendTemplate: %v", err)
	}
	if id != "wamid.tpl1" {
		t.Fatalf("delivery id = %q", id)
	}
	if gotBody["type"] != "template" {
		t.Fatalf("unexpected payload: %v", gotBody)
	}
	tpl, _ := gotBody["template"].(map[string]any)
	if tpl == nil || tpl["name"] != "listing_approved" {
		t.Fatalf("unexpected template: %v", tpl)
	}
}

func TestSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad-token", "phone-456")
	c.baseURL = srv.URL
	if _, err := c.SendText(context.Background(), "0771234567", "hello"); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestSendTextNotConfigured(t *testing.T) {
	c := NewClient("", "")
	if _, err := c.SendText(context.Background(), "0771234567", "hello"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
