package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMessagesGeneratorGenerateText(t *testing.T) {
	var gotPath, gotKey string
	var gotBody messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "A well-kept 2020 Hilux."}},
		})
	}))
	defer srv.Close()

	g := NewMessagesGenerator(srv.URL, "key-123", "test-model")
	text, err := g.GenerateText(context.Background(), "You describe vehicles.", "Describe a 2020 Toyota Hilux.")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "A well-kept 2020 Hilux." {
		t.Fatalf("text = %q", text)
	}
	if gotPath != "/v1/messages" || gotKey != "key-123" {
		t.Fatalf("path=%q key=%q", gotPath, gotKey)
	}
	if gotBody.Model != "test-model" || gotBody.System == "" || len(gotBody.Messages) != 1 {
		t.Fatalf("unexpected request: %+v", gotBody)
	}
}

func TestMessagesGeneratorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model not found", "type": "invalid_request"},
		})
	}))
	defer srv.Close()

	g := NewMessagesGenerator(srv.URL, "key-123", "bad-model")
	if _, err := g.GenerateText(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMessagesGeneratorRequiresKeyAndModel(t *testing.T) {
	if _, err := NewMessagesGenerator("", "", "m").GenerateText(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error without api key")
	}
	if _, err := NewMessagesGenerator("", "k", "").GenerateText(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error without model")
	}
}
