package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPPushClient_SendMulticast(t *testing.T) {
	t.Parallel()

	var captured multicastRequest
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{},
				{"error": "registration-token-not-registered"},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPPushClient(server.URL, "api-key")
	results, err := client.SendMulticast(context.Background(), []string{"tok-a", "tok-b"},
		"Driver arriving", "5 minutes away", map[string]string{"type": "driver_arrival"})
	if err != nil {
		t.Fatalf("SendMulticast failed: %v", err)
	}

	if authHeader != "key=api-key" {
		t.Errorf("unexpected Authorization header %q", authHeader)
	}
	if len(captured.Tokens) != 2 || captured.Notification.Title != "Driver arriving" {
		t.Errorf("unexpected request payload: %+v", captured)
	}
	if captured.Data["type"] != "driver_arrival" {
		t.Errorf("unexpected data payload: %v", captured.Data)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ErrorCode != "" || results[0].Token != "tok-a" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if !results[1].Invalid() {
		t.Errorf("expected the second token reported dead, got %+v", results[1])
	}
}

func TestHTTPPushClient_SendMulticast_GatewayError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPPushClient(server.URL, "")
	if _, err := client.SendMulticast(context.Background(), []string{"tok-a"}, "t", "b", nil); err == nil {
		t.Fatalf("expected an error for a non-200 response")
	}
}

func TestHTTPPushClient_SendMulticast_NoTokens(t *testing.T) {
	t.Parallel()

	client := NewHTTPPushClient("http://127.0.0.1:0", "")
	results, err := client.SendMulticast(context.Background(), nil, "t", "b", nil)
	if err != nil {
		t.Fatalf("SendMulticast failed: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results, got %v", results)
	}
}
