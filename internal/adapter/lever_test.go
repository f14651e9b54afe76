package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLeverAdapter_FetchPage_Success(t *testing.T) {
	payload := `[
		{
			"id": "ff7ef527-b0d3-4c44-836a-8d6b58ac321e",
			"text": "Software Engineer",
			"categories": {
				"location": "San Francisco, CA",
				"allLocations": ["San Francisco, CA", "Remote"]
			},
			"createdAt": 1769784074110,
			"hostedUrl": "https://jobs.lever.co/acme/ff7ef527"
		},
		{
			"id": "a1b2c3d4",
			"text": "Backend Engineer",
			"categories": {"location": "Remote"},
			"hostedUrl": "https://jobs.lever.co/acme/a1b2c3d4"
		}
	]`
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	adapter := NewLeverAdapter("acme", srv.Client())
	adapter.baseURL = srv.URL

	page, err := adapter.FetchPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "mode=json" {
		t.Errorf("query = %q, want mode=json", gotQuery)
	}
	if page.HasMore {
		t.Error("lever should report a single page")
	}
	if len(page.Listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(page.Listings))
	}

	first := page.Listings[0]
	if first.Location != "San Francisco, CA, Remote" {
		t.Errorf("location = %q", first.Location)
	}
	if first.PostedRaw != "1769784074110" {
		t.Errorf("PostedRaw = %q, want millis string", first.PostedRaw)
	}
	if first.URL != "https://jobs.lever.co/acme/ff7ef527" {
		t.Errorf("URL = %q", first.URL)
	}

	second := page.Listings[1]
	if second.Location != "Remote" {
		t.Errorf("fallback location = %q, want Remote", second.Location)
	}
	if second.PostedRaw != "" {
		t.Errorf("missing createdAt should give empty PostedRaw, got %q", second.PostedRaw)
	}
}

func TestLeverAdapter_FetchPage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewLeverAdapter("acme", srv.Client())
	adapter.baseURL = srv.URL

	if _, err := adapter.FetchPage(context.Background(), 1); err == nil {
		t.Fatal("expected error for 502")
	}
}
