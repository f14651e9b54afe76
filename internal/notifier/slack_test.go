package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/amishk599/jobwatch/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent(title, source string) model.NewListingEvent {
	return model.NewListingEvent{
		Source:   source,
		Title:    title,
		Location: "Remote, US",
		Posted:   "2026-01-15 10:00",
		URL:      "https://example.com/apply",
		Key:      "k-" + title,
	}
}

func newTestSlack(srv *httptest.Server) *SlackNotifier {
	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	n.gap = 0
	return n
}

func TestSlackNotifier_EmptyEvents(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv)

	if err := n.Notify(context.Background(), nil); err != nil {
		t.Errorf("Notify(nil) = %v, want nil", err)
	}
	if err := n.Notify(context.Background(), []model.NewListingEvent{}); err != nil {
		t.Errorf("Notify([]) = %v, want nil", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestSlackNotifier_SingleEvent(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv)
	if err := n.Notify(context.Background(), []model.NewListingEvent{sampleEvent("Backend Engineer", "deepmind")}); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	header := payload.Blocks[0]
	if header.Text.Text != "🔹 Deepmind: Backend Engineer" {
		t.Errorf("header text = %q", header.Text.Text)
	}
	if f := payload.Blocks[1].Fields[0].Text; f != "*Location:*\nRemote, US" {
		t.Errorf("location field = %q", f)
	}
	if f := payload.Blocks[1].Fields[1].Text; f != "*Posted:*\n2026-01-15 10:00" {
		t.Errorf("posted field = %q", f)
	}
	if u := payload.Blocks[2].Elements[0].URL; u != "https://example.com/apply" {
		t.Errorf("action URL = %q", u)
	}
}

func TestSlackNotifier_NoURLOmitsButton(t *testing.T) {
	e := sampleEvent("No Link", "google")
	e.URL = ""
	p := buildPayload(e)
	for _, b := range p.Blocks {
		if b.Type == "actions" {
			t.Fatal("payload should have no actions block without a URL")
		}
	}
}

func TestSlackNotifier_MultipleEvents(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv)
	events := []model.NewListingEvent{
		sampleEvent("Engineer 1", "a"),
		sampleEvent("Engineer 2", "b"),
		sampleEvent("Engineer 3", "c"),
	}
	if err := n.Notify(context.Background(), events); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}
	if c := calls.Load(); c != 3 {
		t.Errorf("expected 3 HTTP calls, got %d", c)
	}
}

func TestSlackNotifier_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := newTestSlack(srv)
	events := []model.NewListingEvent{sampleEvent("A", "x"), sampleEvent("B", "y")}
	if err := n.Notify(context.Background(), events); err == nil {
		t.Error("expected error when all messages fail, got nil")
	}
}

func TestSlackNotifier_PartialFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv)
	events := []model.NewListingEvent{sampleEvent("Fails", "a"), sampleEvent("Succeeds", "b")}
	if err := n.Notify(context.Background(), events); err != nil {
		t.Errorf("expected nil (partial success), got %v", err)
	}
}

func TestSlackNotifier_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv)
	if err := n.Notify(context.Background(), []model.NewListingEvent{sampleEvent("Rate Limited", "test")}); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestSlackNotifier_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestSlack(srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Notify(ctx, []model.NewListingEvent{sampleEvent("A", "x")}); err == nil {
		t.Error("expected error with cancelled context")
	}
}

func TestSendTestMessage(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := SendTestMessage(context.Background(), newTestSlack(srv)); err != nil {
		t.Fatalf("SendTestMessage() = %v", err)
	}
	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Blocks) == 0 {
		t.Fatal("empty payload")
	}
}
