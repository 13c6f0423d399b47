package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubSender struct {
	name  string
	err   error
	calls int
}

func (s *stubSender) Send(context.Context, string, string) error {
	s.calls++
	return s.err
}

func (s *stubSender) Name() string { return s.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFilter(t *testing.T) {
	t.Parallel()

	s := &stubSender{name: "stub"}
	n := NewNotifier([]Sender{s}, nil, discard())

	_ = n.Notify(context.Background(), "deployment_confirmed", "t", "m")
	_ = n.Notify(context.Background(), "deployment_planned", "t", "m")
	if s.calls != 1 {
		t.Fatalf("expected only default events to be sent, got %d calls", s.calls)
	}

	all := NewNotifier([]Sender{s}, []string{"*"}, discard())
	_ = all.Notify(context.Background(), "anything", "t", "m")
	if s.calls != 2 {
		t.Fatalf("expected wildcard to allow every event")
	}
}

func TestNotifierJoinsSenderErrors(t *testing.T) {
	t.Parallel()

	bad := &stubSender{name: "bad", err: errors.New("timeout")}
	good := &stubSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), "deployment_failed", "t", "m")
	if err == nil || !strings.Contains(err.Error(), "bad: timeout") {
		t.Fatalf("expected named sender error, got %v", err)
	}
	if good.calls != 1 {
		t.Fatalf("expected remaining senders to still run")
	}
}

func TestTelegramSender(t *testing.T) {
	t.Parallel()

	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("123:abc", "-100")
	s.baseURL = srv.URL
	if err := s.Send(context.Background(), "TUSCA 2022 deployed", "address: 0x1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path %s", path)
	}
	if got["chat_id"] != "-100" || got["text"] != "*TUSCA 2022 deployed*\naddress: 0x1" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestDiscordSenderStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m"); err != nil {
		t.Fatalf("expected 204 to succeed, got %v", err)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown webhook", http.StatusNotFound)
	}))
	defer failing.Close()

	err := NewDiscordSender(failing.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "unknown webhook") {
		t.Fatalf("expected status error, got %v", err)
	}
}
