package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"loadwatch/internal/alerting"
)

func sampleEvent() alerting.Event {
	return alerting.Event{
		Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Kind:      alerting.KindHighVoltage,
		Severity:  alerting.SeverityWarning,
		Message:   "High voltage: 261.0V (limit 250.0V)",
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL)
	if err != nil {
		t.Fatalf("new webhook notifier: %v", err)
	}
	notifier.Notify(context.Background(), sampleEvent())

	select {
	case payload := <-payloadCh:
		if payload.Event != "high_voltage" {
			t.Fatalf("expected event high_voltage, got %s", payload.Event)
		}
		if payload.Severity != "warning" {
			t.Fatalf("expected severity warning, got %s", payload.Severity)
		}
		if !strings.Contains(payload.Message, "High voltage") {
			t.Fatalf("unexpected message %q", payload.Message)
		}
		if payload.At != "2026-03-01T08:00:00Z" {
			t.Fatalf("unexpected timestamp %s", payload.At)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook payload")
	}
}

func TestWebhookNotifierRequiresURL(t *testing.T) {
	if _, err := NewWebhookNotifier(""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestWebhookNotifierSwallowsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL)
	if err != nil {
		t.Fatalf("new webhook notifier: %v", err)
	}
	// Must not panic or block.
	notifier.Notify(context.Background(), sampleEvent())
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingNotifier) Notify(_ context.Context, event alerting.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestFanoutDeliversToAllChannels(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	fanout := Fanout{first, nil, second}
	fanout.Notify(context.Background(), sampleEvent())
	if first.Count() != 1 || second.Count() != 1 {
		t.Fatalf("expected both notifiers to receive the event, got %d and %d", first.Count(), second.Count())
	}
}

func TestAsyncDeliversWithoutBlocking(t *testing.T) {
	inner := &recordingNotifier{}
	async := NewAsync(inner)
	async.Notify(context.Background(), sampleEvent())

	deadline := time.After(2 * time.Second)
	for inner.Count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for async delivery")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestCommandNotifierExportsEventEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "event.txt")
	notifier := NewCommandNotifier(`printf '%s|%s' "$LOADWATCH_EVENT" "$LOADWATCH_SEVERITY" > ` + out)
	notifier.Notify(context.Background(), sampleEvent())

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read command output: %v", err)
	}
	if string(data) != "high_voltage|warning" {
		t.Fatalf("unexpected command output %q", string(data))
	}
}

func TestCommandNotifierEmptyCommandIsNoop(t *testing.T) {
	NewCommandNotifier("").Notify(context.Background(), sampleEvent())
}
