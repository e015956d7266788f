// Package notify delivers fired alert events to external channels
// (webhook, sound/voice playback). Delivery is best-effort: failures are
// swallowed and must never block the monitoring tick.
package notify

import (
	"context"
	"time"

	"loadwatch/internal/alerting"
)

// deliveryTimeout bounds each delivery attempt.
const deliveryTimeout = 5 * time.Second

// Notifier receives fired alert events.
type Notifier interface {
	Notify(ctx context.Context, event alerting.Event)
}

// Fanout delivers each event to every channel in the slice. Nil entries
// are skipped so callers can append optional channels unconditionally.
type Fanout []Notifier

// Notify forwards the event to every channel in order.
func (f Fanout) Notify(ctx context.Context, event alerting.Event) {
	for _, notifier := range f {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}

// Async wraps a notifier so delivery runs off the tick goroutine with a
// bounded timeout.
type Async struct {
	inner Notifier
}

// NewAsync constructs an asynchronous wrapper.
func NewAsync(inner Notifier) *Async {
	return &Async{inner: inner}
}

// Notify delivers in the background; the caller never waits.
func (a *Async) Notify(_ context.Context, event alerting.Event) {
	if a == nil || a.inner == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		a.inner.Notify(ctx, event)
	}()
}
