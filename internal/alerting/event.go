package alerting

import (
	"sync"
	"time"
)

// Severity classifies an alert event. Set at construction, never derived
// from message text.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Kind identifies a rule or diagnostic category. Each threshold kind owns
// its own cooldown window.
type Kind string

const (
	KindHighVoltage        Kind = "high_voltage"
	KindLowVoltage         Kind = "low_voltage"
	KindHighCurrent        Kind = "high_current"
	KindLowCurrent         Kind = "low_current"
	KindHighPower          Kind = "high_power"
	KindLowPower           Kind = "low_power"
	KindBudgetWarning      Kind = "budget_warning"
	KindBudgetExceeded     Kind = "budget_exceeded"
	KindVoltageInstability Kind = "voltage_instability"

	// Diagnostic and operational notices; not subject to rule cooldown.
	KindVoltageFluctuation Kind = "voltage_fluctuation"
	KindCurrentSpike       Kind = "current_spike"
	KindEmergencyShutdown  Kind = "emergency_shutdown"
	KindSystem             Kind = "system"
)

// Event is one alert occurrence, immutable once produced.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// historyLimit bounds the retained alert history.
const historyLimit = 200

// History keeps the most recent alert events. Safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []Event
	limit   int
}

// NewHistory creates a bounded alert history.
func NewHistory() *History {
	return &History{limit: historyLimit}
}

// Append records an event, discarding the oldest past the limit.
func (h *History) Append(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, event)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// List returns a copy of the retained events, oldest-first.
func (h *History) List() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clear discards all retained events.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
