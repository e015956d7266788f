package alerting

import (
	"fmt"
	"math"
	"time"

	"loadwatch/internal/accounting"
	"loadwatch/internal/load"
)

// Thresholds for the optional low-side rules; fixed across variants.
const (
	lowCurrentAmps     = 0.1
	lowPowerWatts      = 50.0
	stabilityWindow    = 10
	stabilityStddevMax = 15.0
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Input is everything one evaluation pass reads.
type Input struct {
	Reading       load.Reading
	CumulativeKWh float64
	AnyLoadActive bool
	Thresholds    load.Thresholds
	RecentVoltage []float64
}

// Evaluator checks threshold rules against each reading, gating every rule
// kind behind its own cooldown window.
type Evaluator struct {
	clock     Clock
	lastFired map[Kind]time.Time
}

// EvaluatorOption customizes the evaluator.
type EvaluatorOption func(*Evaluator)

// WithClock assigns a clock.
func WithClock(clock Clock) EvaluatorOption {
	return func(e *Evaluator) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		clock:     systemClock{},
		lastFired: make(map[Kind]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every rule against the input and returns the events that
// cleared their cooldown gate. All applicable rules may fire in one pass.
func (e *Evaluator) Evaluate(in Input) []Event {
	now := e.clock.Now().UTC()
	reading := in.Reading
	thresholds := in.Thresholds
	var events []Event

	fire := func(kind Kind, severity Severity, message string) {
		if !e.shouldFire(kind, now, thresholds.AlertCooldownSeconds) {
			return
		}
		events = append(events, Event{Timestamp: now, Kind: kind, Severity: severity, Message: message})
	}

	if reading.VoltageVolts > thresholds.VoltageHigh {
		fire(KindHighVoltage, SeverityWarning,
			fmt.Sprintf("High voltage: %.1fV (limit %.1fV)", reading.VoltageVolts, thresholds.VoltageHigh))
	} else if reading.VoltageVolts < thresholds.VoltageLow {
		fire(KindLowVoltage, SeverityWarning,
			fmt.Sprintf("Low voltage: %.1fV (minimum %.1fV)", reading.VoltageVolts, thresholds.VoltageLow))
	}

	if reading.CurrentAmps > thresholds.CurrentHigh {
		fire(KindHighCurrent, SeverityWarning,
			fmt.Sprintf("High current: %.1fA (limit %.1fA)", reading.CurrentAmps, thresholds.CurrentHigh))
	} else if reading.CurrentAmps < lowCurrentAmps && in.AnyLoadActive {
		fire(KindLowCurrent, SeverityWarning,
			fmt.Sprintf("Low current: %.1fA with active loads", reading.CurrentAmps))
	}

	if reading.PowerWatts > thresholds.PowerHigh {
		fire(KindHighPower, SeverityWarning,
			fmt.Sprintf("High power: %.0fW (limit %.0fW)", reading.PowerWatts, thresholds.PowerHigh))
	} else if reading.PowerWatts < lowPowerWatts && in.AnyLoadActive {
		fire(KindLowPower, SeverityWarning,
			fmt.Sprintf("Low power: %.0fW with active loads", reading.PowerWatts))
	}

	usage := accounting.BudgetFraction(in.CumulativeKWh, thresholds.EnergyBudgetKWh)
	if usage >= 1.0 {
		fire(KindBudgetExceeded, SeverityError,
			fmt.Sprintf("Energy budget exceeded: %.2f/%.1f kWh", in.CumulativeKWh, thresholds.EnergyBudgetKWh))
	} else if usage >= 0.9 {
		fire(KindBudgetWarning, SeverityWarning,
			fmt.Sprintf("Energy budget warning: %.1f%% used", usage*100))
	}

	if len(in.RecentVoltage) >= stabilityWindow {
		window := in.RecentVoltage[len(in.RecentVoltage)-stabilityWindow:]
		if dev := stddev(window); dev > stabilityStddevMax {
			fire(KindVoltageInstability, SeverityWarning,
				fmt.Sprintf("Voltage instability: stddev %.1fV over last %d samples", dev, stabilityWindow))
		}
	}

	return events
}

// shouldFire applies the per-kind cooldown gate. The first evaluation of a
// kind always fires; firing arms the window.
func (e *Evaluator) shouldFire(kind Kind, now time.Time, cooldownSeconds int) bool {
	last, seen := e.lastFired[kind]
	if seen && now.Sub(last) < time.Duration(cooldownSeconds)*time.Second {
		return false
	}
	e.lastFired[kind] = now
	return true
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
