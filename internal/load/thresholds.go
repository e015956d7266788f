package load

import "errors"

// Documented threshold ranges; values outside are clamped on load and
// rejected on update.
const (
	MinVoltageThreshold = 200.0
	MaxVoltageThreshold = 400.0
	MinCurrentThreshold = 50.0
	MaxCurrentThreshold = 1000.0
	MinPowerThreshold   = 10000.0
	MaxPowerThreshold   = 200000.0
	MinEnergyBudget     = 100.0
	MaxEnergyBudget     = 50000.0
	MinAlertCooldown    = 5
	MaxAlertCooldown    = 60
)

// ErrOutOfRange indicates a rejected threshold or tariff update.
var ErrOutOfRange = errors.New("load: value out of range")

// Thresholds holds the alerting limits evaluated each tick.
type Thresholds struct {
	VoltageHigh          float64 `json:"voltage_threshold" yaml:"voltage_threshold"`
	VoltageLow           float64 `json:"voltage_low" yaml:"voltage_low"`
	CurrentHigh          float64 `json:"current_threshold" yaml:"current_threshold"`
	PowerHigh            float64 `json:"power_threshold" yaml:"power_threshold"`
	EnergyBudgetKWh      float64 `json:"energy_budget" yaml:"energy_budget"`
	AlertCooldownSeconds int     `json:"alert_cooldown" yaml:"alert_cooldown"`
}

// DefaultThresholds returns the safe stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VoltageHigh:          250,
		VoltageLow:           200,
		CurrentHigh:          150,
		PowerHigh:            30000,
		EnergyBudgetKWh:      1000,
		AlertCooldownSeconds: 10,
	}
}

// Validate checks that every limit lies within its documented range.
func (t Thresholds) Validate() error {
	if t.VoltageHigh < MinVoltageThreshold || t.VoltageHigh > MaxVoltageThreshold {
		return ErrOutOfRange
	}
	if t.VoltageLow <= 0 || t.VoltageLow >= t.VoltageHigh {
		return ErrOutOfRange
	}
	if t.CurrentHigh < MinCurrentThreshold || t.CurrentHigh > MaxCurrentThreshold {
		return ErrOutOfRange
	}
	if t.PowerHigh < MinPowerThreshold || t.PowerHigh > MaxPowerThreshold {
		return ErrOutOfRange
	}
	if t.EnergyBudgetKWh < MinEnergyBudget || t.EnergyBudgetKWh > MaxEnergyBudget {
		return ErrOutOfRange
	}
	if t.AlertCooldownSeconds < MinAlertCooldown || t.AlertCooldownSeconds > MaxAlertCooldown {
		return ErrOutOfRange
	}
	return nil
}

// Clamped returns a copy with every limit forced into its documented range,
// falling back to the default where a value is unusable.
func (t Thresholds) Clamped() Thresholds {
	defaults := DefaultThresholds()
	t.VoltageHigh = clampOr(t.VoltageHigh, MinVoltageThreshold, MaxVoltageThreshold, defaults.VoltageHigh)
	if t.VoltageLow <= 0 || t.VoltageLow >= t.VoltageHigh {
		t.VoltageLow = defaults.VoltageLow
	}
	// A high limit at the bottom of its range can collide with the low
	// fallback; keep the low limit strictly below it.
	if t.VoltageLow >= t.VoltageHigh {
		t.VoltageLow = t.VoltageHigh - 10
	}
	t.CurrentHigh = clampOr(t.CurrentHigh, MinCurrentThreshold, MaxCurrentThreshold, defaults.CurrentHigh)
	t.PowerHigh = clampOr(t.PowerHigh, MinPowerThreshold, MaxPowerThreshold, defaults.PowerHigh)
	t.EnergyBudgetKWh = clampOr(t.EnergyBudgetKWh, MinEnergyBudget, MaxEnergyBudget, defaults.EnergyBudgetKWh)
	if t.AlertCooldownSeconds == 0 {
		t.AlertCooldownSeconds = defaults.AlertCooldownSeconds
	}
	if t.AlertCooldownSeconds < MinAlertCooldown {
		t.AlertCooldownSeconds = MinAlertCooldown
	}
	if t.AlertCooldownSeconds > MaxAlertCooldown {
		t.AlertCooldownSeconds = MaxAlertCooldown
	}
	return t
}

func clampOr(value, lo, hi, fallback float64) float64 {
	if value == 0 {
		return fallback
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
