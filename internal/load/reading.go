package load

import "time"

// Physical bounds applied to every produced reading.
const (
	MinVoltage = 150.0
	MaxVoltage = 280.0
	MaxCurrent = 800.0
	MaxPower   = 200000.0
)

// NominalVoltage is the base grid voltage the simulation centers on.
const NominalVoltage = 230.0

// Reading is one electrical sample, immutable once produced.
type Reading struct {
	Timestamp    time.Time `json:"timestamp"`
	VoltageVolts float64   `json:"voltage"`
	CurrentAmps  float64   `json:"current"`
	PowerWatts   float64   `json:"power"`
}

// Clamp bounds a reading to the documented physical ranges.
func (r Reading) Clamp() Reading {
	r.VoltageVolts = clamp(r.VoltageVolts, MinVoltage, MaxVoltage)
	r.CurrentAmps = clamp(r.CurrentAmps, 0, MaxCurrent)
	r.PowerWatts = clamp(r.PowerWatts, 0, MaxPower)
	return r
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
