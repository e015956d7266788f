package load

import "errors"

// Tariff bands by wall-clock hour: peak [08,20), off-peak [00,06),
// shoulder otherwise.
const (
	BandPeak     = "peak"
	BandOffPeak  = "off_peak"
	BandShoulder = "shoulder"
)

// TariffTable holds time-of-use rates in Rs./kWh.
type TariffTable struct {
	PeakRate     float64 `json:"peak" yaml:"peak"`
	OffPeakRate  float64 `json:"off_peak" yaml:"off_peak"`
	ShoulderRate float64 `json:"shoulder" yaml:"shoulder"`
}

// DefaultTariffs returns the stock rate table.
func DefaultTariffs() TariffTable {
	return TariffTable{PeakRate: 5.75, OffPeakRate: 3.50, ShoulderRate: 4.25}
}

// Validate checks that all rates are positive.
func (t TariffTable) Validate() error {
	if t.PeakRate <= 0 || t.OffPeakRate <= 0 || t.ShoulderRate <= 0 {
		return errors.New("tariff table: rates must be positive")
	}
	return nil
}

// BandAt returns the tariff band for an hour of day.
func BandAt(hour int) string {
	switch {
	case hour >= 8 && hour < 20:
		return BandPeak
	case hour >= 0 && hour < 6:
		return BandOffPeak
	default:
		return BandShoulder
	}
}

// RateAt returns the rate per kWh for an hour of day.
func (t TariffTable) RateAt(hour int) float64 {
	switch BandAt(hour) {
	case BandPeak:
		return t.PeakRate
	case BandOffPeak:
		return t.OffPeakRate
	default:
		return t.ShoulderRate
	}
}
