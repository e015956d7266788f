package accounting

import (
	"sync"
	"time"

	"loadwatch/internal/load"
)

// State is a point-in-time copy of the energy account.
type State struct {
	CumulativeKWh float64   `json:"cumulative_kwh"`
	PeriodStart   time.Time `json:"period_start"`
}

// Accountant integrates instantaneous power into cumulative energy.
type Accountant struct {
	mu            sync.Mutex
	cumulativeKWh float64
	periodStart   time.Time
}

// NewAccountant starts an account at the given period start.
func NewAccountant(periodStart time.Time) *Accountant {
	return &Accountant{periodStart: periodStart.UTC()}
}

// Integrate accumulates power over the actual elapsed wall-clock seconds so
// a late or skipped tick does not under- or over-count. Returns the new
// cumulative total.
func (a *Accountant) Integrate(powerW, elapsedSeconds float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if powerW > 0 && elapsedSeconds > 0 {
		a.cumulativeKWh += (powerW / 1000) * (elapsedSeconds / 3600)
	}
	return a.cumulativeKWh
}

// CumulativeKWh returns the running total.
func (a *Accountant) CumulativeKWh() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cumulativeKWh
}

// Snapshot returns a copy of the account state.
func (a *Accountant) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{CumulativeKWh: a.cumulativeKWh, PeriodStart: a.periodStart}
}

// Reset zeroes the account and restarts the period. The only path that may
// decrease the total.
func (a *Accountant) Reset(periodStart time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cumulativeKWh = 0
	a.periodStart = periodStart.UTC()
}

// Cost converts cumulative energy to money using the tariff band for the
// given hour of day.
func Cost(cumulativeKWh float64, hour int, tariffs load.TariffTable) float64 {
	return cumulativeKWh * tariffs.RateAt(hour)
}

// BudgetFraction returns consumed/budget, or 0 for a non-positive budget.
func BudgetFraction(cumulativeKWh, budgetKWh float64) float64 {
	if budgetKWh <= 0 {
		return 0
	}
	return cumulativeKWh / budgetKWh
}
