package history

import (
	"math/rand"
	"sync"

	"loadwatch/internal/load"
)

// DefaultCapacity matches the 200-point window the dashboards plot.
const DefaultCapacity = 200

// Point is one position across the four series.
type Point struct {
	Voltage float64
	Current float64
	Power   float64
	Energy  float64
}

// Buffer is a fixed-capacity ring of voltage/current/power/energy series.
// All four series always have equal length. Safe for concurrent readers.
type Buffer struct {
	mu      sync.RWMutex
	voltage []float64
	current []float64
	power   []float64
	energy  []float64
	head    int
	size    int
	cap     int
}

// New creates a ring buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		voltage: make([]float64, capacity),
		current: make([]float64, capacity),
		power:   make([]float64, capacity),
		energy:  make([]float64, capacity),
		cap:     capacity,
	}
}

// Push appends one sample to all four series, evicting the oldest when full.
func (b *Buffer) Push(reading load.Reading, cumulativeKWh float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voltage[b.head] = reading.VoltageVolts
	b.current[b.head] = reading.CurrentAmps
	b.power[b.head] = reading.PowerWatts
	b.energy[b.head] = cumulativeKWh
	b.head = (b.head + 1) % b.cap
	if b.size < b.cap {
		b.size++
	}
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return b.cap
}

// Snapshot returns the series oldest-first as independent copies.
func (b *Buffer) Snapshot() (voltage, current, power, energy []float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	voltage = make([]float64, b.size)
	current = make([]float64, b.size)
	power = make([]float64, b.size)
	energy = make([]float64, b.size)
	for i := 0; i < b.size; i++ {
		idx := (b.head - b.size + i + b.cap) % b.cap
		voltage[i] = b.voltage[idx]
		current[i] = b.current[idx]
		power[i] = b.power[idx]
		energy[i] = b.energy[idx]
	}
	return voltage, current, power, energy
}

// RecentVoltage returns up to n of the newest voltage samples, oldest-first.
func (b *Buffer) RecentVoltage(n int) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > b.size {
		n = b.size
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := (b.head - n + i + b.cap) % b.cap
		out[i] = b.voltage[idx]
	}
	return out
}

// Seed fills the buffer with a plausible nominal baseline so fresh graphs
// are not empty: voltage near nominal, a light load, a slow energy ramp.
func (b *Buffer) Seed(rng *rand.Rand) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < b.cap; i++ {
		b.voltage[i] = load.NominalVoltage + rng.Float64()*4 - 2
		b.current[i] = 50 + rng.Float64()*10 - 5
		b.power[i] = 11500 + rng.Float64()*1000 - 500
		b.energy[i] = float64(i) * 0.001
	}
	b.head = 0
	b.size = b.cap
}
