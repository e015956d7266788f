// Package simulation produces the per-tick electrical readings the engine
// monitors. The generator is side-effect-free apart from the diagnostic
// hook it calls when it injects a voltage excursion or current spike.
package simulation

import (
	"fmt"
	"math"
	"math/rand"

	"loadwatch/internal/load"
)

// Diagnostic is a notice about an injected anomaly; it is not a threshold
// alert.
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
}

// DiagnosticKind labels the anomaly class.
type DiagnosticKind string

const (
	DiagVoltageFluctuation DiagnosticKind = "voltage_fluctuation"
	DiagCurrentSpike       DiagnosticKind = "current_spike"
)

// DiagnosticFunc receives injected-anomaly notices.
type DiagnosticFunc func(Diagnostic)

// Params tune the random model. Zero values fall back to defaults.
type Params struct {
	BaseVoltage       float64 // nominal grid voltage, default 230
	JitterVolts       float64 // uniform voltage jitter half-range, default 5
	ExcursionProb     float64 // chance per tick of a large excursion, default 0.01
	SpikeProb         float64 // chance per active load of a current spike, default 0.005
	LoadVariation     float64 // proportional current variation, default 0.10
	BackgroundMinAmps float64 // default 3
	BackgroundMaxAmps float64 // default 8
	BackgroundPF      float64 // default 0.92
}

func (p Params) withDefaults() Params {
	if p.BaseVoltage == 0 {
		p.BaseVoltage = load.NominalVoltage
	}
	if p.JitterVolts == 0 {
		p.JitterVolts = 5
	}
	if p.ExcursionProb == 0 {
		p.ExcursionProb = 0.01
	}
	if p.SpikeProb == 0 {
		p.SpikeProb = 0.005
	}
	if p.LoadVariation == 0 {
		p.LoadVariation = 0.10
	}
	if p.BackgroundMinAmps == 0 {
		p.BackgroundMinAmps = 3
	}
	if p.BackgroundMaxAmps == 0 {
		p.BackgroundMaxAmps = 8
	}
	if p.BackgroundPF == 0 {
		p.BackgroundPF = 0.92
	}
	return p
}

// Generator produces one reading per tick from the active load set.
type Generator struct {
	rng    *rand.Rand
	params Params
	diag   DiagnosticFunc
}

// Option configures the generator.
type Option func(*Generator)

// WithParams overrides the random model tuning.
func WithParams(params Params) Option {
	return func(g *Generator) {
		g.params = params.withDefaults()
	}
}

// WithDiagnosticFunc installs the injected-anomaly hook.
func WithDiagnosticFunc(fn DiagnosticFunc) Option {
	return func(g *Generator) {
		g.diag = fn
	}
}

// NewGenerator constructs a generator around an explicit random source so
// tests can seed it for reproducible output.
func NewGenerator(rng *rand.Rand, opts ...Option) *Generator {
	g := &Generator{
		rng:    rng,
		params: Params{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate computes one reading. With zero active profiles the totals derive
// solely from the always-on background draw, which stays above zero.
func (g *Generator) Generate(profiles []load.Profile) load.Reading {
	p := g.params

	jitter := g.uniform(-p.JitterVolts, p.JitterVolts)
	if g.rng.Float64() < p.ExcursionProb {
		excursion := g.excursion()
		jitter += excursion
		g.emit(Diagnostic{
			Kind:    DiagVoltageFluctuation,
			Message: fmt.Sprintf("Voltage fluctuation detected: %+.1fV", excursion),
		})
	}
	voltage := p.BaseVoltage + jitter

	var totalCurrent, totalPower float64
	for _, profile := range profiles {
		if !profile.Active {
			continue
		}
		variation := g.uniform(-p.LoadVariation, p.LoadVariation) * profile.RatedCurrentAmps
		if g.rng.Float64() < p.SpikeProb {
			spike := g.uniform(10, 50)
			variation += spike
			g.emit(Diagnostic{
				Kind:    DiagCurrentSpike,
				Message: fmt.Sprintf("Current spike in %s: +%.1fA", profile.Name, spike),
			})
		}
		loadCurrent := math.Max(0, profile.RatedCurrentAmps+variation)
		totalCurrent += loadCurrent
		totalPower += voltage * loadCurrent * profile.PowerFactor
	}

	backgroundCurrent := g.uniform(p.BackgroundMinAmps, p.BackgroundMaxAmps)
	totalCurrent += backgroundCurrent
	totalPower += voltage * backgroundCurrent * p.BackgroundPF

	reading := load.Reading{
		VoltageVolts: round1(voltage),
		CurrentAmps:  round1(totalCurrent),
		PowerWatts:   round1(totalPower),
	}
	return reading.Clamp()
}

// excursion returns a large voltage deviation of 30–50V with random sign.
func (g *Generator) excursion() float64 {
	magnitude := g.uniform(30, 50)
	if g.rng.Float64() < 0.5 {
		return -magnitude
	}
	return magnitude
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) emit(d Diagnostic) {
	if g.diag != nil {
		g.diag(d)
	}
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
