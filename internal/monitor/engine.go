// Package monitor owns the sample→buffer→account→evaluate→publish cycle.
// A single goroutine drives ticks; consumers read immutable snapshots and
// never mutate engine state directly.
package monitor

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"loadwatch/internal/accounting"
	"loadwatch/internal/alerting"
	"loadwatch/internal/history"
	"loadwatch/internal/load"
	"loadwatch/internal/simulation"
)

// DefaultInterval is the stock tick interval.
const DefaultInterval = time.Second

// stopTimeout bounds how long Stop waits for an in-flight tick.
const stopTimeout = 2 * time.Second

// ErrUnknownLoad indicates a control action named a missing load profile.
var ErrUnknownLoad = errors.New("monitor: unknown load")

// ErrStopTimeout indicates the in-flight tick did not finish in time.
var ErrStopTimeout = errors.New("monitor: stop timed out")

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// TickResult is what one completed tick publishes.
type TickResult struct {
	Reading       load.Reading    `json:"reading"`
	CumulativeKWh float64         `json:"cumulative_kwh"`
	Cost          float64         `json:"cost"`
	Events        []alerting.Event `json:"events,omitempty"`
}

// Snapshot is the externally visible engine state, copied under lock so a
// reader never observes a partially updated tick.
type Snapshot struct {
	Running       bool             `json:"running"`
	Reading       load.Reading     `json:"reading"`
	CumulativeKWh float64          `json:"cumulative_kwh"`
	Cost          float64          `json:"cost"`
	RatePerKWh    float64          `json:"rate_per_kwh"`
	TariffBand    string           `json:"tariff_band"`
	TickCount     uint64           `json:"tick_count"`
	PeriodStart   time.Time        `json:"period_start"`
	Profiles      []load.Profile   `json:"load_profiles"`
	Thresholds    load.Thresholds  `json:"thresholds"`
	Tariffs       load.TariffTable `json:"tariff_rates"`
}

// Callbacks are the engine's boundary with external collaborators. All are
// optional. OnSample errors surface as error-severity alerts and never
// abort the tick; OnAlert must not block (wrap slow delivery in
// notify.Async).
type Callbacks struct {
	OnTick   func(TickResult)
	OnSample func(load.Reading, float64) error
	OnAlert  func(alerting.Event)
}

// Engine is the monitoring loop with its owned state.
type Engine struct {
	logger          logger
	clock           Clock
	interval        time.Duration
	generatorParams *simulation.Params
	generator       *simulation.Generator
	buffer          *history.Buffer
	account         *accounting.Accountant
	evaluator       *alerting.Evaluator
	alerts          *alerting.History
	callbacks       Callbacks

	mu         sync.Mutex
	reseed     *rand.Rand
	profiles   []load.Profile
	thresholds load.Thresholds
	tariffs    load.TariffTable
	loggingOn  bool
	running    bool
	lastTickAt time.Time
	tickCount  uint64
	latest     load.Reading
	lastCost   float64
	stopCh     chan struct{}
	doneCh     chan struct{}

	diagMu       sync.Mutex
	pendingDiags []simulation.Diagnostic
}

type logger interface {
	Printf(format string, args ...any)
}

// Option configures the engine.
type Option func(*Engine)

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithInterval overrides the tick interval.
func WithInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// WithCallbacks installs the collaborator callbacks.
func WithCallbacks(callbacks Callbacks) Option {
	return func(e *Engine) {
		e.callbacks = callbacks
	}
}

// WithGeneratorParams overrides the simulation tuning.
func WithGeneratorParams(params simulation.Params) Option {
	return func(e *Engine) {
		e.generatorParams = &params
	}
}

// Config is the engine's initial configuration.
type Config struct {
	Profiles   []load.Profile
	Thresholds load.Thresholds
	Tariffs    load.TariffTable
	LoggingOn  bool
	BufferCap  int
	Seed       int64
}

// NewEngine constructs a stopped engine.
func NewEngine(cfg Config, log logger, opts ...Option) (*Engine, error) {
	if log == nil {
		return nil, errors.New("monitor: nil logger")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("monitor: thresholds: %w", err)
	}
	if err := cfg.Tariffs.Validate(); err != nil {
		return nil, fmt.Errorf("monitor: tariffs: %w", err)
	}
	for _, profile := range cfg.Profiles {
		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("monitor: %w", err)
		}
	}

	e := &Engine{
		logger:     log,
		clock:      systemClock{},
		interval:   DefaultInterval,
		alerts:     alerting.NewHistory(),
		profiles:   append([]load.Profile(nil), cfg.Profiles...),
		thresholds: cfg.Thresholds,
		tariffs:    cfg.Tariffs,
		loggingOn:  cfg.LoggingOn,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.lastTickAt = e.clock.Now()

	seed := cfg.Seed
	if seed == 0 {
		seed = e.clock.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	// Separate stream for buffer reseeds: the generator's rng belongs to
	// the tick goroutine, and reseeds must stay reproducible per seed.
	e.reseed = rand.New(rand.NewSource(seed))
	genOpts := []simulation.Option{simulation.WithDiagnosticFunc(e.collectDiagnostic)}
	if e.generatorParams != nil {
		genOpts = append(genOpts, simulation.WithParams(*e.generatorParams))
	}
	e.generator = simulation.NewGenerator(rng, genOpts...)
	e.buffer = history.New(cfg.BufferCap)
	e.buffer.Seed(e.reseed)
	e.account = accounting.NewAccountant(e.clock.Now())
	e.evaluator = alerting.NewEvaluator(alerting.WithClock(e.clock))
	return e, nil
}

// Alerts exposes the bounded alert history.
func (e *Engine) Alerts() *alerting.History { return e.alerts }

// History exposes the time-series buffer.
func (e *Engine) History() *history.Buffer { return e.buffer }

// Snapshot returns a consistent copy of the engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.account.Snapshot()
	hour := e.clock.Now().Hour()
	return Snapshot{
		Running:       e.running,
		Reading:       e.latest,
		CumulativeKWh: state.CumulativeKWh,
		Cost:          e.lastCost,
		RatePerKWh:    e.tariffs.RateAt(hour),
		TariffBand:    load.BandAt(hour),
		TickCount:     e.tickCount,
		PeriodStart:   state.PeriodStart,
		Profiles:      append([]load.Profile(nil), e.profiles...),
		Thresholds:    e.thresholds,
		Tariffs:       e.tariffs,
	}
}

// SetLoadActive switches one load on or off.
func (e *Engine) SetLoadActive(name string, active bool) error {
	return e.updateProfile(name, func(p *load.Profile) error {
		p.Active = active
		return nil
	})
}

// SetLoadCurrent updates one load's rated current.
func (e *Engine) SetLoadCurrent(name string, amps float64) error {
	return e.updateProfile(name, func(p *load.Profile) error {
		updated := *p
		updated.RatedCurrentAmps = amps
		if err := updated.Validate(); err != nil {
			return load.ErrOutOfRange
		}
		*p = updated
		return nil
	})
}

// SetLoadPowerFactor updates one load's power factor.
func (e *Engine) SetLoadPowerFactor(name string, pf float64) error {
	return e.updateProfile(name, func(p *load.Profile) error {
		updated := *p
		updated.PowerFactor = pf
		if err := updated.Validate(); err != nil {
			return load.ErrOutOfRange
		}
		*p = updated
		return nil
	})
}

func (e *Engine) updateProfile(name string, apply func(*load.Profile) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.profiles {
		if e.profiles[i].Name == name {
			return apply(&e.profiles[i])
		}
	}
	return ErrUnknownLoad
}

// UpdateThresholds replaces the alerting limits. Out-of-range values are
// rejected and the prior limits are retained.
func (e *Engine) UpdateThresholds(thresholds load.Thresholds) error {
	if err := thresholds.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.thresholds = thresholds
	e.mu.Unlock()
	return nil
}

// UpdateTariffRates replaces the time-of-use rate table.
func (e *Engine) UpdateTariffRates(tariffs load.TariffTable) error {
	if err := tariffs.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.tariffs = tariffs
	e.mu.Unlock()
	return nil
}

// SetLogging toggles the per-tick data-log callback.
func (e *Engine) SetLogging(enabled bool) {
	e.mu.Lock()
	e.loggingOn = enabled
	e.mu.Unlock()
}

// EmergencyShutdown atomically deactivates every load and emits exactly one
// error-severity event reporting how many were active.
func (e *Engine) EmergencyShutdown() int {
	e.mu.Lock()
	count := 0
	for i := range e.profiles {
		if e.profiles[i].Active {
			e.profiles[i].Active = false
			count++
		}
	}
	e.mu.Unlock()

	event := alerting.Event{
		Timestamp: e.clock.Now().UTC(),
		Kind:      alerting.KindEmergencyShutdown,
		Severity:  alerting.SeverityError,
		Message:   fmt.Sprintf("Emergency shutdown: %d loads deactivated", count),
	}
	e.publishAlert(event)
	return count
}

// ClearData resets the buffers and the energy account to their baseline
// without changing the running state.
func (e *Engine) ClearData() {
	now := e.clock.Now()
	e.mu.Lock()
	e.buffer.Seed(e.reseed)
	e.account.Reset(now)
	e.latest = load.Reading{
		Timestamp:    now.UTC(),
		VoltageVolts: load.NominalVoltage,
		CurrentAmps:  50,
		PowerWatts:   11500,
	}
	e.lastCost = 0
	e.tickCount = 0
	e.lastTickAt = now
	e.mu.Unlock()

	e.recordEvent(alerting.Event{
		Timestamp: now.UTC(),
		Kind:      alerting.KindSystem,
		Severity:  alerting.SeverityInfo,
		Message:   "Monitoring data cleared",
	})
}

func (e *Engine) collectDiagnostic(d simulation.Diagnostic) {
	e.diagMu.Lock()
	e.pendingDiags = append(e.pendingDiags, d)
	e.diagMu.Unlock()
}

func (e *Engine) drainDiagnostics() []simulation.Diagnostic {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	diags := e.pendingDiags
	e.pendingDiags = nil
	return diags
}

// recordEvent appends to history without invoking delivery.
func (e *Engine) recordEvent(event alerting.Event) {
	e.alerts.Append(event)
}

// publishAlert appends to history and hands the event to the delivery
// callback.
func (e *Engine) publishAlert(event alerting.Event) {
	e.alerts.Append(event)
	if e.callbacks.OnAlert != nil {
		e.callbacks.OnAlert(event)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
