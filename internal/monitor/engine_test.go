package monitor

import (
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"testing"
	"time"

	"loadwatch/internal/alerting"
	"loadwatch/internal/load"
	"loadwatch/internal/simulation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// quietParams removes random anomalies so assertions stay deterministic.
func quietParams() simulation.Params {
	return simulation.Params{
		BaseVoltage:       230,
		JitterVolts:       0.001,
		ExcursionProb:     -1,
		SpikeProb:         -1,
		LoadVariation:     0.001,
		BackgroundMinAmps: 3,
		BackgroundMaxAmps: 8,
		BackgroundPF:      0.92,
	}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testConfig() Config {
	return Config{
		Profiles:   load.DefaultProfiles(),
		Thresholds: load.DefaultThresholds(),
		Tariffs:    load.DefaultTariffs(),
		LoggingOn:  true,
		Seed:       1,
	}
}

func newTestEngine(t *testing.T, clock *fakeClock, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(clock), WithGeneratorParams(quietParams())}, opts...)
	engine, err := NewEngine(testConfig(), testLogger(), opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(testConfig(), nil); err == nil {
		t.Fatal("expected error for nil logger")
	}

	cfg := testConfig()
	cfg.Thresholds.VoltageHigh = 9999
	if _, err := NewEngine(cfg, testLogger()); !errors.Is(err, load.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for bad thresholds, got %v", err)
	}

	cfg = testConfig()
	cfg.Profiles = []load.Profile{{Name: "", RatedCurrentAmps: 10, PowerFactor: 0.9}}
	if _, err := NewEngine(cfg, testLogger()); err == nil {
		t.Fatal("expected error for invalid profile")
	}
}

func TestTickIntegratesElapsedEnergy(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, clock)

	clock.Add(time.Hour)
	engine.Tick(clock.Now())

	snap := engine.Snapshot()
	// Lighting 50A@0.9 + Computers 80A@0.95 at 230V is 27.83 kW, plus
	// 0.6-1.7 kW background, for one hour.
	if snap.CumulativeKWh < 28 || snap.CumulativeKWh > 30 {
		t.Fatalf("expected roughly 28.5-29.5 kWh after one hour, got %v", snap.CumulativeKWh)
	}
	if snap.TickCount != 1 {
		t.Fatalf("expected tick count 1, got %d", snap.TickCount)
	}
	if snap.Reading.Timestamp.IsZero() {
		t.Fatal("tick must stamp the reading")
	}
	wantCost := snap.CumulativeKWh * snap.Tariffs.PeakRate
	if math.Abs(snap.Cost-wantCost) > 1e-9 {
		t.Fatalf("cost %v does not match peak rate, want %v", snap.Cost, wantCost)
	}
}

func TestTickPublishesAlertsThroughCallback(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	var mu sync.Mutex
	var published []alerting.Event
	engine := newTestEngine(t, clock, WithCallbacks(Callbacks{
		OnAlert: func(event alerting.Event) {
			mu.Lock()
			published = append(published, event)
			mu.Unlock()
		},
	}))

	// Force a high-current breach.
	thresholds := load.DefaultThresholds()
	thresholds.CurrentHigh = 50
	if err := engine.UpdateThresholds(thresholds); err != nil {
		t.Fatalf("update thresholds: %v", err)
	}

	clock.Add(time.Second)
	engine.Tick(clock.Now())

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, event := range published {
		if event.Kind == alerting.KindHighCurrent {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected high current alert, got %v", published)
	}
}

func TestTickSurvivesSampleLogFailure(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, clock, WithCallbacks(Callbacks{
		OnSample: func(load.Reading, float64) error {
			return errors.New("disk full")
		},
	}))

	clock.Add(time.Second)
	engine.Tick(clock.Now())

	if got := engine.Snapshot().TickCount; got != 1 {
		t.Fatalf("tick must complete despite log failure, count %d", got)
	}
	found := false
	for _, event := range engine.Alerts().List() {
		if event.Kind == alerting.KindSystem && event.Severity == alerting.SeverityError {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an error event for the failed log write")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	engine, err := NewEngine(testConfig(), testLogger(),
		WithGeneratorParams(quietParams()), WithInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if engine.Running() {
		t.Fatal("engine must start stopped")
	}
	if err := engine.Stop(); err != nil {
		t.Fatalf("stopping a stopped engine must be a no-op: %v", err)
	}

	engine.Start()
	if !engine.Running() {
		t.Fatal("expected running after Start")
	}
	engine.Start() // second start is a no-op

	deadline := time.After(2 * time.Second)
	for engine.Snapshot().TickCount == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for first tick")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := engine.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if engine.Running() {
		t.Fatal("expected stopped after Stop")
	}
	count := engine.Snapshot().TickCount
	time.Sleep(30 * time.Millisecond)
	if got := engine.Snapshot().TickCount; got != count {
		t.Fatalf("ticks continued after Stop: %d -> %d", count, got)
	}
}

func TestEmergencyShutdown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	var mu sync.Mutex
	var published []alerting.Event
	engine := newTestEngine(t, clock, WithCallbacks(Callbacks{
		OnAlert: func(event alerting.Event) {
			mu.Lock()
			published = append(published, event)
			mu.Unlock()
		},
	}))

	// Defaults have Lighting and Computers active.
	if count := engine.EmergencyShutdown(); count != 2 {
		t.Fatalf("expected 2 loads deactivated, got %d", count)
	}
	for _, profile := range engine.Snapshot().Profiles {
		if profile.Active {
			t.Fatalf("load %s still active after shutdown", profile.Name)
		}
	}

	mu.Lock()
	if len(published) != 1 {
		mu.Unlock()
		t.Fatalf("expected exactly one shutdown event, got %d", len(published))
	}
	event := published[0]
	mu.Unlock()
	if event.Kind != alerting.KindEmergencyShutdown || event.Severity != alerting.SeverityError {
		t.Fatalf("unexpected event %+v", event)
	}

	// Idempotent: nothing left to deactivate, but the event still fires.
	if count := engine.EmergencyShutdown(); count != 0 {
		t.Fatalf("expected 0 on repeat shutdown, got %d", count)
	}
}

func TestClearDataResetsEnergyExactly(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, clock)

	for i := 0; i < 10; i++ {
		clock.Add(time.Second)
		engine.Tick(clock.Now())
	}
	if engine.Snapshot().CumulativeKWh <= 0 {
		t.Fatal("expected accumulated energy before clear")
	}

	engine.ClearData()
	snap := engine.Snapshot()
	if snap.CumulativeKWh != 0 {
		t.Fatalf("expected exactly 0 kWh after clear, got %v", snap.CumulativeKWh)
	}
	if snap.TickCount != 0 {
		t.Fatalf("expected tick count reset, got %d", snap.TickCount)
	}
	if engine.History().Len() != engine.History().Cap() {
		t.Fatal("expected reseeded full buffer after clear")
	}
}

func TestClearDataReseedIsReproduciblePerSeed(t *testing.T) {
	run := func(start time.Time) []float64 {
		clock := &fakeClock{now: start}
		engine := newTestEngine(t, clock)
		for i := 0; i < 5; i++ {
			clock.Add(time.Second)
			engine.Tick(clock.Now())
		}
		engine.ClearData()
		voltage, _, _, _ := engine.History().Snapshot()
		return voltage
	}

	// Identical Config.Seed must reproduce the reseeded series regardless
	// of wall-clock time.
	first := run(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	second := run(time.Date(2026, 7, 15, 9, 30, 0, 0, time.UTC))
	if len(first) != len(second) {
		t.Fatalf("snapshot lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("reseeded voltage diverges at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestLoadControls(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, clock)

	if err := engine.SetLoadActive("HVAC", true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := engine.SetLoadActive("Boiler", true); !errors.Is(err, ErrUnknownLoad) {
		t.Fatalf("expected ErrUnknownLoad, got %v", err)
	}
	if err := engine.SetLoadCurrent("HVAC", -5); !errors.Is(err, load.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for negative current, got %v", err)
	}
	if err := engine.SetLoadPowerFactor("HVAC", 1.5); !errors.Is(err, load.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for bad power factor, got %v", err)
	}
	if err := engine.SetLoadCurrent("HVAC", 250); err != nil {
		t.Fatalf("set current: %v", err)
	}

	for _, profile := range engine.Snapshot().Profiles {
		if profile.Name == "HVAC" {
			if !profile.Active || profile.RatedCurrentAmps != 250 {
				t.Fatalf("HVAC update lost: %+v", profile)
			}
		}
	}
}

func TestUpdateThresholdsRejectsAndKeepsPrior(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, clock)

	before := engine.Snapshot().Thresholds
	bad := before
	bad.EnergyBudgetKWh = 1
	if err := engine.UpdateThresholds(bad); !errors.Is(err, load.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if got := engine.Snapshot().Thresholds; got != before {
		t.Fatalf("rejected update changed thresholds: %+v", got)
	}

	badTariffs := load.TariffTable{PeakRate: -1, OffPeakRate: 3, ShoulderRate: 4}
	if err := engine.UpdateTariffRates(badTariffs); err == nil {
		t.Fatal("expected error for negative tariff")
	}
}

func TestSnapshotTariffBand(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)}
	engine := newTestEngine(t, clock)
	snap := engine.Snapshot()
	if snap.TariffBand != load.BandOffPeak {
		t.Fatalf("expected off-peak band at 3am, got %s", snap.TariffBand)
	}
	if snap.RatePerKWh != snap.Tariffs.OffPeakRate {
		t.Fatalf("expected off-peak rate, got %v", snap.RatePerKWh)
	}
}
