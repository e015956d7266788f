package monitor

import (
	"fmt"
	"time"

	"loadwatch/internal/accounting"
	"loadwatch/internal/alerting"
	"loadwatch/internal/load"
	"loadwatch/internal/observability/metrics"
	"loadwatch/internal/simulation"
)

// Start transitions Stopped→Running and begins ticking. Starting a running
// engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.lastTickAt = e.clock.Now()
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	e.recordEvent(alerting.Event{
		Timestamp: e.clock.Now().UTC(),
		Kind:      alerting.KindSystem,
		Severity:  alerting.SeverityInfo,
		Message:   "Monitoring started",
	})

	go e.run(stopCh, doneCh)
}

// Stop transitions Running→Stopped. It blocks until the in-flight tick, if
// any, completes, so no tick executes after Stop returns. A stuck tick
// yields ErrStopTimeout after a bounded wait.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	stopCh, doneCh := e.stopCh, e.doneCh
	e.stopCh, e.doneCh = nil, nil
	e.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(stopTimeout):
		return ErrStopTimeout
	}

	e.recordEvent(alerting.Event{
		Timestamp: e.clock.Now().UTC(),
		Kind:      alerting.KindSystem,
		Severity:  alerting.SeverityInfo,
		Message:   "Monitoring stopped",
	})
	return nil
}

// Running reports the loop state.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.Tick(e.clock.Now())
		}
	}
}

// Tick executes one sample→buffer→account→evaluate→publish cycle. Exposed
// so hosts without a background loop can drive the engine themselves; ticks
// must not run concurrently. Any unexpected failure is recovered, surfaced
// as an error alert, and the loop continues.
func (e *Engine) Tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncTickFailure()
			e.logger.Printf("tick recovered: %v", r)
			e.recordEvent(alerting.Event{
				Timestamp: e.clock.Now().UTC(),
				Kind:      alerting.KindSystem,
				Severity:  alerting.SeverityError,
				Message:   fmt.Sprintf("Tick failed: %v", r),
			})
		}
	}()

	started := e.clock.Now()

	e.mu.Lock()
	profiles := append([]load.Profile(nil), e.profiles...)
	thresholds := e.thresholds
	tariffs := e.tariffs
	loggingOn := e.loggingOn
	elapsed := now.Sub(e.lastTickAt).Seconds()
	e.lastTickAt = now
	e.mu.Unlock()

	reading := e.generator.Generate(profiles)
	reading.Timestamp = now.UTC()

	cumulativeKWh := e.account.Integrate(reading.PowerWatts, elapsed)
	e.buffer.Push(reading, cumulativeKWh)
	cost := accounting.Cost(cumulativeKWh, now.Hour(), tariffs)

	for _, diag := range e.drainDiagnostics() {
		e.recordEvent(alerting.Event{
			Timestamp: now.UTC(),
			Kind:      diagnosticKind(diag),
			Severity:  alerting.SeverityWarning,
			Message:   diag.Message,
		})
	}

	events := e.evaluator.Evaluate(alerting.Input{
		Reading:       reading,
		CumulativeKWh: cumulativeKWh,
		AnyLoadActive: anyActive(profiles),
		Thresholds:    thresholds,
		RecentVoltage: e.buffer.RecentVoltage(10),
	})
	for _, event := range events {
		metrics.IncAlert(string(event.Kind), string(event.Severity))
		e.publishAlert(event)
	}

	if loggingOn && e.callbacks.OnSample != nil {
		if err := e.callbacks.OnSample(reading, cumulativeKWh); err != nil {
			metrics.IncLogWriteError()
			e.logger.Printf("sample log write failed: %v", err)
			e.recordEvent(alerting.Event{
				Timestamp: now.UTC(),
				Kind:      alerting.KindSystem,
				Severity:  alerting.SeverityError,
				Message:   fmt.Sprintf("Failed to log data: %v", err),
			})
		}
	}

	e.mu.Lock()
	e.latest = reading
	e.lastCost = cost
	e.tickCount++
	e.mu.Unlock()

	metrics.ObserveTick(e.clock.Now().Sub(started).Seconds(),
		reading.VoltageVolts, reading.CurrentAmps, reading.PowerWatts, cumulativeKWh, cost)

	if e.callbacks.OnTick != nil {
		e.callbacks.OnTick(TickResult{
			Reading:       reading,
			CumulativeKWh: cumulativeKWh,
			Cost:          cost,
			Events:        events,
		})
	}
}

func diagnosticKind(d simulation.Diagnostic) alerting.Kind {
	switch d.Kind {
	case simulation.DiagCurrentSpike:
		return alerting.KindCurrentSpike
	default:
		return alerting.KindVoltageFluctuation
	}
}

func anyActive(profiles []load.Profile) bool {
	for _, p := range profiles {
		if p.Active {
			return true
		}
	}
	return false
}
