// Package metrics registers the engine's prometheus instrumentation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "loadwatch_"

var (
	registerOnce sync.Once

	ticksTotal   prometheus.Counter
	tickDuration prometheus.Histogram
	tickFailures prometheus.Counter

	alertsTotal *prometheus.CounterVec

	voltageGauge prometheus.Gauge
	currentGauge prometheus.Gauge
	powerGauge   prometheus.Gauge
	energyGauge  prometheus.Gauge
	costGauge    prometheus.Gauge

	exportTotal *prometheus.CounterVec

	logWriteErrors prometheus.Counter
)

// Init registers all engine metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		ticksTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticks_total",
				Help: "Total completed monitoring ticks",
			},
		)
		tickDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_duration_seconds",
				Help:    "Tick execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		tickFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "tick_failures_total",
				Help: "Total ticks that recovered from an unexpected failure",
			},
		)

		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alert events fired by kind and severity",
			},
			[]string{"kind", "severity"},
		)

		voltageGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "voltage_volts",
				Help: "Latest sampled voltage",
			},
		)
		currentGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "current_amps",
				Help: "Latest sampled current",
			},
		)
		powerGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "power_watts",
				Help: "Latest sampled power",
			},
		)
		energyGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "energy_kwh",
				Help: "Cumulative energy since period start",
			},
		)
		costGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "cost",
				Help: "Accumulated cost at the current tariff band",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_export_total",
				Help: "Total history exports by format and result",
			},
			[]string{"format", "result"},
		)

		logWriteErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "log_write_errors_total",
				Help: "Total sample log writes skipped due to IO errors",
			},
		)

		prometheus.MustRegister(
			ticksTotal,
			tickDuration,
			tickFailures,
			alertsTotal,
			voltageGauge,
			currentGauge,
			powerGauge,
			energyGauge,
			costGauge,
			exportTotal,
			logWriteErrors,
		)
	})
}

// ObserveTick records one completed tick and its latest figures.
func ObserveTick(durationSeconds, voltage, current, power, energyKWh, cost float64) {
	if ticksTotal == nil {
		return
	}
	ticksTotal.Inc()
	tickDuration.Observe(durationSeconds)
	voltageGauge.Set(voltage)
	currentGauge.Set(current)
	powerGauge.Set(power)
	energyGauge.Set(energyKWh)
	costGauge.Set(cost)
}

// IncTickFailure records a recovered tick failure.
func IncTickFailure() {
	if tickFailures != nil {
		tickFailures.Inc()
	}
}

// IncAlert records one fired alert event.
func IncAlert(kind, severity string) {
	if alertsTotal != nil {
		alertsTotal.WithLabelValues(kind, severity).Inc()
	}
}

// IncExport records one history export attempt.
func IncExport(format, result string) {
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// IncLogWriteError records a skipped sample log write.
func IncLogWriteError() {
	if logWriteErrors != nil {
		logWriteErrors.Inc()
	}
}
