// Package datalog appends per-tick samples and alert events to CSV files
// and renders history exports. Writes are best-effort: a failure skips that
// entry and is surfaced to the caller, never propagated into the tick loop.
package datalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"loadwatch/internal/alerting"
	"loadwatch/internal/load"
)

const timeLayout = "2006-01-02 15:04:05"

var sampleHeader = []string{"timestamp", "voltage", "current", "power", "energy"}

// CSVLogger appends one row per tick to a CSV file, writing the header when
// it creates the file.
type CSVLogger struct {
	mu   sync.Mutex
	path string
}

// NewCSVLogger constructs a logger for the given file path.
func NewCSVLogger(path string) *CSVLogger {
	return &CSVLogger{path: path}
}

// Append writes one sample row.
func (l *CSVLogger) Append(reading load.Reading, cumulativeKWh float64) error {
	if l == nil || l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return appendRow(l.path, sampleHeader, []string{
		reading.Timestamp.Format(timeLayout),
		fmt.Sprintf("%.1f", reading.VoltageVolts),
		fmt.Sprintf("%.1f", reading.CurrentAmps),
		fmt.Sprintf("%.1f", reading.PowerWatts),
		fmt.Sprintf("%.4f", cumulativeKWh),
	})
}

var alertHeader = []string{"timestamp", "kind", "severity", "message"}

// AlertLogger appends one row per alert event to a CSV file.
type AlertLogger struct {
	mu   sync.Mutex
	path string
}

// NewAlertLogger constructs an alert logger for the given file path.
func NewAlertLogger(path string) *AlertLogger {
	return &AlertLogger{path: path}
}

// Append writes one alert row.
func (l *AlertLogger) Append(event alerting.Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return appendRow(l.path, alertHeader, []string{
		event.Timestamp.Format(timeLayout),
		string(event.Kind),
		string(event.Severity),
		event.Message,
	})
}

func appendRow(path string, header, row []string) error {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if fresh {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writer.Write(row); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// backdate assigns timestamps to a history snapshot, one interval apart,
// ending at now.
func backdate(now time.Time, count int, interval time.Duration) []time.Time {
	stamps := make([]time.Time, count)
	for i := range stamps {
		stamps[i] = now.Add(-time.Duration(count-i-1) * interval)
	}
	return stamps
}
