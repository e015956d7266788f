// Package apihttp exposes the engine over HTTP: status, alert history,
// load control and history exports.
package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"loadwatch/internal/accounting"
	"loadwatch/internal/datalog"
	"loadwatch/internal/load"
	"loadwatch/internal/monitor"
	"loadwatch/internal/observability/metrics"
)

// StatusHandler serves the latest engine snapshot.
type StatusHandler struct {
	engine *monitor.Engine
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(engine *monitor.Engine) *StatusHandler {
	return &StatusHandler{engine: engine}
}

// ServeHTTP handles GET /api/v1/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.engine == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.engine.Snapshot())
}

// AlertsHandler serves the bounded alert history.
type AlertsHandler struct {
	engine *monitor.Engine
}

// NewAlertsHandler constructs an AlertsHandler.
func NewAlertsHandler(engine *monitor.Engine) *AlertsHandler {
	return &AlertsHandler{engine: engine}
}

// ServeHTTP handles GET /api/v1/alerts.
func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.engine == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.engine.Alerts().List())
}

// LoadsHandler lists and controls load profiles.
type LoadsHandler struct {
	engine *monitor.Engine
}

// NewLoadsHandler constructs a LoadsHandler.
func NewLoadsHandler(engine *monitor.Engine) *LoadsHandler {
	return &LoadsHandler{engine: engine}
}

type loadUpdateRequest struct {
	Name        string   `json:"name"`
	Active      *bool    `json:"active,omitempty"`
	Current     *float64 `json:"current,omitempty"`
	PowerFactor *float64 `json:"power_factor,omitempty"`
}

// ServeHTTP handles GET and POST /api/v1/loads.
func (h *LoadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.engine == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.engine.Snapshot().Profiles)
	case http.MethodPost:
		var req loadUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if err := h.apply(req); err != nil {
			writeControlError(w, err)
			return
		}
		writeJSON(w, h.engine.Snapshot().Profiles)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *LoadsHandler) apply(req loadUpdateRequest) error {
	if req.Active != nil {
		if err := h.engine.SetLoadActive(req.Name, *req.Active); err != nil {
			return err
		}
	}
	if req.Current != nil {
		if err := h.engine.SetLoadCurrent(req.Name, *req.Current); err != nil {
			return err
		}
	}
	if req.PowerFactor != nil {
		if err := h.engine.SetLoadPowerFactor(req.Name, *req.PowerFactor); err != nil {
			return err
		}
	}
	return nil
}

// ThresholdsHandler updates the alerting limits.
type ThresholdsHandler struct {
	engine *monitor.Engine
}

// NewThresholdsHandler constructs a ThresholdsHandler.
func NewThresholdsHandler(engine *monitor.Engine) *ThresholdsHandler {
	return &ThresholdsHandler{engine: engine}
}

// ServeHTTP handles GET and PUT /api/v1/thresholds.
func (h *ThresholdsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.engine == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.engine.Snapshot().Thresholds)
	case http.MethodPut:
		var thresholds load.Thresholds
		if err := json.NewDecoder(r.Body).Decode(&thresholds); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.engine.UpdateThresholds(thresholds); err != nil {
			writeControlError(w, err)
			return
		}
		writeJSON(w, h.engine.Snapshot().Thresholds)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// TariffsHandler updates the time-of-use rate table.
type TariffsHandler struct {
	engine *monitor.Engine
}

// NewTariffsHandler constructs a TariffsHandler.
func NewTariffsHandler(engine *monitor.Engine) *TariffsHandler {
	return &TariffsHandler{engine: engine}
}

// ServeHTTP handles GET and PUT /api/v1/tariffs.
func (h *TariffsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.engine == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.engine.Snapshot().Tariffs)
	case http.MethodPut:
		var tariffs load.TariffTable
		if err := json.NewDecoder(r.Body).Decode(&tariffs); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.engine.UpdateTariffRates(tariffs); err != nil {
			writeControlError(w, err)
			return
		}
		writeJSON(w, h.engine.Snapshot().Tariffs)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ControlHandler drives the engine state machine.
type ControlHandler struct {
	engine *monitor.Engine
}

// NewControlHandler constructs a ControlHandler.
func NewControlHandler(engine *monitor.Engine) *ControlHandler {
	return &ControlHandler{engine: engine}
}

type controlRequest struct {
	Action string `json:"action"`
}

type controlResponse struct {
	Running       bool `json:"running"`
	ShutdownCount int  `json:"shutdown_count,omitempty"`
}

// ServeHTTP handles POST /api/v1/control with actions start, stop, clear
// and emergency_shutdown.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.engine == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	resp := controlResponse{}
	switch req.Action {
	case "start":
		h.engine.Start()
	case "stop":
		if err := h.engine.Stop(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case "clear":
		h.engine.ClearData()
	case "emergency_shutdown":
		resp.ShutdownCount = h.engine.EmergencyShutdown()
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	resp.Running = h.engine.Running()
	writeJSON(w, resp)
}

// ExportHandler renders the history buffer as CSV, XLSX or PDF, selected by
// the request path extension.
type ExportHandler struct {
	engine   *monitor.Engine
	interval time.Duration
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(engine *monitor.Engine, interval time.Duration) *ExportHandler {
	if interval <= 0 {
		interval = monitor.DefaultInterval
	}
	return &ExportHandler{engine: engine, interval: interval}
}

// ServeHTTP handles GET /api/v1/exports/history.{csv,xlsx,pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.engine == nil {
		http.Error(w, "engine not ready", http.StatusServiceUnavailable)
		return
	}
	format := strings.TrimPrefix(path.Ext(r.URL.Path), ".")
	export := h.buildExport()

	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "csv":
		data, err = datalog.BuildHistoryCSV(export)
		contentType = "text/csv"
	case "xlsx":
		data, err = datalog.BuildHistoryXLSX(export)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = datalog.BuildSummaryPDF(export)
		contentType = "application/pdf"
	default:
		http.Error(w, "unknown export format", http.StatusBadRequest)
		return
	}
	if err != nil {
		metrics.IncExport(format, "error")
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	metrics.IncExport(format, "success")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="history.`+format+`"`)
	_, _ = w.Write(data)
}

func (h *ExportHandler) buildExport() datalog.HistoryExport {
	voltage, current, power, energy := h.engine.History().Snapshot()
	snap := h.engine.Snapshot()
	now := time.Now().UTC()
	return datalog.HistoryExport{
		Voltage:       voltage,
		Current:       current,
		Power:         power,
		Energy:        energy,
		Interval:      h.interval,
		GeneratedAt:   now,
		CumulativeKWh: snap.CumulativeKWh,
		Cost:          accounting.Cost(snap.CumulativeKWh, now.Hour(), snap.Tariffs),
		BudgetKWh:     snap.Thresholds.EnergyBudgetKWh,
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitor.ErrUnknownLoad):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, load.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
