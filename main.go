package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loadwatch/internal/alerting"
	"loadwatch/internal/alerting/notify"
	apihttp "loadwatch/internal/api/http"
	"loadwatch/internal/config"
	"loadwatch/internal/datalog"
	"loadwatch/internal/monitor"
	"loadwatch/internal/observability/metrics"
)

func main() {
	cfg := loadEnv()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	fileCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		logger.Printf("config load: %v (using defaults)", err)
	}

	metrics.Init()

	broker := apihttp.NewSSEBroker()
	delivery := notify.Fanout{broker}
	if cfg.AlertWebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		delivery = append(delivery, notify.NewAsync(webhook))
	}
	if fileCfg.AlertSoundsOn && cfg.AlertSoundCommand != "" {
		delivery = append(delivery, notify.NewAsync(notify.NewCommandNotifier(cfg.AlertSoundCommand)))
	}
	if fileCfg.VoiceAlertsOn && cfg.VoiceAlertCommand != "" {
		delivery = append(delivery, notify.NewAsync(notify.NewCommandNotifier(cfg.VoiceAlertCommand)))
	}

	sampleLog := datalog.NewCSVLogger(cfg.DataLogPath)
	alertLog := datalog.NewAlertLogger(cfg.AlertLogPath)

	engine, err := monitor.NewEngine(
		monitor.Config{
			Profiles:   fileCfg.LoadProfiles,
			Thresholds: fileCfg.Thresholds,
			Tariffs:    fileCfg.TariffRates,
			LoggingOn:  fileCfg.LoggingOn,
		},
		logger,
		monitor.WithInterval(cfg.TickInterval),
		monitor.WithCallbacks(monitor.Callbacks{
			OnSample: sampleLog.Append,
			OnAlert: func(event alerting.Event) {
				if err := alertLog.Append(event); err != nil {
					logger.Printf("alert log write failed: %v", err)
				}
				delivery.Notify(context.Background(), event)
			},
		}),
	)
	if err != nil {
		logger.Fatalf("engine error: %v", err)
	}

	if cfg.AutoStart {
		engine.Start()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/status", apihttp.NewStatusHandler(engine))
	mux.Handle("/api/v1/alerts", apihttp.NewAlertsHandler(engine))
	mux.Handle("/api/v1/alerts/stream", apihttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/loads", apihttp.NewLoadsHandler(engine))
	mux.Handle("/api/v1/thresholds", apihttp.NewThresholdsHandler(engine))
	mux.Handle("/api/v1/tariffs", apihttp.NewTariffsHandler(engine))
	mux.Handle("/api/v1/control", apihttp.NewControlHandler(engine))
	exportHandler := apihttp.NewExportHandler(engine, cfg.TickInterval)
	mux.Handle("/api/v1/exports/history.csv", exportHandler)
	mux.Handle("/api/v1/exports/history.xlsx", exportHandler)
	mux.Handle("/api/v1/exports/history.pdf", exportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}

	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Printf("shutting down")
	if err := engine.Stop(); err != nil {
		logger.Printf("engine stop: %v", err)
	}
	saveConfig(cfg.ConfigPath, engine, fileCfg, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// saveConfig persists the current engine configuration. Best-effort: a
// failure is logged, never fatal.
func saveConfig(path string, engine *monitor.Engine, fileCfg config.Config, logger *log.Logger) {
	snap := engine.Snapshot()
	out := config.Config{
		Thresholds:    snap.Thresholds,
		TariffRates:   snap.Tariffs,
		LoadProfiles:  snap.Profiles,
		LoggingOn:     fileCfg.LoggingOn,
		AlertSoundsOn: fileCfg.AlertSoundsOn,
		VoiceAlertsOn: fileCfg.VoiceAlertsOn,
	}
	if err := config.Save(path, out); err != nil {
		logger.Printf("config save: %v", err)
	}
}

type envConfig struct {
	HTTPAddr          string
	ConfigPath        string
	DataLogPath       string
	AlertLogPath      string
	TickInterval      time.Duration
	AlertWebhookURL   string
	AlertSoundCommand string
	VoiceAlertCommand string
	AutoStart         bool
}

func loadEnv() envConfig {
	return envConfig{
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		ConfigPath:        getenvDefault("CONFIG_PATH", config.DefaultPath),
		DataLogPath:       getenvDefault("DATA_LOG_FILE", "load_data_log.csv"),
		AlertLogPath:      getenvDefault("ALERT_LOG_FILE", "load_alert_log.csv"),
		TickInterval:      getenvDuration("TICK_INTERVAL", monitor.DefaultInterval),
		AlertWebhookURL:   getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertSoundCommand: getenvDefault("ALERT_SOUND_COMMAND", ""),
		VoiceAlertCommand: getenvDefault("VOICE_ALERT_COMMAND", ""),
		AutoStart:         getenvBoolDefault("AUTO_START", true),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
