package config

import (
	"os"
	"path/filepath"
	"testing"

	"loadwatch/internal/load"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.Thresholds != load.DefaultThresholds() {
		t.Fatalf("expected default thresholds, got %+v", cfg.Thresholds)
	}
	if len(cfg.LoadProfiles) != len(load.DefaultProfiles()) {
		t.Fatalf("expected default profiles, got %d", len(cfg.LoadProfiles))
	}
}

func TestLoadMalformedFileReturnsDefaultsWithError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if cfg.Thresholds != load.DefaultThresholds() {
		t.Fatalf("expected defaults on parse failure, got %+v", cfg.Thresholds)
	}
}

func TestSaveLoadRoundTripJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	want := Default()
	want.Thresholds.VoltageHigh = 260
	want.Thresholds.EnergyBudgetKWh = 2000
	want.TariffRates.PeakRate = 9.5
	want.LoadProfiles[1].Active = true
	want.LoggingOn = false
	want.VoiceAlertsOn = true

	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Thresholds != want.Thresholds {
		t.Fatalf("thresholds round trip: got %+v want %+v", got.Thresholds, want.Thresholds)
	}
	if got.TariffRates != want.TariffRates {
		t.Fatalf("tariffs round trip: got %+v want %+v", got.TariffRates, want.TariffRates)
	}
	if !got.LoadProfiles[1].Active {
		t.Fatal("profile change lost in round trip")
	}
	if got.LoggingOn || !got.VoiceAlertsOn {
		t.Fatalf("flags lost in round trip: %+v", got)
	}
}

func TestSaveLoadRoundTripYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := Default()
	want.Thresholds.CurrentHigh = 300

	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Thresholds != want.Thresholds {
		t.Fatalf("yaml thresholds round trip: got %+v want %+v", got.Thresholds, want.Thresholds)
	}
}

func TestLoadClampsOutOfRangeThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"thresholds":{"voltage_threshold":9999,"voltage_low":200,"current_threshold":1,"power_threshold":5,"energy_budget":1,"alert_cooldown":999}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	th := cfg.Thresholds
	if th.VoltageHigh != load.MaxVoltageThreshold {
		t.Fatalf("voltage not clamped: %v", th.VoltageHigh)
	}
	if th.CurrentHigh != load.MinCurrentThreshold {
		t.Fatalf("current not clamped: %v", th.CurrentHigh)
	}
	if th.AlertCooldownSeconds != load.MaxAlertCooldown {
		t.Fatalf("cooldown not clamped: %v", th.AlertCooldownSeconds)
	}
	if err := th.Validate(); err != nil {
		t.Fatalf("clamped thresholds should validate: %v", err)
	}
}

func TestLoadDropsInvalidProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"load_profiles":[
		{"name":"Good","active":true,"current":40,"power_factor":0.9},
		{"name":"","active":true,"current":40,"power_factor":0.9},
		{"name":"BadPF","active":true,"current":40,"power_factor":2}
	]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.LoadProfiles) != 1 || cfg.LoadProfiles[0].Name != "Good" {
		t.Fatalf("expected only the valid profile, got %+v", cfg.LoadProfiles)
	}
}
