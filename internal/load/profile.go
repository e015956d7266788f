package load

import "errors"

// Profile is a named consumer of current with an active flag.
type Profile struct {
	Name             string  `json:"name" yaml:"name"`
	Active           bool    `json:"active" yaml:"active"`
	RatedCurrentAmps float64 `json:"current" yaml:"current"`
	PowerFactor      float64 `json:"power_factor" yaml:"power_factor"`
}

// Validate checks profile invariants.
func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.New("load profile: empty name")
	}
	if p.RatedCurrentAmps < 0 {
		return errors.New("load profile: negative rated current")
	}
	if p.PowerFactor <= 0 || p.PowerFactor > 1 {
		return errors.New("load profile: power factor out of (0,1]")
	}
	return nil
}

// DefaultProfiles returns the stock load set for a fresh installation.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "Lighting", Active: true, RatedCurrentAmps: 50, PowerFactor: 0.9},
		{Name: "HVAC", Active: false, RatedCurrentAmps: 200, PowerFactor: 0.85},
		{Name: "Computers", Active: true, RatedCurrentAmps: 80, PowerFactor: 0.95},
		{Name: "Industrial", Active: false, RatedCurrentAmps: 400, PowerFactor: 0.8},
	}
}
