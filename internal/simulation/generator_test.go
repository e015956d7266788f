package simulation

import (
	"math/rand"
	"testing"

	"loadwatch/internal/load"
)

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	profiles := load.DefaultProfiles()
	a := NewGenerator(rand.New(rand.NewSource(42)))
	b := NewGenerator(rand.New(rand.NewSource(42)))
	for i := 0; i < 100; i++ {
		ra := a.Generate(profiles)
		rb := b.Generate(profiles)
		if ra != rb {
			t.Fatalf("same seed diverged at sample %d: %+v vs %+v", i, ra, rb)
		}
	}
}

func TestGenerateStaysWithinPhysicalBounds(t *testing.T) {
	g := NewGenerator(rand.New(rand.NewSource(7)))
	profiles := []load.Profile{
		{Name: "Industrial", Active: true, RatedCurrentAmps: 400, PowerFactor: 0.8},
		{Name: "HVAC", Active: true, RatedCurrentAmps: 200, PowerFactor: 0.85},
	}
	for i := 0; i < 5000; i++ {
		r := g.Generate(profiles)
		if r.VoltageVolts < load.MinVoltage || r.VoltageVolts > load.MaxVoltage {
			t.Fatalf("voltage %v out of bounds at sample %d", r.VoltageVolts, i)
		}
		if r.CurrentAmps < 0 || r.CurrentAmps > load.MaxCurrent {
			t.Fatalf("current %v out of bounds at sample %d", r.CurrentAmps, i)
		}
		if r.PowerWatts < 0 || r.PowerWatts > load.MaxPower {
			t.Fatalf("power %v out of bounds at sample %d", r.PowerWatts, i)
		}
	}
}

func TestGenerateZeroLoadsKeepsBackgroundDraw(t *testing.T) {
	params := Params{}.withDefaults()
	g := NewGenerator(rand.New(rand.NewSource(3)))
	for i := 0; i < 1000; i++ {
		r := g.Generate(nil)
		if r.CurrentAmps <= 0 {
			t.Fatalf("background draw must keep current above zero, got %v", r.CurrentAmps)
		}
		if r.CurrentAmps > params.BackgroundMaxAmps+0.1 {
			t.Fatalf("zero-load current %v exceeds background ceiling", r.CurrentAmps)
		}
		if r.PowerWatts <= 0 {
			t.Fatalf("background draw must keep power above zero, got %v", r.PowerWatts)
		}
	}
}

func TestGenerateTracksActiveLoadScenario(t *testing.T) {
	// Lighting 50A at pf 0.9 plus Computers 80A at pf 0.95; quiet params so
	// a sample stays near the analytic expectation.
	params := Params{
		BaseVoltage:       230,
		JitterVolts:       0.001,
		ExcursionProb:     -1,
		SpikeProb:         -1,
		LoadVariation:     0.001,
		BackgroundMinAmps: 3,
		BackgroundMaxAmps: 8,
		BackgroundPF:      0.92,
	}
	g := NewGenerator(rand.New(rand.NewSource(11)), WithParams(params))
	profiles := []load.Profile{
		{Name: "Lighting", Active: true, RatedCurrentAmps: 50, PowerFactor: 0.9},
		{Name: "HVAC", Active: false, RatedCurrentAmps: 200, PowerFactor: 0.85},
		{Name: "Computers", Active: true, RatedCurrentAmps: 80, PowerFactor: 0.95},
	}
	for i := 0; i < 200; i++ {
		r := g.Generate(profiles)
		// 130A rated plus 3-8A background.
		if r.CurrentAmps < 132 || r.CurrentAmps > 139 {
			t.Fatalf("current %v outside expected 133-138A envelope", r.CurrentAmps)
		}
		// 230*(50*0.9+80*0.95) = 27830W plus background 635-1693W.
		if r.PowerWatts < 28000 || r.PowerWatts > 29700 {
			t.Fatalf("power %v outside expected envelope", r.PowerWatts)
		}
	}
}

func TestGenerateEmitsSpikeDiagnostics(t *testing.T) {
	var diags []Diagnostic
	params := Params{SpikeProb: 1.1} // fire on every active load
	g := NewGenerator(rand.New(rand.NewSource(5)),
		WithParams(params),
		WithDiagnosticFunc(func(d Diagnostic) { diags = append(diags, d) }),
	)
	profiles := []load.Profile{{Name: "Lighting", Active: true, RatedCurrentAmps: 50, PowerFactor: 0.9}}
	g.Generate(profiles)
	found := false
	for _, d := range diags {
		if d.Kind == DiagCurrentSpike {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a current spike diagnostic, got %v", diags)
	}
}

func TestGenerateEmitsExcursionDiagnostics(t *testing.T) {
	var diags []Diagnostic
	params := Params{ExcursionProb: 1.1}
	g := NewGenerator(rand.New(rand.NewSource(9)),
		WithParams(params),
		WithDiagnosticFunc(func(d Diagnostic) { diags = append(diags, d) }),
	)
	g.Generate(nil)
	if len(diags) == 0 || diags[0].Kind != DiagVoltageFluctuation {
		t.Fatalf("expected a voltage fluctuation diagnostic, got %v", diags)
	}
}
