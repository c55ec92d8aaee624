package profile

import (
	"testing"

	"github.com/dshills/synthcheck/internal/schema"
)

func TestLoad_AllBuiltins(t *testing.T) {
	for _, name := range Names() {
		p, err := Load(name)
		if err != nil {
			t.Errorf("Load(%q) error: %v", name, err)
			continue
		}
		if p.Name != name {
			t.Errorf("Load(%q).Name = %q, want %q", name, p.Name, name)
		}
		if p.Description == "" {
			t.Errorf("Load(%q).Description is empty", name)
		}
	}
}

func TestNames(t *testing.T) {
	want := []string{"fft", "fft-strict", "generic"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("nonexistent")
	if err == nil {
		t.Fatal("Load(\"nonexistent\") expected error, got nil")
	}
}

func TestLoad_Generic(t *testing.T) {
	p, err := Load("generic")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Modules) != 0 || len(p.Expectations) != 0 {
		t.Errorf("generic profile = %+v, want empty catalog and expectations", p)
	}
}

func TestLoad_FFTCatalog(t *testing.T) {
	p, err := Load("fft")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"fft_engine", "fft_control", "rescale_unit", "scale_factor_tracker", "twiddle_rom", "memory_interface"}
	if len(p.Modules) != len(want) {
		t.Fatalf("fft modules = %d, want %d", len(p.Modules), len(want))
	}
	for i, name := range want {
		if p.Modules[i].Name != name {
			t.Errorf("Modules[%d] = %q, want %q", i, p.Modules[i].Name, name)
		}
		if p.Modules[i].Display == "" || p.Modules[i].Components == "" {
			t.Errorf("Modules[%d] missing display text", i)
		}
	}
	m, ok := p.Lookup("twiddle_rom")
	if !ok || m.Display != "Twiddle ROM" {
		t.Errorf("Lookup(twiddle_rom) = %+v, %v", m, ok)
	}
	if _, ok := p.Lookup("nope"); ok {
		t.Error("Lookup(nope) should miss")
	}
}

func TestLoad_FFTExpectations(t *testing.T) {
	p, err := Load("fft")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		scope     string
		threshold int
		dir       schema.Direction
	}{
		{"memory_interface", 1000, schema.DirectionBelow},
		{"twiddle_rom", 2000, schema.DirectionAbove},
		{schema.ScopeTotal, 15000, schema.DirectionBelow},
	}
	if len(p.Expectations) != len(cases) {
		t.Fatalf("expectations = %d, want %d", len(p.Expectations), len(cases))
	}
	for i, c := range cases {
		e := p.Expectations[i]
		if e.Scope != c.scope || e.Threshold != c.threshold || e.Direction != c.dir || e.Metric != schema.MetricCells {
			t.Errorf("Expectations[%d] = %+v, want %s cells %s %d", i, e, c.scope, c.dir, c.threshold)
		}
		if e.OnMiss != schema.StatusWarn {
			t.Errorf("Expectations[%d].OnMiss = %q, want WARN", i, e.OnMiss)
		}
	}
}

func TestLoad_StrictWarnings(t *testing.T) {
	cases := []struct {
		name   string
		strict bool
	}{
		{"generic", false},
		{"fft", false},
		{"fft-strict", true},
	}
	for _, c := range cases {
		p, err := Load(c.name)
		if err != nil {
			t.Fatalf("Load(%q) error: %v", c.name, err)
		}
		if p.StrictWarnings != c.strict {
			t.Errorf("Load(%q).StrictWarnings = %v, want %v", c.name, p.StrictWarnings, c.strict)
		}
	}
}

func TestLoad_ReturnsCopy(t *testing.T) {
	p, _ := Load("fft")
	p.Modules[0].Name = "mutated"
	p.Expectations[0].Threshold = 1
	q, _ := Load("fft")
	if q.Modules[0].Name != "fft_engine" || q.Expectations[0].Threshold != 1000 {
		t.Error("Load must return an independent copy")
	}
}
