// Package profile defines design profiles: the catalog of synthesized
// modules to look for and the regression expectations to judge them by.
package profile

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dshills/synthcheck/internal/schema"
)

// Module is one catalog entry: a synthesized module and how to present it.
type Module struct {
	Name       string `yaml:"name" json:"name" validate:"required"`
	Display    string `yaml:"display" json:"display"`
	Components string `yaml:"components" json:"components"`
}

// Profile describes a design under test.
type Profile struct {
	Name         string
	Description  string
	Modules      []Module
	Expectations []schema.Expectation
	// StrictWarnings, when true, escalates every WARN verdict to FAIL before
	// the overall status is computed.
	StrictWarnings bool
}

var fftModules = []Module{
	{Name: "fft_engine", Display: "FFT Engine", Components: "Butterfly operations, pipeline"},
	{Name: "fft_control", Display: "FFT Control", Components: "FSM, control logic"},
	{Name: "rescale_unit", Display: "Rescale Unit", Components: "Overflow detection, scaling logic"},
	{Name: "scale_factor_tracker", Display: "Scale Factor Tracker", Components: "Scale factor tracking logic"},
	{Name: "twiddle_rom", Display: "Twiddle ROM", Components: "2048-entry ROM, address logic"},
	{Name: "memory_interface", Display: "Memory Interface", Components: "APB interface (reduced memory)"},
}

var fftExpectations = []schema.Expectation{
	{Scope: "memory_interface", Metric: schema.MetricCells, Threshold: 1000, Direction: schema.DirectionBelow, OnMiss: schema.StatusWarn},
	{Scope: "twiddle_rom", Metric: schema.MetricCells, Threshold: 2000, Direction: schema.DirectionAbove, OnMiss: schema.StatusWarn},
	{Scope: schema.ScopeTotal, Metric: schema.MetricCells, Threshold: 15000, Direction: schema.DirectionBelow, OnMiss: schema.StatusWarn},
}

// builtins is the registry of built-in profiles keyed by name.
var builtins = map[string]Profile{
	"generic": {
		Name: "generic",
		Description: "No module catalog and no expectations; every summary found " +
			"under the reports directory is analyzed.",
	},
	"fft": {
		Name:         "fft",
		Description:  "Pipelined FFT IP: six-module catalog with memory and size thresholds.",
		Modules:      fftModules,
		Expectations: fftExpectations,
	},
	"fft-strict": {
		Name:           "fft-strict",
		Description:    "FFT profile where any missed threshold fails the run.",
		Modules:        fftModules,
		Expectations:   fftExpectations,
		StrictWarnings: true,
	},
}

// Load returns a copy of the named built-in profile or an error if the name
// is unknown.
func Load(name string) (Profile, error) {
	p, ok := builtins[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile: unknown profile %q (available: %s)",
			name, strings.Join(Names(), ", "))
	}
	p.Modules = slices.Clone(p.Modules)
	p.Expectations = slices.Clone(p.Expectations)
	return p, nil
}

// Names lists the built-in profile names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(builtins))
}

// Lookup returns the catalog entry for module name.
func (p Profile) Lookup(name string) (Module, bool) {
	for _, m := range p.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}
