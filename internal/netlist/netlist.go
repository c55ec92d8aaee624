// Package netlist scans structural netlist text for primitive gate markers
// and hierarchical module instantiations.
//
// The scan is a textual heuristic, not a parse of the hardware-description
// grammar. It can over-count (declarations that look like instantiations)
// and under-count (instantiations whose type, name and opening parenthesis
// are split across lines). Callers that need an exact answer should supply
// a different Scanner.
package netlist

import (
	"errors"
	"io/fs"
	"regexp"
	"strings"

	"github.com/dshills/synthcheck/internal/extract"
	"github.com/dshills/synthcheck/internal/schema"
)

// Result is what a Scanner extracts from one netlist text.
type Result struct {
	Gates   schema.CellBreakdown
	Modules schema.ModuleInstanceTable
}

// Scanner extracts gate counts and module instances from netlist text.
// Implementations must be total: malformed input yields a possibly empty
// Result, never a panic.
type Scanner interface {
	Scan(text string) Result
}

// HeuristicScanner counts every textual occurrence of each gate marker and
// every "<type> <name> (" shape whose type is not excluded.
type HeuristicScanner struct{}

var (
	markerPatterns = compileMarkerPatterns()
	instancePat    = regexp.MustCompile(`(\w+)\s+(\w+)\s*\(`)
	excluded       = buildExclusions()
)

func compileMarkerPatterns() map[schema.GateType]*regexp.Regexp {
	out := make(map[schema.GateType]*regexp.Regexp, len(schema.AllGateTypes))
	for _, g := range schema.AllGateTypes {
		out[g] = regexp.MustCompile(`\\?` + regexp.QuoteMeta(g.Marker()) + `\s`)
	}
	return out
}

// buildExclusions returns the reserved words plus every marker in both its
// full form and the bare _TAG_ form \w+ extracts from an escaped marker.
func buildExclusions() map[string]bool {
	ex := map[string]bool{
		"module": true,
		"input":  true,
		"output": true,
		"wire":   true,
	}
	for _, g := range schema.AllGateTypes {
		m := g.Marker()
		ex[m] = true
		ex[strings.TrimPrefix(m, "$")] = true
	}
	return ex
}

// Excluded reports whether name is a reserved word or primitive marker and
// therefore never counted as a module type.
func Excluded(name string) bool {
	return excluded[name] || strings.HasPrefix(name, "$") || strings.HasPrefix(name, `\$`)
}

// Scan implements Scanner.
func (HeuristicScanner) Scan(text string) Result {
	gates := make(schema.CellBreakdown)
	for _, g := range schema.AllGateTypes {
		if n := len(markerPatterns[g].FindAllStringIndex(text, -1)); n > 0 {
			gates[g] = n
		}
	}

	modules := make(schema.ModuleInstanceTable)
	for _, loc := range instancePat.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		// \w+ stops at '$', so an escaped internal cell such as \$_DFF_P_
		// surfaces as _DFF_P_ with the '$' just before it.
		if loc[2] > 0 && text[loc[2]-1] == '$' {
			continue
		}
		if Excluded(name) {
			continue
		}
		modules[name]++
	}
	return Result{Gates: gates, Modules: modules}
}

// ScanText runs s over text and tags the result with file.
func ScanText(s Scanner, file, text string) schema.NetlistScan {
	r := s.Scan(text)
	return schema.NetlistScan{
		File:                file,
		Present:             true,
		Gates:               r.Gates,
		Modules:             r.Modules,
		TotalPrimitiveGates: r.Gates.Total(),
	}
}

// ScanFile reads the netlist at path and scans it with s. A path that does
// not exist yields a scan with Present == false and a nil error.
func ScanFile(s Scanner, path string) (schema.NetlistScan, error) {
	text, err := extract.ReadArtifact(path)
	if errors.Is(err, fs.ErrNotExist) {
		return schema.NetlistScan{File: path}, nil
	}
	if err != nil {
		return schema.NetlistScan{File: path}, err
	}
	return ScanText(s, path, text), nil
}
