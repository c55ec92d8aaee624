// Package schema defines all canonical data types for the synthcheck output format.
package schema

import "time"

// Metric names a numeric field of a synthesis summary.
type Metric string

const (
	MetricCells          Metric = "cells"
	MetricWires          Metric = "wires"
	MetricWireBits       Metric = "wire_bits"
	MetricPublicWires    Metric = "public_wires"
	MetricPublicWireBits Metric = "public_wire_bits"
	MetricPorts          Metric = "ports"
	MetricPortBits       Metric = "port_bits"
	MetricMemories       Metric = "memories"
	MetricMemoryBits     Metric = "memory_bits"
	MetricProcesses      Metric = "processes"
)

// AllMetrics lists the known metric vocabulary in report order.
var AllMetrics = []Metric{
	MetricCells,
	MetricWires,
	MetricWireBits,
	MetricPublicWires,
	MetricPublicWireBits,
	MetricPorts,
	MetricPortBits,
	MetricMemories,
	MetricMemoryBits,
	MetricProcesses,
}

// IsKnown reports whether m belongs to the metric vocabulary.
func (m Metric) IsKnown() bool {
	for _, k := range AllMetrics {
		if k == m {
			return true
		}
	}
	return false
}

// GateType tags a primitive cell type.
type GateType string

const (
	GateAND    GateType = "AND"
	GateOR     GateType = "OR"
	GateXOR    GateType = "XOR"
	GateXNOR   GateType = "XNOR"
	GateANDNOT GateType = "ANDNOT"
	GateNAND   GateType = "NAND"
	GateNOR    GateType = "NOR"
	GateNOT    GateType = "NOT"
	GateMUX    GateType = "MUX"
	GateDFF    GateType = "DFF"
	GateDFFE   GateType = "DFFE"
	GateLATCH  GateType = "LATCH"
	GateALDFFE GateType = "ALDFFE"
	GateMUL    GateType = "MUL"
	GateADD    GateType = "ADD"
	GateSUB    GateType = "SUB"
	GateROM    GateType = "ROM"
	GateRAM    GateType = "RAM"
)

// AllGateTypes lists the primitive gate vocabulary in report order.
var AllGateTypes = []GateType{
	GateAND, GateOR, GateXOR, GateXNOR, GateANDNOT, GateNAND, GateNOR, GateNOT,
	GateMUX, GateDFF, GateDFFE, GateLATCH, GateALDFFE,
	GateMUL, GateADD, GateSUB, GateROM, GateRAM,
}

// Marker returns the netlist token for g, without the escaping backslash.
// LATCH is emitted by the synthesizer as $_DLATCH_.
func (g GateType) Marker() string {
	if g == GateLATCH {
		return "$_DLATCH_"
	}
	return "$_" + string(g) + "_"
}

// MetricRecord maps a metric to its parsed value. A metric that was not found
// is absent; it is never stored as zero.
type MetricRecord map[Metric]int

// Get returns the value of m and whether it was present.
func (r MetricRecord) Get(m Metric) (int, bool) {
	v, ok := r[m]
	return v, ok
}

// CellBreakdown maps a gate type to its instance count. Every present key has
// a count of at least 1.
type CellBreakdown map[GateType]int

// Total sums the counts of all gate types.
func (b CellBreakdown) Total() int {
	total := 0
	for _, n := range b {
		total += n
	}
	return total
}

// Add returns a new breakdown holding the sum of b and other.
func (b CellBreakdown) Add(other CellBreakdown) CellBreakdown {
	out := make(CellBreakdown, len(b)+len(other))
	for g, n := range b {
		out[g] += n
	}
	for g, n := range other {
		out[g] += n
	}
	for g, n := range out {
		if n <= 0 {
			delete(out, g)
		}
	}
	return out
}

// ModuleInstanceTable maps a hierarchical module name to how many times it
// is instantiated.
type ModuleInstanceTable map[string]int

// StatsArtifact is the parsed form of one synthesis-summary file.
type StatsArtifact struct {
	Path    string        `json:"path"`
	Present bool          `json:"present"`
	Metrics MetricRecord  `json:"metrics,omitempty"`
	Cells   CellBreakdown `json:"cell_breakdown,omitempty"`
}

// NetlistScan is the result of scanning one structural netlist.
type NetlistScan struct {
	File                string              `json:"file"`
	Present             bool                `json:"present"`
	Gates               CellBreakdown       `json:"gate_counts,omitempty"`
	Modules             ModuleInstanceTable `json:"module_instances,omitempty"`
	TotalPrimitiveGates int                 `json:"total_primitive_gates"`
	// Transistors is the estimated transistor count of this netlist alone.
	Transistors int `json:"transistors,omitempty"`
}

// DesignStyle is Hierarchical when the netlist instantiates sub-modules.
func (s NetlistScan) DesignStyle() string {
	if len(s.Modules) > 0 {
		return "Hierarchical"
	}
	return "Flat"
}

// ASICEstimate is the die-area estimate for one process node.
type ASICEstimate struct {
	Node        string  `json:"node"`
	GateDensity float64 `json:"gate_density"`
	LogicArea   float64 `json:"logic_area"`
	MemoryArea  float64 `json:"memory_area"`
	TotalArea   float64 `json:"total_area"`
}

// FPGAEstimate is the rough FPGA resource estimate.
type FPGAEstimate struct {
	LUTs       float64 `json:"lut_usage"`
	FlipFlops  float64 `json:"ff_usage"`
	BRAMBlocks int     `json:"bram_blocks"`
	DSPBlocks  int     `json:"dsp_blocks"`
}

// Complexity summarizes the logic mix of a breakdown.
type Complexity struct {
	Sequential    int     `json:"sequential"`
	Combinational int     `json:"combinational"`
	Arithmetic    int     `json:"arithmetic"`
	Memory        int     `json:"memory"`
	SeqCombRatio  float64 `json:"seq_comb_ratio"`
}

// DerivedEstimate holds physical-design numbers computed from a breakdown
// and a cell total.
type DerivedEstimate struct {
	TotalCells  int          `json:"total_cells"`
	Transistors int          `json:"transistors"`
	ASIC        ASICEstimate `json:"asic"`
	FPGA        FPGAEstimate `json:"fpga"`
	Complexity  Complexity   `json:"complexity"`
}

// Status is the outcome of judging one metric.
type Status string

const (
	StatusPass   Status = "PASS"
	StatusNoData Status = "NO_DATA"
	StatusWarn   Status = "WARN"
	StatusFail   Status = "FAIL"
)

// Direction is the comparison policy of an expectation.
type Direction string

const (
	// DirectionBelow succeeds when measured < expected.
	DirectionBelow Direction = "lt"
	// DirectionAbove succeeds when measured > expected.
	DirectionAbove Direction = "gt"
)

// Symbol returns the comparison operator for d.
func (d Direction) Symbol() string {
	switch d {
	case DirectionBelow:
		return "<"
	case DirectionAbove:
		return ">"
	default:
		return "?"
	}
}

// ScopeTotal names the whole-design scope of an expectation.
const ScopeTotal = "total"

// Expectation is an expected threshold with its comparison policy.
type Expectation struct {
	Scope     string    `json:"scope" yaml:"scope" validate:"required"`
	Metric    Metric    `json:"metric" yaml:"metric" validate:"required,knownmetric"`
	Threshold int       `json:"threshold" yaml:"threshold" validate:"gte=0"`
	Direction Direction `json:"direction" yaml:"direction" validate:"oneof=lt gt"`
	OnMiss    Status    `json:"on_miss,omitempty" yaml:"on_miss,omitempty" validate:"omitempty,oneof=WARN FAIL"`
}

// Result is the verdict for one evaluated expectation.
type Result struct {
	Scope     string    `json:"scope"`
	Metric    Metric    `json:"metric"`
	Measured  *int      `json:"measured"`
	Expected  int       `json:"expected"`
	Direction Direction `json:"direction"`
	Status    Status    `json:"status"`
}

// Summary holds the overall verdict and status counts.
type Summary struct {
	Overall     Status `json:"overall"`
	PassCount   int    `json:"pass_count"`
	WarnCount   int    `json:"warn_count"`
	FailCount   int    `json:"fail_count"`
	NoDataCount int    `json:"no_data_count"`
}

// Input records the parameters used for this run.
type Input struct {
	SynthesisDir string   `json:"synthesis_dir,omitempty"`
	Netlists     []string `json:"netlists,omitempty"`
	Profile      string   `json:"profile"`
	ConfigFile   string   `json:"config_file,omitempty"`
}

// ModuleEntry is one catalog module and its parsed summary.
type ModuleEntry struct {
	Name       string        `json:"name"`
	Display    string        `json:"display"`
	Components string        `json:"components,omitempty"`
	Stats      StatsArtifact `json:"stats"`
}

// Delta compares one metric against the previous recorded run.
type Delta struct {
	Scope    string `json:"scope"`
	Metric   Metric `json:"metric"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
}

// Change returns Current - Previous.
func (d Delta) Change() int { return d.Current - d.Previous }

// Baseline describes the comparison against a previously recorded run.
type Baseline struct {
	RunID      string    `json:"run_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Deltas     []Delta   `json:"deltas"`
}

// MemoryAnalysis is the input of the memory usage report: the memory
// interface and twiddle ROM summaries plus the overall gate count taken from
// an earlier gate report.
type MemoryAnalysis struct {
	Project     string        `json:"project"`
	GeneratedAt time.Time     `json:"generated_at"`
	Interface   StatsArtifact `json:"memory_interface"`
	ROM         StatsArtifact `json:"twiddle_rom"`
	TotalGates  *int          `json:"total_gates,omitempty"`
}

// Report is the top-level output document.
type Report struct {
	Tool        string        `json:"tool"`
	Version     string        `json:"version"`
	Title       string        `json:"title"`
	GeneratedAt time.Time     `json:"generated_at"`
	Input       Input         `json:"input"`
	Modules     []ModuleEntry `json:"modules"`
	Netlists    []NetlistScan `json:"netlists"`
	Totals      MetricRecord  `json:"totals"`

	Estimate DerivedEstimate `json:"estimate"`
	// GateCosts is the per-instance transistor cost of each gate type that
	// appears in Modules or Netlists.
	GateCosts map[GateType]int `json:"gate_costs,omitempty"`

	Results         []Result  `json:"results"`
	Summary         Summary   `json:"summary"`
	Baseline        *Baseline `json:"baseline,omitempty"`
	Recommendations []string  `json:"recommendations"`
}
