// Package estimate derives transistor, die-area and FPGA resource estimates
// from gate counts. All results are approximations computed from fixed
// coefficient tables; nothing is cached between calls.
package estimate

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/dshills/synthcheck/internal/logging"
	"github.com/dshills/synthcheck/internal/schema"
)

// Tables holds the coefficient tables used by a Calculator.
type Tables struct {
	TransistorCost map[schema.GateType]int `yaml:"transistor_cost" validate:"dive,gte=0"`
	DefaultCost    int                     `yaml:"default_cost" validate:"gte=0"`
	Node           string                  `yaml:"node" validate:"required"`
	GateDensity    float64                 `yaml:"gate_density" validate:"gt=0"`
	MemoryArea     float64                 `yaml:"memory_area" validate:"gte=0"`
	LUTRatio       float64                 `yaml:"lut_ratio" validate:"gte=0"`
	FFRatio        float64                 `yaml:"ff_ratio" validate:"gte=0"`
	BRAMBlocks     int                     `yaml:"bram_blocks" validate:"gte=0"`
	DSPBlocks      int                     `yaml:"dsp_blocks" validate:"gte=0"`
}

// DefaultTables returns a fresh copy of the built-in 45nm tables.
func DefaultTables() Tables {
	return Tables{
		TransistorCost: map[schema.GateType]int{
			schema.GateAND:    6,
			schema.GateOR:     6,
			schema.GateXOR:    8,
			schema.GateXNOR:   8,
			schema.GateANDNOT: 4,
			schema.GateNAND:   4,
			schema.GateNOR:    4,
			schema.GateNOT:    2,
			schema.GateMUX:    12,
			schema.GateDFF:    20,
			schema.GateDFFE:   24,
			schema.GateLATCH:  12,
			schema.GateALDFFE: 28,
			schema.GateMUL:    200,
			schema.GateADD:    50,
			schema.GateSUB:    50,
			schema.GateROM:    100,
			schema.GateRAM:    150,
		},
		DefaultCost: 6,
		Node:        "45nm",
		GateDensity: 1_200_000,
		MemoryArea:  0.5,
		LUTRatio:    0.3,
		FFRatio:     0.2,
		BRAMBlocks:  64,
		DSPBlocks:   50,
	}
}

// Calculator computes derived estimates from a fixed set of tables.
type Calculator struct {
	t   Tables
	log *slog.Logger
}

// New returns a Calculator over a private copy of t. A nil logger discards
// warnings.
func New(t Tables, log *slog.Logger) *Calculator {
	log = logging.OrDiscard(log)
	t.TransistorCost = maps.Clone(t.TransistorCost)
	return &Calculator{t: t, log: log}
}

// Tables returns a copy of the calculator's tables.
func (c *Calculator) Tables() Tables {
	t := c.t
	t.TransistorCost = maps.Clone(c.t.TransistorCost)
	return t
}

// Cost returns the per-instance transistor cost of g and whether the table
// has an entry for it.
func (c *Calculator) Cost(g schema.GateType) (int, bool) {
	n, ok := c.t.TransistorCost[g]
	if !ok {
		return c.t.DefaultCost, false
	}
	return n, true
}

// Transistors returns Σ b[g] × cost[g]. Gate types without a table entry use
// the default cost and are logged once per call.
func (c *Calculator) Transistors(b schema.CellBreakdown) int {
	total := 0
	for _, g := range slices.Sorted(maps.Keys(b)) {
		cost, ok := c.Cost(g)
		if !ok {
			c.log.Warn("unknown gate type, using default transistor cost",
				"gate", string(g), "count", b[g], "cost", cost)
		}
		total += b[g] * cost
	}
	return total
}

// ASIC returns the die-area estimate for totalCells.
func (c *Calculator) ASIC(totalCells int) schema.ASICEstimate {
	logic := float64(totalCells) / c.t.GateDensity
	return schema.ASICEstimate{
		Node:        c.t.Node,
		GateDensity: c.t.GateDensity,
		LogicArea:   logic,
		MemoryArea:  c.t.MemoryArea,
		TotalArea:   logic + c.t.MemoryArea,
	}
}

// FPGA returns the rough FPGA resource estimate for totalCells.
func (c *Calculator) FPGA(totalCells int) schema.FPGAEstimate {
	return schema.FPGAEstimate{
		LUTs:       float64(totalCells) * c.t.LUTRatio,
		FlipFlops:  float64(totalCells) * c.t.FFRatio,
		BRAMBlocks: c.t.BRAMBlocks,
		DSPBlocks:  c.t.DSPBlocks,
	}
}

// Complexity classifies the gates of b into sequential, combinational,
// arithmetic and memory units.
func Complexity(b schema.CellBreakdown) schema.Complexity {
	var cx schema.Complexity
	for g, n := range b {
		switch g {
		case schema.GateDFF, schema.GateDFFE:
			cx.Sequential += n
		case schema.GateLATCH, schema.GateALDFFE:
		default:
			cx.Combinational += n
		}
		switch g {
		case schema.GateMUL, schema.GateADD, schema.GateSUB:
			cx.Arithmetic += n
		case schema.GateROM, schema.GateRAM:
			cx.Memory += n
		}
	}
	cx.SeqCombRatio = float64(cx.Sequential) / float64(cx.Combinational+1)
	return cx
}

// Derive computes every estimate for one breakdown and cell total.
func (c *Calculator) Derive(b schema.CellBreakdown, totalCells int) schema.DerivedEstimate {
	return schema.DerivedEstimate{
		TotalCells:  totalCells,
		Transistors: c.Transistors(b),
		ASIC:        c.ASIC(totalCells),
		FPGA:        c.FPGA(totalCells),
		Complexity:  Complexity(b),
	}
}
