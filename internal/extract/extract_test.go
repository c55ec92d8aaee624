package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/synthcheck/internal/schema"
)

const yosysStat = `
=== fft_control ===

   Number of wires:                 97
   Number of wire bits:            512
   Number of public wires:          41
   Number of public wire bits:     302
   Number of ports:                 12
   Number of port bits:            140
   Number of memories:               0
   Number of memory bits:            0
   Number of processes:              0
   Number of cells:                713
     $_ANDNOT_                     120
     $_AND_                         33
     $_DFFE_PP_                     12
     $_DFF_P_                        4
     $_MUX_                        210
     $_NOT_                         48
     $_OR_                          77
     $_XOR_                          9
`

func TestParseSummary_Scenario(t *testing.T) {
	rec, cells := ParseSummary("Number of cells:      1234\nNumber of wires:       56\n")
	assert.Equal(t, schema.MetricRecord{schema.MetricCells: 1234, schema.MetricWires: 56}, rec)
	assert.Empty(t, cells)
}

func TestParseSummary_CellsProperty(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1234, 987654321} {
		text := fmt.Sprintf("header\nNumber of cells:   %d\ntrailer\n", n)
		rec, _ := ParseSummary(text)
		got, ok := rec.Get(schema.MetricCells)
		require.True(t, ok, "cells missing for %d", n)
		assert.Equal(t, n, got)
		assert.Len(t, rec, 1, "only cells should be present")
	}
}

func TestParseSummary_YosysStat(t *testing.T) {
	rec, cells := ParseSummary(yosysStat)

	assert.Equal(t, 713, rec[schema.MetricCells])
	assert.Equal(t, 97, rec[schema.MetricWires])
	assert.Equal(t, 512, rec[schema.MetricWireBits])
	assert.Equal(t, 41, rec[schema.MetricPublicWires])
	assert.Equal(t, 302, rec[schema.MetricPublicWireBits])
	assert.Equal(t, 140, rec[schema.MetricPortBits])
	mem, ok := rec.Get(schema.MetricMemoryBits)
	assert.True(t, ok, "explicit zero must be present")
	assert.Equal(t, 0, mem)

	assert.Equal(t, 120, cells[schema.GateANDNOT])
	assert.Equal(t, 33, cells[schema.GateAND])
	assert.Equal(t, 210, cells[schema.GateMUX])
	assert.Equal(t, 48, cells[schema.GateNOT])
	// $_DFF_P_ and $_DFFE_PP_ are not the bare markers.
	_, hasDFF := cells[schema.GateDFF]
	assert.False(t, hasDFF)
	_, hasDFFE := cells[schema.GateDFFE]
	assert.False(t, hasDFFE)
}

func TestParseSummary_EscapedMarkers(t *testing.T) {
	text := "  \\$_NOT_   10\n  \\$_MUX_   5\n  \\$_DFF_   2\n  \\$_DLATCH_  3\n  \\$_RAM_  0\n"
	_, cells := ParseSummary(text)
	assert.Equal(t, schema.CellBreakdown{
		schema.GateNOT:   10,
		schema.GateMUX:   5,
		schema.GateDFF:   2,
		schema.GateLATCH: 3,
	}, cells)
}

func TestParseSummary_FirstMatchWins(t *testing.T) {
	rec, _ := ParseSummary("Number of cells: 10\nNumber of cells: 20\n")
	assert.Equal(t, 10, rec[schema.MetricCells])
}

func TestParseSummary_Malformed(t *testing.T) {
	cases := []string{
		"",
		"Number of cells: many",
		"Number of cells:",
		"Number of cells:12",
		"Number of cells: 99999999999999999999999999",
		"number of cells: 5",
	}
	for _, text := range cases {
		rec, cells := ParseSummary(text)
		_, ok := rec.Get(schema.MetricCells)
		assert.False(t, ok, "ParseSummary(%q) should omit cells", text)
		assert.Empty(t, cells)
	}
}

func TestParseSummaryFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope_stats.txt")
	art, err := ParseSummaryFile(path)
	require.NoError(t, err)
	assert.False(t, art.Present)
	assert.Equal(t, path, art.Path)
	assert.Nil(t, art.Metrics)
}

func TestParseSummaryFile_PresentButEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty_stats.txt")
	require.NoError(t, os.WriteFile(path, []byte("nothing useful\n"), 0o644))
	art, err := ParseSummaryFile(path)
	require.NoError(t, err)
	assert.True(t, art.Present, "an existing file is present even with zero matches")
	assert.Empty(t, art.Metrics)
	assert.Empty(t, art.Cells)
}

func TestParseSummaryFile_Directory(t *testing.T) {
	// Reading a directory is a filesystem failure, not a missing artifact.
	_, err := ParseSummaryFile(t.TempDir())
	assert.Error(t, err)
}
