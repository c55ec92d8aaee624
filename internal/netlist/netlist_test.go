package netlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/synthcheck/internal/schema"
)

const hierNetlist = `module fft_top(clk, rst_n, din, dout);
  input clk;
  input rst_n;
  wire _01_;
  wire _02_;
  \$_NOT_  _10_ (
    .A(rst_n),
    .Y(_01_)
  );
  \$_NOT_  _11_ (
    .A(_01_),
    .Y(_02_)
  );
  \$_MUX_  _12_ (
    .A(din), .B(_02_), .S(clk), .Y(dout)
  );
  \$_DFF_P_ _13_ (.C(clk), .D(_02_), .Q(dout));
  \$_DFF_ _14_ (.C(clk), .D(_02_), .Q(dout));
  fft_engine u_engine (
    .clk(clk)
  );
  twiddle_rom u_rom0 (.clk(clk));
  twiddle_rom u_rom1 (.clk(clk));
endmodule
`

func TestHeuristicScanner_Gates(t *testing.T) {
	r := HeuristicScanner{}.Scan(hierNetlist)
	assert.Equal(t, schema.CellBreakdown{
		schema.GateNOT: 2,
		schema.GateMUX: 1,
		schema.GateDFF: 1,
	}, r.Gates)
}

func TestHeuristicScanner_Modules(t *testing.T) {
	r := HeuristicScanner{}.Scan(hierNetlist)
	assert.Equal(t, schema.ModuleInstanceTable{
		"fft_engine":  1,
		"twiddle_rom": 2,
	}, r.Modules)
}

func TestHeuristicScanner_Exclusions(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"module", true},
		{"input", true},
		{"output", true},
		{"wire", true},
		{"_AND_", true},
		{"_DLATCH_", true},
		{"$_MUX_", true},
		{"$paramod", true},
		{"fft_engine", false},
		{"AND", false},
	}
	for _, c := range cases {
		if got := Excluded(c.name); got != c.want {
			t.Errorf("Excluded(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestHeuristicScanner_InternalCellsNotModules(t *testing.T) {
	text := "\\$_DFFE_PP_ _5_ (.C(c));\n\\$_SDFF_PN0_ _6_ (.C(c));\nalu u_alu (.a(a));\n"
	r := HeuristicScanner{}.Scan(text)
	assert.Equal(t, schema.ModuleInstanceTable{"alu": 1}, r.Modules)
}

func TestHeuristicScanner_MultiLineInstanceNotCounted(t *testing.T) {
	// Known limitation: type and instance name on separate lines.
	text := "fft_engine\n  #(.N(16))\n  u_engine (\n .clk(clk));\n"
	r := HeuristicScanner{}.Scan(text)
	assert.Empty(t, r.Modules)
}

func TestHeuristicScanner_Malformed(t *testing.T) {
	for _, text := range []string{"", "(((", "\\$_AND_", "\x00\xff garbage ("} {
		r := HeuristicScanner{}.Scan(text)
		assert.Empty(t, r.Gates, "Scan(%q) gates", text)
		assert.Empty(t, r.Modules, "Scan(%q) modules", text)
	}
}

func TestScanText_Total(t *testing.T) {
	scan := ScanText(HeuristicScanner{}, "top.v", hierNetlist)
	assert.True(t, scan.Present)
	assert.Equal(t, "top.v", scan.File)
	assert.Equal(t, 4, scan.TotalPrimitiveGates)
	assert.Equal(t, "Hierarchical", scan.DesignStyle())
}

func TestScanFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flat.v")
	require.NoError(t, os.WriteFile(path, []byte("\\$_AND_ _1_ (.A(a), .B(b), .Y(y));\n"), 0o644))

	scan, err := ScanFile(HeuristicScanner{}, path)
	require.NoError(t, err)
	assert.True(t, scan.Present)
	assert.Equal(t, 1, scan.Gates[schema.GateAND])
	assert.Equal(t, "Flat", scan.DesignStyle())

	missing := filepath.Join(dir, "missing.v")
	scan, err = ScanFile(HeuristicScanner{}, missing)
	require.NoError(t, err)
	assert.False(t, scan.Present)
	assert.Equal(t, missing, scan.File)
}

type fixedScanner struct{ r Result }

func (f fixedScanner) Scan(string) Result { return f.r }

func TestScanText_CustomScanner(t *testing.T) {
	s := fixedScanner{r: Result{Gates: schema.CellBreakdown{schema.GateRAM: 3}}}
	scan := ScanText(s, "x.v", "ignored")
	assert.Equal(t, 3, scan.TotalPrimitiveGates)
	assert.Equal(t, "Flat", scan.DesignStyle())
}
