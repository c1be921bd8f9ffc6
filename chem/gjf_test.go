package chem

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

const waterGJF = `%nprocshared=4
%mem=2GB
# B3LYP/6-31G(d) opt

Water

0 1
O     0.000000     0.000000     0.117300
H     0.000000     0.757200    -0.469200
H     0.000000    -0.757200    -0.469200

`

func TestParseStrict(t *testing.T) {
	s, err := Parse(strings.NewReader(waterGJF))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 atoms, got %d", s.Len())
	}
	if s.Symbols[0] != "O" || s.Symbols[1] != "H" || s.Symbols[2] != "H" {
		t.Errorf("unexpected symbols %v", s.Symbols)
	}
	if math.Abs(s.Positions[0][2]-0.1173) > 1e-9 {
		t.Errorf("unexpected O z coordinate %v", s.Positions[0][2])
	}
	if math.Abs(s.Positions[1][1]-0.7572) > 1e-9 {
		t.Errorf("unexpected H y coordinate %v", s.Positions[1][1])
	}
}

func TestParseNoBlankBeforeAtoms(t *testing.T) {
	input := "# HF/STO-3G opt\n\ntitle\n\n0 1\nH 0.0 0.0 0.0\nH 0.74 0.0 0.0\n"
	s, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 atoms, got %d", s.Len())
	}
}

func TestParsePermissiveFallback(t *testing.T) {
	// No route line, stray commentary between atoms: the strict parser
	// rejects this, the permissive scan should still find both atoms.
	input := `some hand-written note
C 0.0 0.0 0.0
this line is not an atom
O 1.2 0.0 0.0
`
	s, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 atoms, got %d", s.Len())
	}
	if s.Symbols[0] != "C" || s.Symbols[1] != "O" {
		t.Errorf("unexpected symbols %v", s.Symbols)
	}
}

func TestParseNoAtoms(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only comments", "# route\n% directive\n"},
		{"prose only", "this file has no coordinates at all\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if !errors.Is(err, ErrNoAtoms) {
				t.Errorf("expected ErrNoAtoms, got %v", err)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	orig := &Structure{
		Symbols: []string{"O", "H", "H"},
		Positions: [][3]float64{
			{0.123456, -1.654321, 0.117301},
			{0, 0.7572, -0.4692},
			{-2.5, 3.25, 10.000001},
		},
	}

	var b bytes.Buffer
	if err := Write(&b, orig, WriteOptions{Charge: 0, Multiplicity: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	parsed, err := Parse(&b)
	if err != nil {
		t.Fatalf("Parse of written output failed: %v", err)
	}
	if parsed.Len() != orig.Len() {
		t.Fatalf("round trip lost atoms: %d != %d", parsed.Len(), orig.Len())
	}
	for i := range orig.Symbols {
		if parsed.Symbols[i] != orig.Symbols[i] {
			t.Errorf("atom %d: symbol %q != %q", i, parsed.Symbols[i], orig.Symbols[i])
		}
		for k := 0; k < 3; k++ {
			if math.Abs(parsed.Positions[i][k]-orig.Positions[i][k]) > 1e-6 {
				t.Errorf("atom %d coord %d: %v != %v", i, k, parsed.Positions[i][k], orig.Positions[i][k])
			}
		}
	}
}

func TestWriteHeader(t *testing.T) {
	s := &Structure{Symbols: []string{"H"}, Positions: [][3]float64{{0, 0, 0}}}
	out := string(Marshal(s, WriteOptions{Title: "Test Run", Method: "HF", Basis: "STO-3G", Charge: -1, Multiplicity: 2}))

	for _, want := range []string{
		"%nprocshared=4\n",
		"%mem=2GB\n",
		"# HF/STO-3G opt freq\n",
		"Test Run\n",
		"-1 2\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Error("output should end with a blank line")
	}
}

func TestWriteDefaults(t *testing.T) {
	s := &Structure{Symbols: []string{"H"}, Positions: [][3]float64{{0, 0, 0}}}
	out := string(Marshal(s, WriteOptions{}))
	if !strings.Contains(out, "# B3LYP/6-31G(d) opt freq") {
		t.Errorf("expected default route line, got:\n%s", out)
	}
	if !strings.Contains(out, "Optimized Complex\n") {
		t.Errorf("expected default title, got:\n%s", out)
	}
	if !strings.Contains(out, "0 1\n") {
		t.Errorf("expected default charge/multiplicity, got:\n%s", out)
	}
}
