package chem

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// ErrNoAtoms is reported when no atom coordinates can be extracted
// from an input file.
var ErrNoAtoms = errors.New("chem: no atom coordinates found")

// ParseFile reads a Gaussian input (.gjf) file from disk.
func ParseFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open structure file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a Gaussian input structure. The strict format parser is
// tried first; on any failure a permissive line scanner takes over, so
// sloppy hand-edited files still yield a structure. Only a total
// absence of atom lines is an error.
func Parse(r io.Reader) (*Structure, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read structure: %w", err)
	}
	lines := strings.Split(string(data), "\n")

	if s, err := parseStrict(lines); err == nil {
		return s, nil
	}
	return parsePermissive(lines)
}

// parseStrict follows the Gaussian input layout: optional %directives,
// a # route line, blank, title, blank, "<charge> <multiplicity>", then
// the atom block terminated by a blank line or EOF.
func parseStrict(lines []string) (*Structure, error) {
	i := 0
	next := func() (string, bool) {
		if i >= len(lines) {
			return "", false
		}
		line := strings.TrimSpace(lines[i])
		i++
		return line, true
	}

	line, ok := next()
	for ok && strings.HasPrefix(line, "%") {
		line, ok = next()
	}
	if !ok || !strings.HasPrefix(line, "#") {
		return nil, errors.New("missing route line")
	}
	if line, ok = next(); !ok || line != "" {
		return nil, errors.New("missing blank after route line")
	}
	if line, ok = next(); !ok || line == "" {
		return nil, errors.New("missing title line")
	}
	if line, ok = next(); !ok || line != "" {
		return nil, errors.New("missing blank after title")
	}
	line, ok = next()
	if !ok {
		return nil, errors.New("missing charge/multiplicity line")
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return nil, errors.New("malformed charge/multiplicity line")
	}
	for _, f := range fields {
		if _, err := strconv.Atoi(f); err != nil {
			return nil, fmt.Errorf("malformed charge/multiplicity line: %w", err)
		}
	}

	// The atom block starts directly after the charge line; a single
	// blank line before it is tolerated.
	line, ok = next()
	if ok && line == "" {
		line, ok = next()
	}

	var symbols []string
	var positions [][3]float64
	for ok && line != "" {
		sym, pos, err := parseAtomLine(line)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
		positions = append(positions, pos)
		line, ok = next()
	}
	if len(symbols) == 0 {
		return nil, ErrNoAtoms
	}
	return &Structure{Symbols: symbols, Positions: positions}, nil
}

// parsePermissive scans the whole file for anything that looks like an
// atom line. The coordinate block is assumed to start at the first
// line mixing alphabetic and numeric characters; from there any line
// with a symbol and three parseable floats contributes one atom and
// everything else is skipped.
func parsePermissive(lines []string) (*Structure, error) {
	var symbols []string
	var positions [][3]float64

	inCoords := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "%") {
			continue
		}
		if !inCoords {
			if !hasLetter(line) || !hasDigit(line) {
				continue
			}
			inCoords = true
		}
		sym, pos, err := parseAtomLine(line)
		if err != nil {
			continue
		}
		symbols = append(symbols, sym)
		positions = append(positions, pos)
	}
	if len(symbols) == 0 {
		return nil, ErrNoAtoms
	}
	return &Structure{Symbols: symbols, Positions: positions}, nil
}

func parseAtomLine(line string) (string, [3]float64, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return "", [3]float64{}, fmt.Errorf("atom line needs 4 fields, got %d", len(fields))
	}
	var pos [3]float64
	for k := 0; k < 3; k++ {
		v, err := strconv.ParseFloat(fields[k+1], 64)
		if err != nil {
			return "", [3]float64{}, fmt.Errorf("bad coordinate %q: %w", fields[k+1], err)
		}
		pos[k] = v
	}
	return fields[0], pos, nil
}

func hasLetter(s string) bool {
	return strings.ContainsFunc(s, unicode.IsLetter)
}

func hasDigit(s string) bool {
	return strings.ContainsFunc(s, unicode.IsDigit)
}

// WriteOptions controls the regenerated header of a written structure
// file.
type WriteOptions struct {
	Title        string
	Method       string
	Basis        string
	Charge       int
	Multiplicity int
}

func (o WriteOptions) withDefaults() WriteOptions {
	if o.Title == "" {
		o.Title = "Optimized Complex"
	}
	if o.Method == "" {
		o.Method = "B3LYP"
	}
	if o.Basis == "" {
		o.Basis = "6-31G(d)"
	}
	if o.Multiplicity == 0 {
		o.Multiplicity = 1
	}
	return o
}

// Write serializes a structure in Gaussian input format with fixed
// width, 6-decimal coordinates.
func Write(w io.Writer, s *Structure, opts WriteOptions) error {
	opts = opts.withDefaults()

	var b bytes.Buffer
	b.WriteString("%nprocshared=4\n")
	b.WriteString("%mem=2GB\n")
	fmt.Fprintf(&b, "# %s/%s opt freq\n\n", opts.Method, opts.Basis)
	fmt.Fprintf(&b, "%s\n\n", opts.Title)
	fmt.Fprintf(&b, "%d %d\n", opts.Charge, opts.Multiplicity)
	for i, sym := range s.Symbols {
		p := s.Positions[i]
		fmt.Fprintf(&b, "%-2s %12.6f %12.6f %12.6f\n", sym, p[0], p[1], p[2])
	}
	b.WriteString("\n")

	if _, err := w.Write(b.Bytes()); err != nil {
		return fmt.Errorf("write structure: %w", err)
	}
	return nil
}

// Marshal renders a structure file into memory.
func Marshal(s *Structure, opts WriteOptions) []byte {
	var b bytes.Buffer
	// bytes.Buffer writes cannot fail.
	_ = Write(&b, s, opts)
	return b.Bytes()
}

// WriteFile writes a structure file to disk.
func WriteFile(path string, s *Structure, opts WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create structure file: %w", err)
	}
	if err := Write(f, s, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
