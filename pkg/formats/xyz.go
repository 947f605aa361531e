package formats

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// ParseXYZ parses a whitespace separated point list, one "x y z [r g b]"
// point per line. Lines starting with '#' are comments. Color channels
// written with a decimal point are read as 0-1 floats, otherwise as 0-255
// integers. Either every point carries a color or none does.
func ParseXYZ(data []byte) (*Geometry, error) {
	g := &Geometry{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		tok := strings.Fields(text)
		if len(tok) != 3 && len(tok) < 6 {
			return nil, fmt.Errorf("%w: XYZ line %d has %d values", ErrInvalidData, line, len(tok))
		}

		var v [6]float64
		n := min(len(tok), 6)
		for i := 0; i < n; i++ {
			f, err := strconv.ParseFloat(tok[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: XYZ line %d: %v", ErrInvalidData, line, err)
			}
			v[i] = f
		}

		colored := n == 6
		switch {
		case len(g.Positions) == 0:
			if colored {
				g.Colors = []mgl32.Vec4{}
			}
		case colored != g.HasColors():
			return nil, fmt.Errorf("%w: XYZ line %d mixes colored and plain points", ErrInvalidData, line)
		}

		p := mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
		if !isFinite3(p) {
			continue
		}
		g.Positions = append(g.Positions, p)
		if colored {
			c := mgl32.Vec4{0, 0, 0, 1}
			for i := 0; i < 3; i++ {
				c[i] = xyzChannel(tok[3+i], v[3+i])
			}
			g.Colors = append(g.Colors, c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading XYZ data: %w", err)
	}
	return g, nil
}

func xyzChannel(tok string, v float64) float32 {
	if !strings.ContainsAny(tok, ".eE") {
		v /= 255
	}
	return float32(max(0, min(1, v)))
}

// ParseXYZFile parses an XYZ file from disk.
func ParseXYZFile(path string) (*Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading XYZ file: %w", err)
	}
	return ParseXYZ(data)
}

// WriteXYZ writes g as an XYZ point list. Colors, when present, are written
// as 0-255 integers.
func WriteXYZ(w io.Writer, g *Geometry) error {
	bw := bufio.NewWriter(w)
	for i, p := range g.Positions {
		fmt.Fprintf(bw, "%g %g %g", p[0], p[1], p[2])
		if g.HasColors() {
			c := g.Colors[i]
			fmt.Fprintf(bw, " %d %d %d", toByte(c[0]), toByte(c[1]), toByte(c[2]))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
