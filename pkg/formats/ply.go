package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	gomath "math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// PLYProperty is one property line of a PLY element.
type PLYProperty struct {
	Name      string
	Type      string // scalar type, or the item type of a list
	List      bool
	CountType string // list length type
}

// PLYElement is one element declaration.
type PLYElement struct {
	Name       string
	Count      int
	Properties []PLYProperty
}

func (e *PLYElement) index(names ...string) int {
	for i, p := range e.Properties {
		for _, n := range names {
			if p.Name == n {
				return i
			}
		}
	}
	return -1
}

// PLYHeader holds the parsed PLY header.
type PLYHeader struct {
	Format   string // "ascii" or "binary_little_endian"
	Elements []PLYElement
}

var plySizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4, "double": 8, "float64": 8,
}

// ParsePLY parses a Stanford PLY file in ascii or binary_little_endian
// encoding. The vertex element provides x, y, z and optionally red, green,
// blue and alpha; the face element provides vertex_indices (or
// vertex_index), fan-triangulated.
func ParsePLY(data []byte) (*Geometry, error) {
	hdr, body, err := parsePLYHeader(data)
	if err != nil {
		return nil, err
	}

	var src plySource
	switch hdr.Format {
	case "ascii":
		src = newPLYASCII(body)
	case "binary_little_endian":
		src = &plyBinary{r: bytes.NewReader(body)}
	default:
		return nil, fmt.Errorf("%w: PLY %s", ErrUnsupportedFormat, hdr.Format)
	}

	g := &Geometry{}
	limit := len(body)
	for ei := range hdr.Elements {
		el := &hdr.Elements[ei]
		switch el.Name {
		case "vertex":
			err = readPLYVertices(el, src, g, limit)
		case "face":
			err = readPLYFaces(el, src, g, limit)
		default:
			err = skipPLYElement(el, src, limit)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, i := range g.Indices {
		if int(i) >= len(g.Positions) {
			return nil, fmt.Errorf("%w: face index %d out of range", ErrInvalidData, i)
		}
	}
	return g, nil
}

func parsePLYHeader(data []byte) (*PLYHeader, []byte, error) {
	if !bytes.HasPrefix(data, []byte("ply")) {
		return nil, nil, fmt.Errorf("%w: missing ply magic", ErrInvalidHeader)
	}
	hdr := &PLYHeader{}
	rest := data
	for {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return nil, nil, fmt.Errorf("%w: PLY header has no end_header", ErrTruncated)
		}
		tok := strings.Fields(string(rest[:nl]))
		rest = rest[nl+1:]
		if len(tok) == 0 {
			continue
		}

		switch tok[0] {
		case "ply", "comment", "obj_info":
		case "format":
			if len(tok) < 2 {
				return nil, nil, fmt.Errorf("%w: bad format line", ErrInvalidHeader)
			}
			hdr.Format = tok[1]
		case "element":
			if len(tok) != 3 {
				return nil, nil, fmt.Errorf("%w: bad element line", ErrInvalidHeader)
			}
			n, err := strconv.Atoi(tok[2])
			if err != nil || n < 0 {
				return nil, nil, fmt.Errorf("%w: bad element count %q", ErrInvalidHeader, tok[2])
			}
			hdr.Elements = append(hdr.Elements, PLYElement{Name: tok[1], Count: n})
		case "property":
			if len(hdr.Elements) == 0 {
				return nil, nil, fmt.Errorf("%w: property before element", ErrInvalidHeader)
			}
			p, err := parsePLYProperty(tok)
			if err != nil {
				return nil, nil, err
			}
			el := &hdr.Elements[len(hdr.Elements)-1]
			el.Properties = append(el.Properties, p)
		case "end_header":
			if hdr.Format == "" {
				return nil, nil, fmt.Errorf("%w: missing format", ErrInvalidHeader)
			}
			return hdr, rest, nil
		default:
			return nil, nil, fmt.Errorf("%w: unknown PLY keyword %q", ErrInvalidHeader, tok[0])
		}
	}
}

func parsePLYProperty(tok []string) (PLYProperty, error) {
	if len(tok) == 5 && tok[1] == "list" {
		if _, ok := plySizes[tok[2]]; !ok {
			return PLYProperty{}, fmt.Errorf("%w: list count type %q", ErrInvalidHeader, tok[2])
		}
		if _, ok := plySizes[tok[3]]; !ok {
			return PLYProperty{}, fmt.Errorf("%w: list item type %q", ErrInvalidHeader, tok[3])
		}
		return PLYProperty{Name: tok[4], Type: tok[3], List: true, CountType: tok[2]}, nil
	}
	if len(tok) != 3 {
		return PLYProperty{}, fmt.Errorf("%w: bad property line", ErrInvalidHeader)
	}
	if _, ok := plySizes[tok[1]]; !ok {
		return PLYProperty{}, fmt.Errorf("%w: property type %q", ErrInvalidHeader, tok[1])
	}
	return PLYProperty{Name: tok[2], Type: tok[1]}, nil
}

// readPLYVertices reads the vertex element. limit is the body size in
// bytes; each vertex takes at least one byte, so it bounds preallocation.
func readPLYVertices(el *PLYElement, src plySource, g *Geometry, limit int) error {
	xi, yi, zi := el.index("x"), el.index("y"), el.index("z")
	if xi < 0 || yi < 0 || zi < 0 {
		return fmt.Errorf("%w: vertex element lacks x, y or z", ErrInvalidHeader)
	}
	ri, gi, bi := el.index("red", "r"), el.index("green", "g"), el.index("blue", "b")
	ai := el.index("alpha", "a")
	hasColor := ri >= 0 && gi >= 0 && bi >= 0

	prealloc := min(el.Count, limit)
	g.Positions = make([]mgl32.Vec3, 0, prealloc)
	if hasColor {
		g.Colors = make([]mgl32.Vec4, 0, prealloc)
	}

	vals := make([]float64, len(el.Properties))
	for n := 0; n < el.Count; n++ {
		for i, p := range el.Properties {
			if p.List {
				if err := skipPLYList(p, src, limit); err != nil {
					return fmt.Errorf("vertex %d: %w", n, err)
				}
				continue
			}
			v, err := src.scalar(p.Type)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", n, err)
			}
			vals[i] = v
		}
		g.Positions = append(g.Positions, mgl32.Vec3{float32(vals[xi]), float32(vals[yi]), float32(vals[zi])})
		if hasColor {
			c := mgl32.Vec4{
				colorChannel(el.Properties[ri].Type, vals[ri]),
				colorChannel(el.Properties[gi].Type, vals[gi]),
				colorChannel(el.Properties[bi].Type, vals[bi]),
				1,
			}
			if ai >= 0 {
				c[3] = colorChannel(el.Properties[ai].Type, vals[ai])
			}
			g.Colors = append(g.Colors, c)
		}
	}
	return nil
}

// colorChannel normalizes a color property to [0, 1]. Integer channels
// are 0-255, float channels are taken as is.
func colorChannel(typ string, v float64) float32 {
	switch typ {
	case "float", "float32", "double", "float64":
		return float32(v)
	}
	return float32(v / 255)
}

func readPLYFaces(el *PLYElement, src plySource, g *Geometry, limit int) error {
	li := el.index("vertex_indices", "vertex_index")
	if li < 0 || !el.Properties[li].List {
		return skipPLYElement(el, src, limit)
	}
	for n := 0; n < el.Count; n++ {
		for i, p := range el.Properties {
			if !p.List {
				if _, err := src.scalar(p.Type); err != nil {
					return fmt.Errorf("face %d: %w", n, err)
				}
				continue
			}
			cnt, err := listCount(p, src, limit)
			if err != nil {
				return fmt.Errorf("face %d: %w", n, err)
			}
			idx := make([]uint32, cnt)
			for k := range idx {
				v, err := src.scalar(p.Type)
				if err != nil {
					return fmt.Errorf("face %d: %w", n, err)
				}
				if v < 0 {
					return fmt.Errorf("%w: negative face index", ErrInvalidData)
				}
				idx[k] = uint32(v)
			}
			if i != li {
				continue
			}
			for k := 1; k+1 < len(idx); k++ {
				g.Indices = append(g.Indices, idx[0], idx[k], idx[k+1])
			}
		}
	}
	return nil
}

func skipPLYElement(el *PLYElement, src plySource, limit int) error {
	for n := 0; n < el.Count; n++ {
		for _, p := range el.Properties {
			var err error
			if p.List {
				err = skipPLYList(p, src, limit)
			} else {
				_, err = src.scalar(p.Type)
			}
			if err != nil {
				return fmt.Errorf("%s %d: %w", el.Name, n, err)
			}
		}
	}
	return nil
}

// listCount reads the length of a list property. It must be a
// non-negative integer no larger than limit.
func listCount(p PLYProperty, src plySource, limit int) (int, error) {
	v, err := src.scalar(p.CountType)
	if err != nil {
		return 0, err
	}
	if v < 0 || v != gomath.Trunc(v) || v > float64(limit) {
		return 0, fmt.Errorf("%w: list length %v", ErrInvalidData, v)
	}
	return int(v), nil
}

func skipPLYList(p PLYProperty, src plySource, limit int) error {
	cnt, err := listCount(p, src, limit)
	if err != nil {
		return err
	}
	for k := 0; k < cnt; k++ {
		if _, err := src.scalar(p.Type); err != nil {
			return err
		}
	}
	return nil
}

// plySource yields successive scalar values of the body.
type plySource interface {
	scalar(typ string) (float64, error)
}

type plyASCII struct {
	sc *bufio.Scanner
}

func newPLYASCII(body []byte) *plyASCII {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)
	return &plyASCII{sc: sc}
}

func (a *plyASCII) scalar(string) (float64, error) {
	if !a.sc.Scan() {
		if err := a.sc.Err(); err != nil {
			return 0, err
		}
		return 0, ErrTruncated
	}
	v, err := strconv.ParseFloat(a.sc.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return v, nil
}

type plyBinary struct {
	r   *bytes.Reader
	buf [8]byte
}

func (b *plyBinary) scalar(typ string) (float64, error) {
	n := plySizes[typ]
	if _, err := io.ReadFull(b.r, b.buf[:n]); err != nil {
		return 0, ErrTruncated
	}
	le := binary.LittleEndian
	p := b.buf[:n]
	switch typ {
	case "char", "int8":
		return float64(int8(p[0])), nil
	case "uchar", "uint8":
		return float64(p[0]), nil
	case "short", "int16":
		return float64(int16(le.Uint16(p))), nil
	case "ushort", "uint16":
		return float64(le.Uint16(p)), nil
	case "int", "int32":
		return float64(int32(le.Uint32(p))), nil
	case "uint", "uint32":
		return float64(le.Uint32(p)), nil
	case "float", "float32":
		return float64(gomath.Float32frombits(le.Uint32(p))), nil
	default:
		return gomath.Float64frombits(le.Uint64(p)), nil
	}
}

// ParsePLYFile parses a PLY file from disk.
func ParsePLYFile(path string) (*Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PLY file: %w", err)
	}
	return ParsePLY(data)
}

// WritePLY writes g as an ascii PLY file with uchar colors and triangle
// faces when present.
func WritePLY(w io.Writer, g *Geometry) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\nelement vertex %d\n", len(g.Positions))
	bw.WriteString("property float x\nproperty float y\nproperty float z\n")
	if g.HasColors() {
		bw.WriteString("property uchar red\nproperty uchar green\nproperty uchar blue\nproperty uchar alpha\n")
	}
	if g.IsMesh() {
		fmt.Fprintf(bw, "element face %d\nproperty list uchar int vertex_indices\n", g.TriangleCount())
	}
	bw.WriteString("end_header\n")

	for i, p := range g.Positions {
		fmt.Fprintf(bw, "%g %g %g", p[0], p[1], p[2])
		if g.HasColors() {
			c := g.Colors[i]
			fmt.Fprintf(bw, " %d %d %d %d", toByte(c[0]), toByte(c[1]), toByte(c[2]), toByte(c[3]))
		}
		bw.WriteByte('\n')
	}
	for t := 0; t < g.TriangleCount(); t++ {
		fmt.Fprintf(bw, "3 %d %d %d\n", g.Indices[3*t], g.Indices[3*t+1], g.Indices[3*t+2])
	}
	return bw.Flush()
}

func toByte(v float32) int {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return int(v*255 + 0.5)
	}
}
