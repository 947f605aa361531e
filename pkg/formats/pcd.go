package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	gomath "math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// PCDField describes one FIELDS entry of a PCD header.
type PCDField struct {
	Name  string
	Size  int
	Type  byte // 'F', 'U' or 'I'
	Count int
}

// PCDHeader holds the parsed PCD header.
type PCDHeader struct {
	Version string
	Fields  []PCDField
	Width   int
	Height  int
	Points  int
	Data    string // "ascii", "binary" or "binary_compressed"
}

// pointSize returns the byte size of one binary record.
func (h *PCDHeader) pointSize() int {
	n := 0
	for _, f := range h.Fields {
		n += f.Size * f.Count
	}
	return n
}

func (h *PCDHeader) field(name string) int {
	for i, f := range h.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// ParsePCD parses a Point Cloud Data file. Fields x, y and z are required;
// rgb or rgba become colors. Points with non-finite coordinates are
// skipped.
func ParsePCD(data []byte) (*Geometry, error) {
	hdr, body, err := parsePCDHeader(data)
	if err != nil {
		return nil, err
	}

	xi, yi, zi := hdr.field("x"), hdr.field("y"), hdr.field("z")
	if xi < 0 || yi < 0 || zi < 0 {
		return nil, fmt.Errorf("%w: missing x, y or z field", ErrInvalidHeader)
	}
	ci, alpha := hdr.field("rgb"), false
	if ci < 0 {
		ci, alpha = hdr.field("rgba"), true
	}

	var rows [][]float64
	switch hdr.Data {
	case "ascii":
		rows, err = readPCDASCII(hdr, body)
	case "binary":
		rows, err = readPCDBinary(hdr, body)
	default:
		return nil, fmt.Errorf("%w: PCD DATA %s", ErrUnsupportedFormat, hdr.Data)
	}
	if err != nil {
		return nil, err
	}

	g := &Geometry{Positions: make([]mgl32.Vec3, 0, len(rows))}
	if ci >= 0 {
		g.Colors = make([]mgl32.Vec4, 0, len(rows))
	}
	for _, row := range rows {
		p := mgl32.Vec3{float32(row[xi]), float32(row[yi]), float32(row[zi])}
		if !isFinite3(p) {
			continue
		}
		g.Positions = append(g.Positions, p)
		if ci >= 0 {
			g.Colors = append(g.Colors, unpackRGB(packedColor(hdr.Fields[ci], row[ci]), alpha))
		}
	}
	return g, nil
}

// packedColor recovers the packed 0xAARRGGBB word. PCL stores rgb as the
// bit pattern of a float32.
func packedColor(f PCDField, v float64) uint32 {
	if f.Type == 'F' {
		return gomath.Float32bits(float32(v))
	}
	return uint32(v)
}

func parsePCDHeader(data []byte) (*PCDHeader, []byte, error) {
	hdr := &PCDHeader{Height: 1}
	var sizes, types, counts []string
	var names []string

	rest := data
	for {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return nil, nil, fmt.Errorf("%w: PCD header has no DATA line", ErrTruncated)
		}
		line := strings.TrimSpace(string(rest[:nl]))
		rest = rest[nl+1:]
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, val, _ := strings.Cut(line, " ")
		val = strings.TrimSpace(val)
		switch strings.ToUpper(key) {
		case "VERSION":
			hdr.Version = val
		case "FIELDS", "COLUMNS":
			names = strings.Fields(val)
		case "SIZE":
			sizes = strings.Fields(val)
		case "TYPE":
			types = strings.Fields(val)
		case "COUNT":
			counts = strings.Fields(val)
		case "WIDTH", "HEIGHT", "POINTS":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return nil, nil, fmt.Errorf("%w: bad %s %q", ErrInvalidHeader, key, val)
			}
			switch strings.ToUpper(key) {
			case "WIDTH":
				hdr.Width = n
			case "HEIGHT":
				hdr.Height = n
			default:
				hdr.Points = n
			}
		case "VIEWPOINT":
		case "DATA":
			hdr.Data = strings.ToLower(val)
			if err := hdr.buildFields(names, sizes, types, counts); err != nil {
				return nil, nil, err
			}
			if hdr.Points == 0 && hdr.Width > 0 && hdr.Height > 0 {
				if hdr.Width > gomath.MaxInt/hdr.Height {
					return nil, nil, fmt.Errorf("%w: WIDTH*HEIGHT overflows", ErrInvalidHeader)
				}
				hdr.Points = hdr.Width * hdr.Height
			}
			return hdr, rest, nil
		default:
			return nil, nil, fmt.Errorf("%w: unknown PCD key %q", ErrInvalidHeader, key)
		}
	}
}

func (h *PCDHeader) buildFields(names, sizes, types, counts []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: no FIELDS", ErrInvalidHeader)
	}
	if len(sizes) != len(names) || len(types) != len(names) {
		return fmt.Errorf("%w: FIELDS, SIZE and TYPE lengths differ", ErrInvalidHeader)
	}
	if counts != nil && len(counts) != len(names) {
		return fmt.Errorf("%w: COUNT length differs from FIELDS", ErrInvalidHeader)
	}
	for i, name := range names {
		f := PCDField{Name: name, Count: 1}
		var err error
		if f.Size, err = strconv.Atoi(sizes[i]); err != nil || !validSize(f.Size) {
			return fmt.Errorf("%w: bad SIZE %q", ErrInvalidHeader, sizes[i])
		}
		if len(types[i]) != 1 || !strings.Contains("FUI", types[i]) {
			return fmt.Errorf("%w: bad TYPE %q", ErrInvalidHeader, types[i])
		}
		f.Type = types[i][0]
		if f.Type == 'F' && f.Size != 4 && f.Size != 8 {
			return fmt.Errorf("%w: float field %s of size %d", ErrInvalidHeader, name, f.Size)
		}
		if counts != nil {
			if f.Count, err = strconv.Atoi(counts[i]); err != nil || f.Count < 1 || f.Count > maxPCDCount {
				return fmt.Errorf("%w: bad COUNT %q", ErrInvalidHeader, counts[i])
			}
		}
		h.Fields = append(h.Fields, f)
	}
	return nil
}

// maxPCDCount bounds COUNT so record sizes cannot overflow. Descriptor
// fields such as VFH use a few hundred elements.
const maxPCDCount = 1 << 16

func validSize(n int) bool { return n == 1 || n == 2 || n == 4 || n == 8 }

// readPCDASCII returns one row per point with the first element of each
// field.
func readPCDASCII(h *PCDHeader, body []byte) ([][]float64, error) {
	// Every point takes at least one line, so the body bounds the
	// preallocation whatever POINTS claims.
	rows := make([][]float64, 0, min(h.Points, bytes.Count(body, []byte{'\n'})+1))
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() && len(rows) < h.Points {
		line++
		tok := strings.Fields(sc.Text())
		if len(tok) == 0 {
			continue
		}
		row := make([]float64, len(h.Fields))
		col := 0
		for i, f := range h.Fields {
			if col+f.Count > len(tok) {
				return nil, fmt.Errorf("%w: PCD point %d has %d values", ErrTruncated, len(rows), len(tok))
			}
			v, err := parsePCDValue(tok[col])
			if err != nil {
				return nil, fmt.Errorf("%w: PCD data line %d: %v", ErrInvalidData, line, err)
			}
			row[i] = v
			col += f.Count
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading PCD data: %w", err)
	}
	if len(rows) < h.Points {
		return nil, fmt.Errorf("%w: %d of %d PCD points", ErrTruncated, len(rows), h.Points)
	}
	return rows, nil
}

func parsePCDValue(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan":
		return gomath.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func readPCDBinary(h *PCDHeader, body []byte) ([][]float64, error) {
	size := h.pointSize()
	if h.Points > len(body)/size {
		return nil, fmt.Errorf("%w: %d PCD points of %d bytes, have %d bytes", ErrTruncated, h.Points, size, len(body))
	}
	rows := make([][]float64, h.Points)
	off := 0
	for p := range rows {
		row := make([]float64, len(h.Fields))
		for i, f := range h.Fields {
			row[i] = decodeScalar(body[off:off+f.Size], f.Type, f.Size)
			off += f.Size * f.Count
		}
		rows[p] = row
	}
	return rows, nil
}

func decodeScalar(b []byte, typ byte, size int) float64 {
	le := binary.LittleEndian
	switch typ {
	case 'F':
		if size == 8 {
			return gomath.Float64frombits(le.Uint64(b))
		}
		return float64(gomath.Float32frombits(le.Uint32(b)))
	case 'U':
		switch size {
		case 1:
			return float64(b[0])
		case 2:
			return float64(le.Uint16(b))
		case 4:
			return float64(le.Uint32(b))
		default:
			return float64(le.Uint64(b))
		}
	default:
		switch size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(le.Uint16(b)))
		case 4:
			return float64(int32(le.Uint32(b)))
		default:
			return float64(int64(le.Uint64(b)))
		}
	}
}

// ParsePCDFile parses a PCD file from disk.
func ParsePCDFile(path string) (*Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PCD file: %w", err)
	}
	return ParsePCD(data)
}
