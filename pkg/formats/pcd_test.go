package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const pcdASCII = `# .PCD v0.7 - Point Cloud Data file format
VERSION 0.7
FIELDS x y z rgb
SIZE 4 4 4 4
TYPE F F F U
COUNT 1 1 1 1
WIDTH 3
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS 3
DATA ascii
0 0 0 16711680
1 2 3 65280
nan nan nan 255
`

func TestParsePCD_ASCII(t *testing.T) {
	g, err := ParsePCD([]byte(pcdASCII))
	if err != nil {
		t.Fatalf("ParsePCD failed: %v", err)
	}
	// The NaN point is dropped.
	if len(g.Positions) != 2 {
		t.Fatalf("expected 2 points, got %d", len(g.Positions))
	}
	if g.Positions[1] != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("point 1 = %v", g.Positions[1])
	}
	if !g.HasColors() || g.Colors[0] != (mgl32.Vec4{1, 0, 0, 1}) || g.Colors[1] != (mgl32.Vec4{0, 1, 0, 1}) {
		t.Errorf("colors = %v", g.Colors)
	}
}

// createTestPCD builds a binary PCD with x y z and a float-packed rgb.
func createTestPCD(points [][3]float32, rgb []uint32) []byte {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "VERSION .7\nFIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F F\nCOUNT 1 1 1 1\n")
	fmt.Fprintf(buf, "WIDTH %d\nHEIGHT 1\nPOINTS %d\nDATA binary\n", len(points), len(points))
	for i, p := range points {
		binary.Write(buf, binary.LittleEndian, p)
		binary.Write(buf, binary.LittleEndian, gomath.Float32frombits(rgb[i]))
	}
	return buf.Bytes()
}

func TestParsePCD_Binary(t *testing.T) {
	data := createTestPCD([][3]float32{{1, 2, 3}, {-4, 5, -6}}, []uint32{0x0000ff, 0x00ff00})
	g, err := ParsePCD(data)
	if err != nil {
		t.Fatalf("ParsePCD failed: %v", err)
	}
	if len(g.Positions) != 2 || g.Positions[1] != (mgl32.Vec3{-4, 5, -6}) {
		t.Errorf("positions = %v", g.Positions)
	}
	if g.Colors[0] != (mgl32.Vec4{0, 0, 1, 1}) {
		t.Errorf("color 0 = %v, want blue", g.Colors[0])
	}
}

func TestParsePCD_NoColor(t *testing.T) {
	data := "FIELDS x y z intensity\nSIZE 4 4 4 4\nTYPE F F F F\nWIDTH 1\nPOINTS 1\nDATA ascii\n1 1 1 0.5\n"
	g, err := ParsePCD([]byte(data))
	if err != nil {
		t.Fatalf("ParsePCD failed: %v", err)
	}
	if g.HasColors() {
		t.Error("unexpected colors")
	}
}

func TestParsePCD_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"no data line", "FIELDS x y z\n", ErrTruncated},
		{"unknown key", "BOGUS 1\nDATA ascii\n", ErrInvalidHeader},
		{"missing z", "FIELDS x y\nSIZE 4 4\nTYPE F F\nPOINTS 0\nDATA ascii\n", ErrInvalidHeader},
		{"size mismatch", "FIELDS x y z\nSIZE 4 4\nTYPE F F F\nDATA ascii\n", ErrInvalidHeader},
		{"bad type", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F Q\nDATA ascii\n", ErrInvalidHeader},
		{"compressed", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nPOINTS 1\nDATA binary_compressed\n", ErrUnsupportedFormat},
		{"short ascii", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nPOINTS 2\nDATA ascii\n1 2 3\n", ErrTruncated},
		{"short binary", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nPOINTS 1\nDATA binary\nabc", ErrTruncated},
		{"bad value", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nPOINTS 1\nDATA ascii\n1 two 3\n", ErrInvalidData},
		{"bad points", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nPOINTS many\nDATA ascii\n", ErrInvalidHeader},
		{"negative width", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nWIDTH -1\nDATA ascii\n", ErrInvalidHeader},
		{"width times height overflows", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nWIDTH 4294967296\nHEIGHT 4294967296\nDATA ascii\n", ErrInvalidHeader},
		{"huge count", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 100000\nDATA ascii\n", ErrInvalidHeader},
		{"huge ascii points", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nPOINTS 9223372036854775807\nDATA ascii\n1 2 3\n", ErrTruncated},
		{"huge binary points", "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nPOINTS 768614336404564651\nDATA binary\n0123456789ab", ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePCD([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParsePCDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.pcd")
	if err := os.WriteFile(path, []byte(pcdASCII), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := ParsePCDFile(path)
	if err != nil {
		t.Fatalf("ParsePCDFile failed: %v", err)
	}
	if len(g.Positions) != 2 {
		t.Errorf("expected 2 points, got %d", len(g.Positions))
	}
	if _, err := ParsePCDFile(filepath.Join(t.TempDir(), "missing.pcd")); err == nil {
		t.Error("expected error for missing file")
	}
}
