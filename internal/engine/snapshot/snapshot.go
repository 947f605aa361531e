// Package snapshot writes the rendered color and depth buffers to PNG
// files.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// TimeLayout formats the timestamp embedded in snapshot file names.
const TimeLayout = "2006-01-02-15-04-05"

// ErrSizeMismatch is returned when a buffer does not match its dimensions.
var ErrSizeMismatch = errors.New("pixel data size mismatch")

// Capture writes snapshot files into a directory.
type Capture struct {
	outputDir string
	now       func() time.Time
}

// New creates a capture handler writing into outputDir. An empty dir means
// the working directory.
func New(outputDir string) *Capture {
	return &Capture{outputDir: outputDir, now: time.Now}
}

// Paths holds the files written by one Save.
type Paths struct {
	Color string
	Depth string
}

// Save writes snapshot-color-<ts>.png from RGBA8 pixels and
// snapshot-depth-<ts>.png from window-space depth, both in OpenGL row
// order (bottom row first). depth may be nil to skip the depth image.
func (c *Capture) Save(rgba []byte, depth []float32, width, height int) (Paths, error) {
	var p Paths
	ts := c.now().Format(TimeLayout)

	img, err := ColorImage(rgba, width, height)
	if err != nil {
		return p, err
	}
	p.Color, err = c.write("snapshot-color-"+ts+".png", img)
	if err != nil {
		return p, err
	}

	if depth == nil {
		return p, nil
	}
	dimg, err := DepthImage(depth, width, height)
	if err != nil {
		return p, err
	}
	p.Depth, err = c.write("snapshot-depth-"+ts+".png", dimg)
	return p, err
}

func (c *Capture) write(name string, img image.Image) (string, error) {
	if c.outputDir != "" {
		if err := os.MkdirAll(c.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
		name = filepath.Join(c.outputDir, name)
	}

	file, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return name, nil
}

// ColorImage builds an image from bottom-up RGBA8 rows.
func ColorImage(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeMismatch, width*height*4, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		dst := y * img.Stride
		copy(img.Pix[dst:dst+rowSize], pixels[src:src+rowSize])
	}
	return img, nil
}

// DepthImage builds a 16-bit grayscale image from bottom-up depth rows.
// Depth 1 (background) becomes white.
func DepthImage(depth []float32, width, height int) (*image.Gray16, error) {
	if width <= 0 || height <= 0 || len(depth) != width*height {
		return nil, fmt.Errorf("%w: expected %d samples, got %d", ErrSizeMismatch, width*height, len(depth))
	}
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := depth[(height-1-y)*width:]
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: quantize(row[x])})
		}
	}
	return img, nil
}

func quantize(d float32) uint16 {
	switch {
	case d != d || d >= 1:
		return 0xffff
	case d <= 0:
		return 0
	default:
		return uint16(d*0xffff + 0.5)
	}
}
