// lvtool is a CLI utility for inspecting and converting the files the
// viewer loads.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/liteviz/internal/loader"
	"github.com/Faultbox/liteviz/internal/viewer"
	"github.com/Faultbox/liteviz/pkg/formats"
)

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(os.Stdout, args)
	case "convert", "cv":
		err = cmdConvert(os.Stdout, args)
	case "traj":
		err = cmdTraj(os.Stdout, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lvtool - point cloud, mesh and trajectory utility

Usage:
  lvtool <command> [options]

Commands:
  info <file>                 Show type, counts and bounds
  convert <in> <out.xyz|.ply> Convert a point cloud or mesh
  traj [-o out.tum] <file>    Show trajectory statistics, optionally rewrite sorted

Examples:
  lvtool info scan.pcd
  lvtool convert scan.pcd scan.ply
  lvtool traj -o sorted.txt groundtruth.txt`)
}

func cmdInfo(w io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: lvtool info <file>", errUsage)
	}
	path := args[0]
	kind := loader.Kind(path)

	fmt.Fprintf(w, "File:     %s\n", path)
	switch kind {
	case viewer.PointCloud, viewer.Mesh:
		g, err := loader.ParseGeometry(path)
		if err != nil {
			return err
		}
		if g.IsMesh() {
			kind = viewer.Mesh
		}
		fmt.Fprintf(w, "Type:     %s\n", kind)
		fmt.Fprintf(w, "Vertices: %d\n", len(g.Positions))
		if g.IsMesh() {
			fmt.Fprintf(w, "Faces:    %d\n", g.TriangleCount())
		}
		fmt.Fprintf(w, "Colors:   %t\n", g.HasColors())
		if lo, hi, ok := g.Bounds(); ok {
			fmt.Fprintf(w, "Bounds:   [%.3f %.3f %.3f] - [%.3f %.3f %.3f]\n",
				lo[0], lo[1], lo[2], hi[0], hi[1], hi[2])
		}
	case viewer.Trajectory:
		fmt.Fprintf(w, "Type:     %s\n", kind)
		return cmdTraj(w, args)
	case viewer.Image:
		it, err := loader.Load(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Type:     %s\n", kind)
		printImage(w, it.Image)
	default:
		return fmt.Errorf("%w: %s", loader.ErrUnknownExtension, filepath.Ext(path))
	}
	return nil
}

func printImage(w io.Writer, img image.Image) {
	b := img.Bounds()
	fmt.Fprintf(w, "Size:     %dx%d\n", b.Dx(), b.Dy())
}

func cmdConvert(w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: lvtool convert <in> <out.xyz|.ply>", errUsage)
	}
	in, out := args[0], args[1]

	var write func(io.Writer, *formats.Geometry) error
	switch strings.ToLower(filepath.Ext(out)) {
	case ".xyz", ".pts":
		write = formats.WriteXYZ
	case ".ply":
		write = formats.WritePLY
	default:
		return fmt.Errorf("%w: cannot write %s", formats.ErrUnsupportedFormat, filepath.Ext(out))
	}

	g, err := loader.ParseGeometry(in)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := write(f, g); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Wrote %d vertices to %s\n", len(g.Positions), out)
	return nil
}

func cmdTraj(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("traj", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	output := fs.String("o", "", "Rewrite the trajectory sorted by time")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: lvtool traj [-o out.tum] <file>", errUsage)
	}

	t, err := formats.ParseTUMFile(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Poses:    %d\n", t.Len())
	fmt.Fprintf(w, "Duration: %.3f s\n", t.Duration())
	fmt.Fprintf(w, "Length:   %.3f m\n", t.PathLength())
	if t.Len() > 0 {
		first, last := t.Poses[0].Position, t.Poses[t.Len()-1].Position
		fmt.Fprintf(w, "Start:    %.3f %.3f %.3f\n", first[0], first[1], first[2])
		fmt.Fprintf(w, "End:      %.3f %.3f %.3f\n", last[0], last[1], last[2])
	}

	if *output == "" {
		return nil
	}
	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	if err := formats.WriteTUM(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
