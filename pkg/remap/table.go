package remap

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/cubeconv/pkg/compression"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
)

// TableChannels is the number of floats stored per pixel.
const TableChannels = 3

// BuildTable evaluates u at every integer pixel coordinate of a
// width x height image. Rows are computed in parallel.
func BuildTable(u Unprojector, width, height int) *images.Image {
	table := images.New(width, height, TableChannels, images.Bits32)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for row := 0; row < height; row++ {
		row := row
		g.Go(func() error {
			for col := 0; col < width; col++ {
				x, y, z := u.Unproject(float64(col), float64(row))
				i := (row*width + col) * TableChannels
				table.SetFloat32(i, float32(x))
				table.SetFloat32(i+1, float32(y))
				table.SetFloat32(i+2, float32(z))
			}
			return nil
		})
	}
	_ = g.Wait()
	return table
}

// BuildCameraTable builds the table for a described camera at its own
// dimensions.
func BuildCameraTable(c Camera) (*images.Image, error) {
	u, err := c.Unprojector()
	if err != nil {
		return nil, err
	}
	return BuildTable(u, c.Dimensions.Width, c.Dimensions.Height), nil
}

// LoadTable reads a width x height table; the file size must match exactly.
func LoadTable(path string, width, height int) (*images.Image, error) {
	return images.LoadRawFloatImage(path, width, height, TableChannels)
}

// SaveTable writes table to path, compressing according to the path's
// extension at the given level.
func SaveTable(path string, table *images.Image, level compression.Level) (err error) {
	if table.Channels != TableChannels {
		return errors.New(errors.ErrorTypeInvariant, "remap table needs three channels").
			WithDetail("channels", table.Channels)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to create remap table").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeOutput, "failed to close remap table").
				WithDetail("path", path)
		}
	}()

	bw := bufio.NewWriter(f)
	w, err := compression.NewWriter(bw, &compression.Config{
		Algorithm: compression.AlgorithmForPath(path),
		Level:     level,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to open compressor").
			WithDetail("path", path)
	}
	if err := images.WriteRawFloat(w, table); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to finish remap table").
			WithDetail("path", path)
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeOutput, "failed to write remap table").
			WithDetail("path", path)
	}
	return nil
}
