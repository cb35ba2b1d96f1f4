package render

import (
	"runtime"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/images"
)

// Outputs are the images one remap pass produces.
type Outputs struct {
	// Color is 8-bit RGB
	Color *images.Image
	// InvRange is 16-bit inverse range, on the same scale as the input
	// inverse depth
	InvRange *images.Image
}

// NewOutputs allocates outputs of the given size.
func NewOutputs(width, height int) Outputs {
	return Outputs{
		Color:    images.New(width, height, 3, images.Bits8),
		InvRange: images.New(width, height, 1, images.Bits16),
	}
}

// ColorShape is the format of the color output.
func ColorShape(width, height int) images.Shape {
	return images.Shape{Width: width, Height: height, Channels: 3, Depth: images.Bits8}
}

// InvRangeShape is the format of the inverse range output.
func InvRangeShape(width, height int) images.Shape {
	return images.Shape{Width: width, Height: height, Channels: 1, Depth: images.Bits16}
}

// Remap fills out from the two cubemaps using the direction table. Output
// rows are stored bottom-up: table row y lands in output row height-1-y,
// matching a framebuffer readback.
func Remap(table *images.Image, color, depth *images.Cubemap, out Outputs) error {
	if err := checkRemapInputs(table, color, depth, out); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for row := 0; row < table.Height; row++ {
		row := row
		g.Go(func() error {
			remapRow(table, color, depth, out, row)
			return nil
		})
	}
	return g.Wait()
}

func remapRow(table *images.Image, color, depth *images.Cubemap, out Outputs, row int) {
	w, h := table.Width, table.Height
	dst := h - 1 - row
	for col := 0; col < w; col++ {
		i := (row*w + col) * 3
		d := Vec3{table.Float32(i), table.Float32(i + 1), table.Float32(i + 2)}.Normalize()

		o := dst*w + col
		if d == (Vec3{}) {
			out.Color.Data[3*o], out.Color.Data[3*o+1], out.Color.Data[3*o+2] = 0, 0, 0
			out.InvRange.SetUint16(o, 0)
			continue
		}

		l := Lookup(d)
		r, g, b := sampleBilinear(color.Faces[l.Face], l.X, l.Y)
		out.Color.Data[3*o] = r
		out.Color.Data[3*o+1] = g
		out.Color.Data[3*o+2] = b

		inv := float32(sampleNearest(depth.Faces[l.Face], l.X, l.Y)) * l.Cos
		out.InvRange.SetUint16(o, uint16(math32.Min(math32.Floor(inv+0.5), 65535)))
	}
}

func sampleBilinear(face *images.Image, x, y float32) (r, g, b uint8) {
	size := face.Width
	u := clampf(Texel(x, size), 0, float32(size-1))
	v := clampf(Texel(y, size), 0, float32(size-1))

	x0, y0 := int(u), int(v)
	x1, y1 := min(x0+1, size-1), min(y0+1, size-1)
	fx, fy := u-float32(x0), v-float32(y0)

	stride := size * 3
	var out [3]uint8
	for c := 0; c < 3; c++ {
		p00 := float32(face.Data[y0*stride+x0*3+c])
		p10 := float32(face.Data[y0*stride+x1*3+c])
		p01 := float32(face.Data[y1*stride+x0*3+c])
		p11 := float32(face.Data[y1*stride+x1*3+c])
		top := p00 + (p10-p00)*fx
		bottom := p01 + (p11-p01)*fx
		out[c] = uint8(math32.Floor(clampf(top+(bottom-top)*fy, 0, 255) + 0.5))
	}
	return out[0], out[1], out[2]
}

func sampleNearest(face *images.Image, x, y float32) uint16 {
	size := face.Width
	ix := clampi(int(math32.Floor((x*0.5+0.5)*float32(size))), 0, size-1)
	iy := clampi(int(math32.Floor((y*0.5+0.5)*float32(size))), 0, size-1)
	return face.Uint16(iy*size + ix)
}

func clampf(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

func clampi(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func checkRemapInputs(table *images.Image, color, depth *images.Cubemap, out Outputs) error {
	if table.Channels != 3 || table.Depth != images.Bits32 {
		return errors.New(errors.ErrorTypeInvariant, "remap table must be three float channels").
			WithDetail("channels", table.Channels).
			WithDetail("depth", table.Depth.String())
	}
	if color.Type != images.CubemapColor || depth.Type != images.CubemapDepth {
		return errors.New(errors.ErrorTypeInvariant, "cubemaps passed in the wrong order")
	}
	if out.Color.Shape() != ColorShape(table.Width, table.Height) {
		return errors.New(errors.ErrorTypeInvariant, "color output does not match remap table").
			WithDetail("width", out.Color.Width).
			WithDetail("height", out.Color.Height)
	}
	if out.InvRange.Shape() != InvRangeShape(table.Width, table.Height) {
		return errors.New(errors.ErrorTypeInvariant, "range output does not match remap table").
			WithDetail("width", out.InvRange.Width).
			WithDetail("height", out.InvRange.Height)
	}
	return nil
}
