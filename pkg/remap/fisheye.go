package remap

import "math"

// fisheyeIterations is the number of Newton steps used to invert the
// distortion polynomial.
const fisheyeIterations = 10

// Fisheye is the Kannala-Brandt model: the image radius is an odd
// polynomial of the angle from the optical axis,
// r(θ) = θ (1 + k1 θ² + k2 θ⁴ + k3 θ⁶ + k4 θ⁸).
type Fisheye struct {
	CameraMatrix
	K [4]float64
}

// distort evaluates r(θ) and dr/dθ.
func (f *Fisheye) distort(theta float64) (r, dr float64) {
	t2 := theta * theta
	t4 := t2 * t2
	t6 := t4 * t2
	t8 := t4 * t4
	r = theta * (1 + f.K[0]*t2 + f.K[1]*t4 + f.K[2]*t6 + f.K[3]*t8)
	dr = 1 + 3*f.K[0]*t2 + 5*f.K[1]*t4 + 7*f.K[2]*t6 + 9*f.K[3]*t8
	return r, dr
}

// Unproject implements Unprojector.
func (f *Fisheye) Unproject(u, v float64) (x, y, z float64) {
	px := (u - f.Cx) / f.Fx
	py := (v - f.Cy) / f.Fy
	r := math.Hypot(px, py)
	phi := math.Atan2(py, px)

	theta := r
	for i := 0; i < fisheyeIterations; i++ {
		predicted, dr := f.distort(theta)
		theta -= (predicted - r) / dr
	}

	s := math.Sin(theta)
	return math.Cos(phi) * s, math.Sin(phi) * s, math.Cos(theta)
}

// Project maps a unit direction to pixel coordinates.
func (f *Fisheye) Project(x, y, z float64) (u, v float64) {
	theta := math.Acos(math.Max(-1, math.Min(1, z)))
	phi := math.Atan2(y, x)
	r, _ := f.distort(theta)
	return f.Fx*math.Cos(phi)*r + f.Cx, f.Fy*math.Sin(phi)*r + f.Cy
}
