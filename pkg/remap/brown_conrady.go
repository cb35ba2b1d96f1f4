package remap

import "math"

// brownConradyIterations matches the fixed-point iteration count OpenCV's
// undistortPoints uses by default.
const brownConradyIterations = 5

// BrownConrady is the OpenCV radial-tangential model.
type BrownConrady struct {
	CameraMatrix
	K1, K2, K3 float64
	P1, P2     float64
}

// distort applies the model to a normalized image point.
func (b *BrownConrady) distort(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	radial := 1 + ((b.K3*r2+b.K2)*r2+b.K1)*r2
	dx := 2*b.P1*x*y + b.P2*(r2+2*x*x)
	dy := b.P1*(r2+2*y*y) + 2*b.P2*x*y
	return x*radial + dx, y*radial + dy
}

// Unproject implements Unprojector.
func (b *BrownConrady) Unproject(u, v float64) (x, y, z float64) {
	x0 := (u - b.Cx) / b.Fx
	y0 := (v - b.Cy) / b.Fy

	px, py := x0, y0
	for i := 0; i < brownConradyIterations; i++ {
		r2 := px*px + py*py
		icdist := 1 / (1 + ((b.K3*r2+b.K2)*r2+b.K1)*r2)
		dx := 2*b.P1*px*py + b.P2*(r2+2*px*px)
		dy := b.P1*(r2+2*py*py) + 2*b.P2*px*py
		px = (x0 - dx) * icdist
		py = (y0 - dy) * icdist
	}

	n := math.Sqrt(px*px + py*py + 1)
	return px / n, py / n, 1 / n
}

// Project maps a direction with positive z to pixel coordinates.
func (b *BrownConrady) Project(x, y, z float64) (u, v float64) {
	dx, dy := b.distort(x/z, y/z)
	return b.Fx*dx + b.Cx, b.Fy*dy + b.Cy
}
