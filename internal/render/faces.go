// Package render remaps cubemaps into camera images.
//
// Every output pixel carries a unit direction from the remap table. The
// face the direction points at is chosen by its major axis, the direction
// is rotated into that face's frame, and the face is sampled at the
// perspective projection of the rotated direction. Color is sampled
// bilinearly. Inverse depth is sampled nearest and converted to inverse
// range along the ray.
package render

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/ajitpratap0/cubeconv/pkg/images"
)

// Vec3 is a direction in the cubemap frame.
type Vec3 struct {
	X, Y, Z float32
}

// Normalize returns v scaled to unit length, or the zero vector.
func (v Vec3) Normalize() Vec3 {
	n := math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	if n == 0 {
		return Vec3{}
	}
	return Vec3{v.X / n, v.Y / n, v.Z / n}
}

// Quat is a rotation quaternion stored x, y, z, w.
type Quat struct {
	X, Y, Z, W float32
}

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float32

// Matrix returns the rotation matrix of a unit quaternion.
func (q Quat) Matrix() Mat3 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// Transpose returns the inverse of a rotation matrix.
func (m Mat3) Transpose() Mat3 {
	var t Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t[c][r] = m[r][c]
		}
	}
	return t
}

// Apply multiplies m by v.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// FaceRotation returns the rotation taking the +z axis to the face's
// viewing direction.
func FaceRotation(f images.Face) Quat {
	h := float32(math.Sqrt2 / 2)
	switch f {
	case images.FacePosX:
		return Quat{0, h, 0, h}
	case images.FaceNegX:
		return Quat{0, -h, 0, h}
	case images.FacePosY:
		return Quat{-h, 0, 0, h}
	case images.FaceNegY:
		return Quat{h, 0, 0, h}
	case images.FaceNegZ:
		return Quat{0, 1, 0, 0}
	default:
		return Quat{0, 0, 0, 1}
	}
}

// faceToLocal holds, per face, the rotation from the cubemap frame into
// the face frame.
var faceToLocal = func() [images.NumFaces]Mat3 {
	var m [images.NumFaces]Mat3
	for f := images.Face(0); f < images.NumFaces; f++ {
		m[f] = FaceRotation(f).Matrix().Transpose()
	}
	return m
}()

// SelectFace returns the face a direction points at.
func SelectFace(d Vec3) images.Face {
	ax, ay, az := math32.Abs(d.X), math32.Abs(d.Y), math32.Abs(d.Z)
	switch {
	case ax >= ay && ax >= az:
		if d.X >= 0 {
			return images.FacePosX
		}
		return images.FaceNegX
	case ay >= az:
		if d.Y >= 0 {
			return images.FacePosY
		}
		return images.FaceNegY
	default:
		if d.Z >= 0 {
			return images.FacePosZ
		}
		return images.FaceNegZ
	}
}

// FaceLookup is the result of projecting a direction onto the cube.
type FaceLookup struct {
	Face images.Face
	// X and Y are the face image plane coordinates in [-1, 1]
	X, Y float32
	// Cos is the cosine between the unit direction and the face axis
	Cos float32
}

// Lookup projects a unit direction onto its cube face.
func Lookup(d Vec3) FaceLookup {
	f := SelectFace(d)
	local := faceToLocal[f].Apply(d)
	return FaceLookup{
		Face: f,
		X:    local.X / local.Z,
		Y:    local.Y / local.Z,
		Cos:  local.Z,
	}
}

// Texel converts a face plane coordinate in [-1, 1] to a continuous pixel
// coordinate where pixel centers lie on integers.
func Texel(p float32, size int) float32 {
	return (p*0.5+0.5)*float32(size) - 0.5
}
