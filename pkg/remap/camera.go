// Package remap builds per-pixel direction tables for target camera models.
//
// A remap table has one unit vector per output pixel, stored row-major as
// float32 x, y, z. The renderer looks each vector up in the cubemap to
// produce the camera-native image. Tables are generated from a TOML camera
// description:
//
//	[[cameras]]
//	model = "fisheye"
//	dimensions = { width = 1024, height = 1024 }
//	camera_matrix = { fx = 300.0, fy = 300.0, cx = 511.5, cy = 511.5 }
//	distortion_coefficients = { k1 = 0.08, k2 = 0.008, k3 = 0.0006, k4 = 0.0002 }
//
// Supported models are "fisheye" (Kannala-Brandt) and "brown-conrady"
// (OpenCV radial-tangential with k1, k2, k3, p1, p2).
package remap

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

// Camera model names.
const (
	ModelFisheye      = "fisheye"
	ModelBrownConrady = "brown-conrady"
)

// Intrinsics is the top level of a camera description file.
type Intrinsics struct {
	Cameras []Camera `toml:"cameras"`
}

// Camera describes one target camera.
type Camera struct {
	Model        string       `toml:"model"`
	Dimensions   Dimensions   `toml:"dimensions"`
	CameraMatrix CameraMatrix `toml:"camera_matrix"`
	Distortion   Distortion   `toml:"distortion_coefficients"`
}

// Dimensions is the image size in pixels.
type Dimensions struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// CameraMatrix holds the pinhole intrinsics.
type CameraMatrix struct {
	Fx float64 `toml:"fx"`
	Fy float64 `toml:"fy"`
	Cx float64 `toml:"cx"`
	Cy float64 `toml:"cy"`
}

// Distortion holds the coefficients of either model. Pointers distinguish
// a coefficient explicitly set to zero from one that is missing.
type Distortion struct {
	K1 *float64 `toml:"k1,omitempty"`
	K2 *float64 `toml:"k2,omitempty"`
	K3 *float64 `toml:"k3,omitempty"`
	K4 *float64 `toml:"k4,omitempty"`
	P1 *float64 `toml:"p1,omitempty"`
	P2 *float64 `toml:"p2,omitempty"`
}

// ParseIntrinsics decodes a TOML camera description.
func ParseIntrinsics(data []byte) (*Intrinsics, error) {
	var in Intrinsics
	if err := toml.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse camera description")
	}
	if len(in.Cameras) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "camera description has no cameras")
	}
	return &in, nil
}

// LoadIntrinsics reads a TOML camera description file.
func LoadIntrinsics(path string) (*Intrinsics, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read camera description").
			WithDetail("path", path)
	}
	in, err := ParseIntrinsics(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid camera description").
			WithDetail("path", path)
	}
	return in, nil
}

// Marshal encodes the description back to TOML.
func (in *Intrinsics) Marshal() ([]byte, error) {
	return toml.Marshal(in)
}

// Camera returns camera index, or a config error when it does not exist.
func (in *Intrinsics) Camera(index int) (Camera, error) {
	if index < 0 || index >= len(in.Cameras) {
		return Camera{}, errors.New(errors.ErrorTypeConfig, "camera index out of range").
			WithDetail("index", index).
			WithDetail("cameras", len(in.Cameras))
	}
	return in.Cameras[index], nil
}

// Unprojector maps a pixel coordinate to a unit direction in the camera
// frame (x right, y down, z forward).
type Unprojector interface {
	Unproject(u, v float64) (x, y, z float64)
}

// Unprojector builds the model described by the camera.
func (c Camera) Unprojector() (Unprojector, error) {
	if c.Dimensions.Width <= 0 || c.Dimensions.Height <= 0 {
		return nil, c.invalid("dimensions must be positive")
	}
	if c.CameraMatrix.Fx == 0 || c.CameraMatrix.Fy == 0 {
		return nil, c.invalid("focal lengths must be non-zero")
	}

	d := c.Distortion
	switch c.Model {
	case ModelFisheye:
		if d.K1 == nil || d.K2 == nil || d.K3 == nil || d.K4 == nil {
			return nil, c.invalid("fisheye needs k1, k2, k3 and k4")
		}
		return &Fisheye{
			CameraMatrix: c.CameraMatrix,
			K:            [4]float64{*d.K1, *d.K2, *d.K3, *d.K4},
		}, nil
	case ModelBrownConrady:
		if d.K1 == nil || d.K2 == nil || d.K3 == nil || d.P1 == nil || d.P2 == nil {
			return nil, c.invalid("brown-conrady needs k1, k2, k3, p1 and p2")
		}
		return &BrownConrady{
			CameraMatrix: c.CameraMatrix,
			K1:           *d.K1, K2: *d.K2, K3: *d.K3,
			P1: *d.P1, P2: *d.P2,
		}, nil
	case "":
		return nil, c.invalid("camera lacks a model specifier")
	default:
		return nil, c.invalid("unknown camera model")
	}
}

func (c Camera) invalid(message string) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, message).
		WithDetail("model", c.Model)
}
