package remap

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cubeconv/pkg/compression"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

const fisheyeTOML = `
[[cameras]]
model = "fisheye"
dimensions = { width = 64, height = 48 }
camera_matrix = { fx = 20.0, fy = 20.0, cx = 31.5, cy = 23.5 }
distortion_coefficients = { k1 = 0.08327424, k2 = 0.00852979, k3 = 0.00063325, k4 = 0.00017048 }

[[cameras]]
model = "brown-conrady"
dimensions = { width = 32, height = 24 }
camera_matrix = { fx = 30.0, fy = 30.0, cx = 15.5, cy = 11.5 }
distortion_coefficients = { k1 = -0.05, k2 = 0.01, k3 = 0.0, p1 = 0.001, p2 = -0.001 }
`

func ptr(v float64) *float64 { return &v }

func TestParseIntrinsics(t *testing.T) {
	in, err := ParseIntrinsics([]byte(fisheyeTOML))
	require.NoError(t, err)
	require.Len(t, in.Cameras, 2)

	fish := in.Cameras[0]
	assert.Equal(t, ModelFisheye, fish.Model)
	assert.Equal(t, 64, fish.Dimensions.Width)
	assert.Equal(t, 48, fish.Dimensions.Height)
	assert.InDelta(t, 31.5, fish.CameraMatrix.Cx, 1e-12)
	require.NotNil(t, fish.Distortion.K4)
	assert.InDelta(t, 0.00017048, *fish.Distortion.K4, 1e-12)
	assert.Nil(t, fish.Distortion.P1)

	bc, err := in.Camera(1)
	require.NoError(t, err)
	require.NotNil(t, bc.Distortion.K3)
	assert.Zero(t, *bc.Distortion.K3)

	_, err = in.Camera(2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestParseIntrinsicsRejectsEmpty(t *testing.T) {
	_, err := ParseIntrinsics([]byte(`title = "nothing"`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = ParseIntrinsics([]byte(`[[cameras]`))
	assert.Error(t, err)
}

func TestIntrinsicsMarshalRoundTrip(t *testing.T) {
	in, err := ParseIntrinsics([]byte(fisheyeTOML))
	require.NoError(t, err)

	data, err := in.Marshal()
	require.NoError(t, err)

	again, err := ParseIntrinsics(data)
	require.NoError(t, err)
	assert.Equal(t, in, again)
}

func TestCameraUnprojectorValidation(t *testing.T) {
	base := Camera{
		Dimensions:   Dimensions{Width: 8, Height: 8},
		CameraMatrix: CameraMatrix{Fx: 4, Fy: 4, Cx: 3.5, Cy: 3.5},
	}

	tests := []struct {
		name    string
		mutate  func(c *Camera)
		wantErr bool
	}{
		{"missing model", func(c *Camera) {}, true},
		{"unknown model", func(c *Camera) { c.Model = "pinhole" }, true},
		{"fisheye missing k4", func(c *Camera) {
			c.Model = ModelFisheye
			c.Distortion = Distortion{K1: ptr(0), K2: ptr(0), K3: ptr(0)}
		}, true},
		{"fisheye complete", func(c *Camera) {
			c.Model = ModelFisheye
			c.Distortion = Distortion{K1: ptr(0), K2: ptr(0), K3: ptr(0), K4: ptr(0)}
		}, false},
		{"brown-conrady missing p2", func(c *Camera) {
			c.Model = ModelBrownConrady
			c.Distortion = Distortion{K1: ptr(0), K2: ptr(0), K3: ptr(0), P1: ptr(0)}
		}, true},
		{"brown-conrady complete", func(c *Camera) {
			c.Model = ModelBrownConrady
			c.Distortion = Distortion{K1: ptr(0), K2: ptr(0), K3: ptr(0), P1: ptr(0), P2: ptr(0)}
		}, false},
		{"zero focal length", func(c *Camera) {
			c.Model = ModelFisheye
			c.Distortion = Distortion{K1: ptr(0), K2: ptr(0), K3: ptr(0), K4: ptr(0)}
			c.CameraMatrix.Fx = 0
		}, true},
		{"zero width", func(c *Camera) {
			c.Model = ModelFisheye
			c.Distortion = Distortion{K1: ptr(0), K2: ptr(0), K3: ptr(0), K4: ptr(0)}
			c.Dimensions.Width = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			u, err := c.Unprojector()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, u)
		})
	}
}

func TestFisheyeRoundTrip(t *testing.T) {
	models := map[string][4]float64{
		"stereographic": {0.08327424, 0.00852979, 0.00063325, 0.00017048},
		"equidistant":   {0, 0, 0, 0},
		"equisolid":     {-0.04150348, 0.00054642, -0.00000911, 0.00000011},
		"orthogonal":    {-0.16641534, 0.00886617, -0.00050545, 0.00002458},
	}

	for name, k := range models {
		t.Run(name, func(t *testing.T) {
			f := &Fisheye{CameraMatrix: CameraMatrix{Fx: 200, Fy: 200, Cx: 320, Cy: 240}, K: k}
			for _, px := range [][2]float64{{320, 240}, {400, 240}, {320, 100}, {200, 330}, {440, 330}} {
				x, y, z := f.Unproject(px[0], px[1])
				assert.InDelta(t, 1.0, x*x+y*y+z*z, 1e-9)

				u, v := f.Project(x, y, z)
				assert.InDelta(t, px[0], u, 1e-6)
				assert.InDelta(t, px[1], v, 1e-6)
			}
		})
	}
}

func TestFisheyePrincipalPointLooksForward(t *testing.T) {
	f := &Fisheye{CameraMatrix: CameraMatrix{Fx: 10, Fy: 10, Cx: 5, Cy: 5}}
	x, y, z := f.Unproject(5, 5)
	assert.InDelta(t, 0, x, 1e-12)
	assert.InDelta(t, 0, y, 1e-12)
	assert.InDelta(t, 1, z, 1e-12)

	// Equidistant: radius equals angle times focal length.
	_, _, z = f.Unproject(5+10*math.Pi/4, 5)
	assert.InDelta(t, math.Cos(math.Pi/4), z, 1e-9)
}

func TestBrownConradyRoundTrip(t *testing.T) {
	b := &BrownConrady{
		CameraMatrix: CameraMatrix{Fx: 300, Fy: 300, Cx: 320, Cy: 240},
		K1:           -0.05, K2: 0.01, P1: 0.0005, P2: -0.0005,
	}
	for _, px := range [][2]float64{{320, 240}, {350, 260}, {280, 200}} {
		x, y, z := b.Unproject(px[0], px[1])
		assert.InDelta(t, 1.0, x*x+y*y+z*z, 1e-9)
		assert.Positive(t, z)

		u, v := b.Project(x, y, z)
		assert.InDelta(t, px[0], u, 1e-3)
		assert.InDelta(t, px[1], v, 1e-3)
	}
}

func TestBrownConradyWithoutDistortionIsPinhole(t *testing.T) {
	b := &BrownConrady{CameraMatrix: CameraMatrix{Fx: 100, Fy: 100, Cx: 0, Cy: 0}}
	x, y, z := b.Unproject(100, 0)
	assert.InDelta(t, 1/math.Sqrt2, x, 1e-12)
	assert.InDelta(t, 0, y, 1e-12)
	assert.InDelta(t, 1/math.Sqrt2, z, 1e-12)
}

func TestBuildTableRowMajor(t *testing.T) {
	f := &Fisheye{CameraMatrix: CameraMatrix{Fx: 3, Fy: 3, Cx: 1.5, Cy: 1}}
	table := BuildTable(f, 4, 3)

	require.Equal(t, 4, table.Width)
	require.Equal(t, 3, table.Height)
	require.Equal(t, 4*3*3*4, len(table.Data))

	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			x, y, z := f.Unproject(float64(col), float64(row))
			i := (row*4 + col) * TableChannels
			assert.InDelta(t, x, float64(table.Float32(i)), 1e-6)
			assert.InDelta(t, y, float64(table.Float32(i+1)), 1e-6)
			assert.InDelta(t, z, float64(table.Float32(i+2)), 1e-6)
		}
	}
}

func TestSaveAndLoadTable(t *testing.T) {
	in, err := ParseIntrinsics([]byte(fisheyeTOML))
	require.NoError(t, err)
	table, err := BuildCameraTable(in.Cameras[0])
	require.NoError(t, err)

	for _, name := range []string{"remap.bin", "remap.bin.zst", "remap.bin.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveTable(path, table, compression.Default))

			loaded, err := LoadTable(path, 64, 48)
			require.NoError(t, err)
			assert.Equal(t, table.Data, loaded.Data)

			_, err = LoadTable(path, 64, 47)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInput))
		})
	}
}
