package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cubeconv/pkg/images"
)

// Dataset describes a synthetic cubemap dataset written to disk.
type Dataset struct {
	Root     string
	Camera   int
	Frames   int
	FaceSize int
}

// WriteDataset writes frames color and depth cubemaps with square faces of
// faceSize pixels for one camera below root. Pixel values depend only on
// frame, face and position, so two datasets with the same parameters are
// byte-identical.
func WriteDataset(t testing.TB, root string, camera, frames, faceSize int) Dataset {
	t.Helper()

	for frame := 0; frame < frames; frame++ {
		for f := images.Face(0); f < images.NumFaces; f++ {
			writeFace(t, images.FacePath(root, images.CubemapColor, camera, uint64(frame), f), ColorFace(frame, f, faceSize))
			writeFace(t, images.FacePath(root, images.CubemapDepth, camera, uint64(frame), f), DepthFace(frame, f, faceSize))
		}
	}
	return Dataset{Root: root, Camera: camera, Frames: frames, FaceSize: faceSize}
}

// ColorFace returns the synthetic 8-bit RGB face used by WriteDataset.
func ColorFace(frame int, face images.Face, size int) *images.Image {
	img := images.New(size, size, 3, images.Bits8)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := (y*size + x) * 3
			img.Data[i] = byte(frame*17 + int(face)*40)
			img.Data[i+1] = byte(x * 255 / max(size-1, 1))
			img.Data[i+2] = byte(y * 255 / max(size-1, 1))
		}
	}
	return img
}

// DepthFace returns the synthetic 16-bit inverse depth face used by
// WriteDataset. Values are never zero.
func DepthFace(frame int, face images.Face, size int) *images.Image {
	img := images.New(size, size, 1, images.Bits16)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetUint16(y*size+x, uint16(1000+frame*100+int(face)*1000+x+y))
		}
	}
	return img
}

// WriteSideFiles writes the csv files that accompany a dataset, including
// the ground truth pose file with one row per frame.
func WriteSideFiles(t testing.TB, root string, frames int) {
	t.Helper()

	pose := "timestamp,x,y,z,qx,qy,qz,qw\n"
	for i := 0; i < frames; i++ {
		pose += fmt.Sprintf("%d,0,0,0,0,0,0,1\n", i*100)
	}
	writeFile(t, filepath.Join(root, "ground_truth_imu_pose_00.csv"), pose)
	writeFile(t, filepath.Join(root, "imu_00.csv"), "timestamp,ax,ay,az\n0,0,0,9.81\n")
	writeFile(t, filepath.Join(root, "intrinsics.csv"), "fx,fy,cx,cy\n1,1,0,0\n")
}

func writeFace(t testing.TB, path string, img *images.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, images.WritePNG(path, img, false))
}

func writeFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
