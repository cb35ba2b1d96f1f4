package compression

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floatTable builds a smooth float32 array resembling a remap table.
func floatTable(n int) []byte {
	buf := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		v := float32(math.Sin(float64(i) / 100))
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func TestRoundTrip(t *testing.T) {
	original := floatTable(30000)

	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			alg, level := alg, level
			t.Run(string(alg), func(t *testing.T) {
				compressed, err := Compress(original, &Config{Algorithm: alg, Level: level})
				require.NoError(t, err)

				decompressed, err := Decompress(compressed, alg, int64(len(original)))
				require.NoError(t, err)
				assert.True(t, bytes.Equal(original, decompressed))
			})
		}
	}
}

// quantizedTable builds rows of a coarse float32 ramp. Neighbouring rows
// of a remap table differ little, so whole rows repeat.
func quantizedTable(width, height int) []byte {
	row := make([]byte, 4*width)
	for x := 0; x < width; x++ {
		v := float32(x/8) / float32(width)
		binary.LittleEndian.PutUint32(row[4*x:], math.Float32bits(v))
	}
	return bytes.Repeat(row, height)
}

func TestStreamRoundTrip(t *testing.T) {
	original := quantizedTable(250, 40)

	var compressed bytes.Buffer
	w, err := NewWriter(&compressed, nil)
	require.NoError(t, err)
	_, err = io.Copy(w, bytes.NewReader(original))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Less(t, compressed.Len(), len(original))

	r, err := NewReader(&compressed, Zstd)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestDecompressLimit(t *testing.T) {
	compressed, err := Compress(make([]byte, 1000), &Config{Algorithm: Zstd})
	require.NoError(t, err)

	_, err = Decompress(compressed, Zstd, 999)
	assert.Error(t, err)

	out, err := Decompress(compressed, Zstd, 1000)
	require.NoError(t, err)
	assert.Len(t, out, 1000)
}

func TestAlgorithmForPath(t *testing.T) {
	tests := map[string]Algorithm{
		"remap.bin":        None,
		"remap.bin.zst":    Zstd,
		"remap.bin.ZSTD":   Zstd,
		"remap.bin.gz":     Gzip,
		"remap.bin.lz4":    LZ4,
		"remap.bin.s2":     S2,
		"remap.bin.snappy": Snappy,
		"remap.bin.sz":     Snappy,
		"noext":            None,
	}
	for path, want := range tests {
		assert.Equal(t, want, AlgorithmForPath(path), path)
	}

	for _, alg := range []Algorithm{Gzip, Snappy, LZ4, Zstd, S2} {
		assert.Equal(t, alg, AlgorithmForPath("table.bin"+alg.Extension()))
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)

	_, err = NewWriter(io.Discard, &Config{Algorithm: "brotli"})
	assert.Error(t, err)
	_, err = NewReader(bytes.NewReader(nil), "brotli")
	assert.Error(t, err)
}
