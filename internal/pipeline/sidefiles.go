package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
	"github.com/ajitpratap0/cubeconv/pkg/storage"
)

// Dataset side files.
const (
	PoseFile          = "ground_truth_imu_pose_00.csv"
	ExcludedSideFile  = "intrinsics.csv"
	IntrinsicsOutFile = "intrinsics.toml"
)

// CountFrames returns the number of data rows in the dataset's ground
// truth pose file. A first row whose first field is not numeric is taken
// as a header.
func CountFrames(datasetRoot string) (uint64, error) {
	path := filepath.Join(datasetRoot, PoseFile)
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInput, "failed to open pose file").
			WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows uint64
	for first := true; ; first = false {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeInput, "failed to parse pose file").
				WithDetail("path", path).
				WithDetail("row", rows)
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}
		if first {
			if _, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64); err != nil {
				continue
			}
		}
		rows++
	}
	return rows, nil
}

// CopySideFiles puts every *.csv file of the dataset root except
// intrinsics.csv into store, and the camera description as intrinsics.toml
// when intrinsicsPath is set. It returns the keys written, sorted.
func CopySideFiles(ctx context.Context, store storage.Store, datasetRoot, intrinsicsPath string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(datasetRoot, "*.csv"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to list side files").
			WithDetail("root", datasetRoot)
	}

	sources := make(map[string]string, len(matches)+1)
	for _, m := range matches {
		name := filepath.Base(m)
		if name == ExcludedSideFile {
			continue
		}
		sources[name] = m
	}
	if intrinsicsPath != "" {
		sources[IntrinsicsOutFile] = intrinsicsPath
	}

	keys := make([]string, 0, len(sources))
	for key := range sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		data, err := os.ReadFile(filepath.Clean(sources[key]))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInput, "failed to read side file").
				WithDetail("path", sources[key])
		}
		if err := store.Put(ctx, key, data); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
