// Package seginfo provides utilities for naming and discovering segment
// files in the data directory.
//
// Filename format: <id>.log
//
// Where id is a decimal unsigned 32-bit integer assigned strictly
// increasing across the lifetime of a store. Example filenames:
//
//	1.log
//	2.log
//	731.log
//
// Files whose names do not match the format are ignored by discovery.
package seginfo

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/iamNilotpal/ember/pkg/errors"
)

// Extension is the suffix every segment file carries.
const Extension = ".log"

// SegmentName returns the filename for the given segment id.
func SegmentName(id uint32) string {
	return fmt.Sprintf("%d%s", id, Extension)
}

// SegmentPath returns the full path of the given segment id under dir.
func SegmentPath(dir string, id uint32) string {
	return filepath.Join(dir, SegmentName(id))
}

// ParseSegmentID extracts the segment id from a filename. It reports false
// when the name is not of the form <u32>.log.
func ParseSegmentID(name string) (uint32, bool) {
	stem, found := strings.CutSuffix(name, Extension)
	if !found || stem == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(stem, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// ListSegments reads the data directory and returns the ids of all segment
// files, sorted ascending. Entries that are not regular files, don't carry
// the .log extension, or whose stem doesn't parse as a u32 are silently
// ignored.
func ListSegments(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to read segment directory",
		).WithPath(dir)
	}

	ids := make([]uint32, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if id, ok := ParseSegmentID(entry.Name()); ok {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)
	return ids, nil
}
