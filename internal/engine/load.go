package engine

import (
	"io"
	"os"

	"github.com/iamNilotpal/ember/internal/codec"
	"github.com/iamNilotpal/ember/internal/index"
	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/seginfo"
)

// loadSegment replays one segment file into the index and returns the dead
// bytes it contributed plus an open read handle for the segment.
//
// Records are decoded sequentially; the start of a record is the end offset
// of the previous one (0 for the first). A set installs its byte range and
// charges the displaced entry's length to uncompacted. A remove drops the
// key, charging both the displaced set's length and the remove record's own
// on-disk length. Get commands never appear in files and are skipped if a
// foreign writer ever put one there.
func loadSegment(dataPath string, id uint32, idx *index.Index) (*os.File, uint64, error) {
	path := seginfo.SegmentPath(dataPath, id)
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to open segment for index rebuild",
		).WithSegmentID(id).WithPath(path)
	}

	var uncompacted uint64
	var start int64

	dec := codec.NewStreamDecoder(file)
	for {
		cmd, end, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			closeErr := file.Close()
			_ = closeErr
			return nil, 0, errors.NewCorruptLogError(
				err, "segment contains an unparseable record",
			).WithSegmentID(id).WithOffset(uint64(start)).WithPath(path)
		}

		switch cmd.Type {
		case codec.CommandSet:
			old, ok := idx.Insert(cmd.Key, index.CmdIdx{
				File: id,
				Pos:  uint64(start),
				Len:  uint64(end - start),
			})
			if ok {
				uncompacted += old.Len
			}

		case codec.CommandRemove:
			if old, ok := idx.Remove(cmd.Key); ok {
				uncompacted += old.Len
			}
			// The tombstone itself is dead weight too.
			uncompacted += uint64(end - start)
		}

		start = end
	}

	// Rewind so the handle can serve reads; decoding left it mid-file.
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		closeErr := file.Close()
		_ = closeErr
		return nil, 0, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to rewind segment after index rebuild",
		).WithSegmentID(id).WithPath(path)
	}

	return file, uncompacted, nil
}

// loadIndex replays every existing segment in ascending id order, filling
// idx and readers, and returns the accumulated dead bytes.
func loadIndex(dataPath string, ids []uint32, readers map[uint32]*os.File, idx *index.Index) (uint64, error) {
	var uncompacted uint64
	for _, id := range ids {
		file, dead, err := loadSegment(dataPath, id, idx)
		if err != nil {
			return 0, err
		}
		readers[id] = file
		uncompacted += dead
	}
	return uncompacted, nil
}

// openSegmentPair creates the segment file for id and returns an appender
// on it together with a separate read handle.
func openSegmentPair(dataPath string, id uint32) (*appender, *os.File, error) {
	path := seginfo.SegmentPath(dataPath, id)

	w, err := newAppender(path)
	if err != nil {
		return nil, nil, err
	}

	r, err := os.Open(path)
	if err != nil {
		closeErr := w.Close()
		_ = closeErr
		return nil, nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to open segment for reading",
		).WithSegmentID(id).WithPath(path)
	}

	return w, r, nil
}
