// Package engine implements the log-structured storage core of the store
// in two forms that share one on-disk format.
//
// Engine is the single-writer form: one goroutine owns it and calls
// Set/Get/Remove/Compact directly. SharedEngine layers the reader/writer
// concurrency discipline on the same algorithms so that many readers
// proceed in parallel with a single writer, including while compaction
// rewrites and unlinks segments.
//
// Both forms keep an append-only log of command records split into segment
// files named <id>.log, an in-memory index mapping each live key to the
// byte range of its latest set record, and a running count of dead bytes
// (displaced sets and remove tombstones) that triggers compaction when it
// crosses a threshold. Compaction copies every live record into a fresh
// segment and unlinks everything older, reclaiming the dead bytes while
// reads continue.
package engine

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/codec"
	"github.com/iamNilotpal/ember/internal/index"
	"github.com/iamNilotpal/ember/internal/metrics"
	"github.com/iamNilotpal/ember/pkg/errors"
	"github.com/iamNilotpal/ember/pkg/filesys"
	"github.com/iamNilotpal/ember/pkg/options"
	"github.com/iamNilotpal/ember/pkg/seginfo"
)

var (
	// ErrEngineClosed is returned when attempting to use a closed engine.
	ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")
)

// Config holds the parameters needed to open an engine.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

func (c *Config) validate() error {
	if c == nil || c.Options == nil || c.Logger == nil {
		return fmt.Errorf("invalid configuration")
	}
	return nil
}

// Engine is the single-writer form of the storage core. It owns the active
// appender, a pool of read handles keyed by segment id, the index, and the
// uncompacted byte counter.
//
// Engine is not safe for concurrent use; callers serialize externally.
// SharedEngine is the form designed for parallel threads.
type Engine struct {
	dataPath    string
	activeID    uint32
	writer      *appender
	readers     map[uint32]*os.File
	index       *index.Index
	uncompacted uint64
	threshold   uint64
	syncWrites  bool
	closed      atomic.Bool
	log         *zap.SugaredLogger
	metrics     *metrics.Metrics
}

// Open initializes a single-writer engine on the configured data directory,
// creating it if missing, and rebuilds the index by replaying every
// existing segment in ascending id order. The first active segment id is
// one past the highest id found on disk, so ids stay strictly increasing
// across restarts.
func Open(ctx context.Context, config *Config) (*Engine, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Metrics == nil {
		config.Metrics = metrics.New(nil)
	}

	dataPath := config.Options.DataDir
	if err := filesys.CreateDir(dataPath, 0755, true); err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to create data directory",
		).WithPath(dataPath)
	}

	ids, err := seginfo.ListSegments(dataPath)
	if err != nil {
		return nil, err
	}

	var lastID uint32
	if len(ids) > 0 {
		lastID = ids[len(ids)-1]
	}
	activeID := lastID + 1

	config.Logger.Infow(
		"Opening engine",
		"dataDir", dataPath,
		"existingSegments", len(ids),
		"activeSegment", activeID,
	)

	writer, reader, err := openSegmentPair(dataPath, activeID)
	if err != nil {
		return nil, err
	}

	readers := map[uint32]*os.File{activeID: reader}
	idx := index.New()

	uncompacted, err := loadIndex(dataPath, ids, readers, idx)
	if err != nil {
		closeErr := closeHandles(writer, readers)
		_ = closeErr
		return nil, err
	}

	config.Logger.Infow(
		"Engine opened",
		"liveKeys", idx.Len(),
		"uncompactedBytes", uncompacted,
	)

	config.Metrics.ActiveSegment.Set(float64(activeID))
	config.Metrics.UncompactedBytes.Set(float64(uncompacted))

	return &Engine{
		dataPath:    dataPath,
		activeID:    activeID,
		writer:      writer,
		readers:     readers,
		index:       idx,
		uncompacted: uncompacted,
		threshold:   config.Options.CompactionThreshold,
		syncWrites:  config.Options.SyncWrites,
		log:         config.Logger,
		metrics:     config.Metrics,
	}, nil
}

// Set appends an upsert record and installs its byte range in the index.
// Displacing a previous entry adds that entry's length to the dead-byte
// count; crossing the compaction threshold compacts before returning.
func (e *Engine) Set(key, value string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	data, err := codec.Encode(codec.Set(key, value))
	if err != nil {
		return err
	}

	start := e.writer.Pos()
	if _, err := e.writer.Write(data); err != nil {
		return err
	}
	if err := e.flush(); err != nil {
		return err
	}
	end := e.writer.Pos()

	old, displaced := e.index.Insert(key, index.CmdIdx{
		File: e.activeID,
		Pos:  start,
		Len:  end - start,
	})
	if displaced {
		e.uncompacted += old.Len
	}

	e.metrics.SetsTotal.Inc()
	e.metrics.UncompactedBytes.Set(float64(e.uncompacted))

	if e.uncompacted > e.threshold {
		return e.Compact()
	}
	return nil
}

// Get looks up the key and, when live, reads exactly the indexed byte range
// from its segment and decodes it. The second return is false when the key
// is absent. Bytes that do not decode to a set record are a corrupt log.
func (e *Engine) Get(key string) (string, bool, error) {
	if e.closed.Load() {
		return "", false, ErrEngineClosed
	}

	e.metrics.GetsTotal.Inc()

	idx, ok := e.index.Get(key)
	if !ok {
		return "", false, nil
	}

	file, err := e.readerFor(idx.File)
	if err != nil {
		return "", false, err
	}

	value, err := readSetValue(file, idx)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Remove appends a tombstone for a live key and drops it from the index.
// Both the displaced set and the tombstone itself count as dead bytes.
// Removing an absent key fails without writing anything.
func (e *Engine) Remove(key string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	if !e.index.Contains(key) {
		return errors.NewKeyNotFoundError(key)
	}

	data, err := codec.Encode(codec.Remove(key))
	if err != nil {
		return err
	}

	start := e.writer.Pos()
	if _, err := e.writer.Write(data); err != nil {
		return err
	}
	if err := e.flush(); err != nil {
		return err
	}
	end := e.writer.Pos()

	if old, ok := e.index.Remove(key); ok {
		e.uncompacted += old.Len
	}
	e.uncompacted += end - start

	e.metrics.RemovesTotal.Inc()
	e.metrics.UncompactedBytes.Set(float64(e.uncompacted))

	if e.uncompacted > e.threshold {
		return e.Compact()
	}
	return nil
}

// Compact rewrites every live record into a fresh compaction segment and
// unlinks all older segments.
//
// Two ids are reserved: activeID+1 receives the surviving records and
// activeID+2 becomes the new active segment, so appends arriving after
// compaction never land in the compaction segment. The index is fully
// redirected and the compaction appender flushed before any old segment is
// unlinked; a reader holding an old range mid-copy still finds its bytes.
func (e *Engine) Compact() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	compactionID := e.activeID + 1
	newActiveID := e.activeID + 2

	e.log.Infow(
		"Starting compaction",
		"compactionSegment", compactionID,
		"newActiveSegment", newActiveID,
		"uncompactedBytes", e.uncompacted,
	)

	compactionWriter, compactionReader, err := openSegmentPair(e.dataPath, compactionID)
	if err != nil {
		return err
	}
	e.readers[compactionID] = compactionReader

	activeWriter, activeReader, err := openSegmentPair(e.dataPath, newActiveID)
	if err != nil {
		closeErr := compactionWriter.Close()
		_ = closeErr
		return err
	}
	e.readers[newActiveID] = activeReader

	if err := e.writer.Close(); err != nil {
		return err
	}
	e.writer = activeWriter
	e.activeID = newActiveID

	// Copy each live record verbatim and point its entry at the new range.
	for _, key := range e.index.Keys() {
		idx, ok := e.index.Get(key)
		if !ok {
			continue
		}

		src, err := e.readerFor(idx.File)
		if err != nil {
			return err
		}

		start := compactionWriter.Pos()
		section := io.NewSectionReader(src, int64(idx.Pos), int64(idx.Len))
		if _, err := io.Copy(compactionWriter, section); err != nil {
			return errors.NewStorageError(
				err, errors.ErrorCodeIO, "failed to copy live record during compaction",
			).WithSegmentID(idx.File).WithOffset(idx.Pos)
		}
		end := compactionWriter.Pos()

		e.index.Update(key, index.CmdIdx{File: compactionID, Pos: start, Len: end - start})
	}

	if e.syncWrites {
		if err := compactionWriter.Sync(); err != nil {
			return err
		}
	} else if err := compactionWriter.Flush(); err != nil {
		return err
	}
	if err := compactionWriter.Close(); err != nil {
		return err
	}

	reclaimed := e.uncompacted
	e.uncompacted = 0

	// Only now that every index entry references the compaction segment can
	// the superseded segments go away.
	var removeErr error
	for id, file := range e.readers {
		if id >= compactionID {
			continue
		}
		delete(e.readers, id)
		removeErr = multierr.Append(removeErr, file.Close())
		if err := os.Remove(seginfo.SegmentPath(e.dataPath, id)); err != nil {
			removeErr = multierr.Append(removeErr, err)
		}
	}
	if removeErr != nil {
		return errors.NewStorageError(
			removeErr, errors.ErrorCodeIO, "failed to remove superseded segments",
		)
	}

	e.metrics.CompactionsTotal.Inc()
	e.metrics.ReclaimedBytes.Add(float64(reclaimed))
	e.metrics.UncompactedBytes.Set(0)
	e.metrics.ActiveSegment.Set(float64(newActiveID))

	e.log.Infow("Compaction finished", "reclaimedBytes", reclaimed, "liveKeys", e.index.Len())
	return nil
}

// Uncompacted returns the dead bytes accumulated since the last compaction.
func (e *Engine) Uncompacted() uint64 {
	return e.uncompacted
}

// ActiveSegmentID returns the id of the segment currently receiving appends.
func (e *Engine) ActiveSegmentID() uint32 {
	return e.activeID
}

// Close flushes the appender and releases every file handle. Subsequent
// operations fail with ErrEngineClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}
	return closeHandles(e.writer, e.readers)
}

func (e *Engine) flush() error {
	if e.syncWrites {
		return e.writer.Sync()
	}
	return e.writer.Flush()
}

// readerFor returns the read handle for a segment, opening it lazily when
// absent (Open and compaction register a handle for every segment they
// replay or create, so the lazy path is only a fallback).
func (e *Engine) readerFor(id uint32) (*os.File, error) {
	if file, ok := e.readers[id]; ok {
		return file, nil
	}

	path := seginfo.SegmentPath(e.dataPath, id)
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to open segment for reading",
		).WithSegmentID(id).WithPath(path)
	}
	e.readers[id] = file
	return file, nil
}

// readSetValue reads exactly the indexed range and decodes it, requiring a
// set record.
func readSetValue(file *os.File, idx index.CmdIdx) (string, error) {
	buf := make([]byte, idx.Len)
	if _, err := file.ReadAt(buf, int64(idx.Pos)); err != nil {
		if stdErrors.Is(err, io.EOF) {
			return "", errors.NewCorruptLogError(
				err, "indexed range extends past the end of the segment",
			).WithSegmentID(idx.File).WithOffset(idx.Pos)
		}
		return "", errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to read record bytes",
		).WithSegmentID(idx.File).WithOffset(idx.Pos)
	}

	cmd, err := codec.Decode(buf)
	if err != nil {
		return "", errors.NewCorruptLogError(
			err, "indexed bytes do not decode to a record",
		).WithSegmentID(idx.File).WithOffset(idx.Pos)
	}
	if cmd.Type != codec.CommandSet {
		return "", errors.NewCorruptLogError(
			nil, "indexed bytes decode to a non-set record",
		).WithSegmentID(idx.File).WithOffset(idx.Pos)
	}
	return cmd.Value, nil
}

func closeHandles(writer *appender, readers map[uint32]*os.File) error {
	err := writer.Close()
	for id, file := range readers {
		err = multierr.Append(err, file.Close())
		delete(readers, id)
	}
	return err
}
